package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakeout/pkg/config"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	requestLog := filepath.Join(tempDir, "http", "requests.log")
	eventLog := filepath.Join(tempDir, "events.log")

	// a previous run's log must be rotated away
	require.NoError(t, os.WriteFile(serverLog, []byte("previous run\n"), 0o644))

	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: serverLog, Level: "DEBUG"},
		Requests: config.LogSettings{Path: requestLog, Level: "INFO"},
		Events:   config.LogSettings{Path: eventLog},
		Trace:    true,
	}

	prev := slog.Default()
	cleanup, err := Init(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanup()
		slog.SetDefault(prev)
		SetTrace(false)
		SetEventLogPath("")
	})

	assert.FileExists(t, serverLog)
	assert.FileExists(t, requestLog)
	assert.FileExists(t, serverLog+".old")
	assert.NotNil(t, RequestLogger)
	assert.True(t, TraceEnabled())

	slog.Debug("Fix processed", "distance_m", 0.42)
	slog.Info("Stake-out target set", "target_id", "pt-1")
	assert.Contains(t, ServerCapture.Last(), "target_id=pt-1")

	RequestLogger.Info("Request Processed", "path", "/api/stakeout/device/zoom")

	data, err := os.ReadFile(serverLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Stake-out target set")
	assert.Contains(t, string(data), "Fix processed")
	assert.Contains(t, string(data), "source=")
	assert.NotContains(t, string(data), "previous run")

	data, err = os.ReadFile(requestLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "path=/api/stakeout/device/zoom")
}

func TestLogEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.log")
	SetEventLogPath(path)
	t.Cleanup(func() { SetEventLogPath("") })

	ts := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	LogEvent(&Event{Timestamp: ts, Type: "stake", Session: "device", Target: "parcel-7", Title: "Stake marked", Summary: "residual 0.012 m"})
	LogEvent(&Event{Timestamp: ts, Type: "target", Session: "device", Title: "Target cleared"})
	LogEvent(&Event{Timestamp: ts, Type: "session", Title: "Sweep"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[2024-05-02 09:30:00] [stake] Stake marked (session=device, target=parcel-7) - residual 0.012 m", lines[0])
	assert.Equal(t, "[2024-05-02 09:30:00] [target] Target cleared (session=device)", lines[1])
	assert.Equal(t, "[2024-05-02 09:30:00] [session] Sweep", lines[2])
	assert.Equal(t, lines[2], EventCapture.Last())
}

func TestLogEvent_NoPath(t *testing.T) {
	SetEventLogPath("")
	assert.NotPanics(t, func() {
		LogEvent(&Event{Type: "stake", Title: "captured only"})
	})
	assert.Contains(t, EventCapture.Last(), "captured only")
}

func TestFanout_Levels(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := fanout{
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}
	logger := slog.New(h).With("component", "director")

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))

	logger.Debug("fix processed")
	logger.WithGroup("nav").Warn("rejected position fix", "lat", 91.0)

	assert.Contains(t, debugBuf.String(), "fix processed")
	assert.Contains(t, debugBuf.String(), "rejected position fix")
	assert.NotContains(t, warnBuf.String(), "fix processed")
	assert.Contains(t, warnBuf.String(), "component=director")
	assert.Contains(t, warnBuf.String(), "nav.lat=91")
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	SetTrace(false)
	Trace(logger, "hidden")
	assert.Empty(t, buf.String())

	SetTrace(true)
	defer SetTrace(false)
	Trace(logger, "shown", "k", 1)
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":  slog.LevelDebug,
		"info":   slog.LevelInfo,
		" WARN ": slog.LevelWarn,
		"ERROR":  slog.LevelError,
		"chatty": slog.LevelInfo,
		"":       slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestCapture(t *testing.T) {
	c := NewCapture(3)
	assert.Equal(t, "", c.Last())
	assert.Empty(t, c.Recent(5))

	for _, l := range []string{"a\n", "b\n", "c\n", "d\n"} {
		_, err := c.Write([]byte(l))
		require.NoError(t, err)
	}
	assert.Equal(t, "d", c.Last())
	assert.Equal(t, []string{"b", "c", "d"}, c.Recent(0))
	assert.Equal(t, []string{"c", "d"}, c.Recent(2))
}
