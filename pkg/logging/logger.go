// Package logging sets up the slog handlers for the server log, the request
// log and the stake-out event log.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"stakeout/pkg/config"
)

// RequestLogger is the logger instance for HTTP requests.
var RequestLogger *slog.Logger

var (
	eventMu   sync.Mutex
	eventPath string
)

// Event is a stake-out milestone written to the event log: target set or
// cleared, stake marked, session expired.
type Event struct {
	Timestamp time.Time
	Type      string
	Session   string
	Target    string
	Title     string
	Summary   string
}

// Init rotates the previous run's logs, installs the server logger as the
// slog default and opens the request logger. The returned function closes
// the log files.
func Init(cfg *config.LogConfig) (func(), error) {
	rotate(cfg.Server.Path, cfg.Requests.Path, cfg.Events.Path)

	SetEventLogPath(cfg.Events.Path)
	SetTrace(cfg.Trace)

	serverFile, err := openLog(cfg.Server.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open server log: %w", err)
	}
	requestFile, err := openLog(cfg.Requests.Path)
	if err != nil {
		serverFile.Close()
		return nil, fmt.Errorf("failed to open request log: %w", err)
	}

	level := parseLevel(cfg.Server.Level)
	slog.SetDefault(slog.New(fanout{
		// file gets everything at the configured level, with source at DEBUG
		slog.NewTextHandler(serverFile, &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}),
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: max(level, slog.LevelInfo)}),
		slog.NewTextHandler(ServerCapture, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}))
	RequestLogger = slog.New(slog.NewTextHandler(requestFile, &slog.HandlerOptions{Level: parseLevel(cfg.Requests.Level)}))

	return func() {
		_ = errors.Join(serverFile.Close(), requestFile.Close())
	}, nil
}

// parseLevel maps a config level name to a slog level. Unknown names log at INFO.
func parseLevel(name string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func openLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

//nolint:gocritic // slog.Handler takes the record by value
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// rotate moves each existing log to <path>.old, replacing any older copy.
func rotate(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = os.Remove(p + ".old")
		_ = os.Rename(p, p+".old")
	}
}

// SetEventLogPath configures the event log file. An empty path disables it.
func SetEventLogPath(path string) {
	eventMu.Lock()
	defer eventMu.Unlock()
	eventPath = path
}

// LogEvent appends e to the event log and the event capture.
// Format: [2006-01-02 15:04:05] [type] Title (session=..., target=...) - Summary
func LogEvent(e *Event) {
	line := formatEvent(e)
	_, _ = EventCapture.Write([]byte(line))

	eventMu.Lock()
	defer eventMu.Unlock()
	if eventPath == "" {
		return
	}
	f, err := openLog(eventPath)
	if err != nil {
		slog.Error("Failed to open event log", "error", err)
		return
	}
	defer f.Close()
	if _, err := io.WriteString(f, line+"\n"); err != nil {
		slog.Error("Failed to write event log", "error", err)
	}
}

func formatEvent(e *Event) string {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", ts.Format("2006-01-02 15:04:05"), e.Type, e.Title)

	var tags []string
	if e.Session != "" {
		tags = append(tags, "session="+e.Session)
	}
	if e.Target != "" {
		tags = append(tags, "target="+e.Target)
	}
	if len(tags) > 0 {
		b.WriteString(" (" + strings.Join(tags, ", ") + ")")
	}
	if e.Summary != "" {
		b.WriteString(" - " + e.Summary)
	}
	return b.String()
}
