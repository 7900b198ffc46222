package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakeout/pkg/config"
	"stakeout/pkg/gnss"
	"stakeout/pkg/logging"
	"stakeout/pkg/session"
	"stakeout/pkg/stakeout"
)

const track = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="46.6263" lon="14.2230"><time>2024-05-01T08:00:00Z</time></trkpt>
    <trkpt lat="46.6264" lon="14.2230"><time>2024-05-01T08:00:10Z</time></trkpt>
  </trkseg></trk>
</gpx>`

func TestRun(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "stakeout.yaml")
	tempConfig := `
server:
    address: 127.0.0.1:0
log:
    server:
        path: "` + filepath.ToSlash(filepath.Join(dir, "logs", "server.log")) + `"
        level: "debug"
    requests:
        path: "` + filepath.ToSlash(filepath.Join(dir, "logs", "requests.log")) + `"
        level: "info"
    events:
        path: "` + filepath.ToSlash(filepath.Join(dir, "logs", "events.log")) + `"
        level: "info"
db:
    path: "` + filepath.ToSlash(filepath.Join(dir, "stakeout.db")) + `"
    stake_retention: 30d
gnss:
    provider: sim
    interval: 50ms
targets:
    paths: ["` + filepath.ToSlash(filepath.Join(dir, "targets")) + `"]
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(tempConfig), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "targets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "targets", "pegs.geojson"), []byte(
		`{"type":"FeatureCollection","features":[{"type":"Feature","id":"P-17","properties":{"name":"Corner peg"},"geometry":{"type":"Point","coordinates":[14.2230,46.6263]}}]}`), 0o644))

	// Cancel quickly to exercise the start-up and shutdown sequence
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, run(ctx, cfgPath))
	assert.FileExists(t, filepath.Join(dir, "stakeout.db"))
	assert.FileExists(t, filepath.Join(dir, "logs", "server.log"))
}

func TestRun_BadConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "stakeout.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("gnss:\n    provider: nmea\n"), 0o644))
	assert.ErrorContains(t, run(context.Background(), cfgPath), "failed to load config")
}

func TestInitGNSS(t *testing.T) {
	ctx := context.Background()
	gpxPath := filepath.Join(t.TempDir(), "walk.gpx")
	require.NoError(t, os.WriteFile(gpxPath, []byte(track), 0o644))

	tests := []struct {
		name     string
		provider string
		path     string
		check    func(t *testing.T, src gnss.Source)
	}{
		{"none", config.GNSSProviderNone, "", func(t *testing.T, src gnss.Source) {
			assert.Nil(t, src)
		}},
		{"sim", config.GNSSProviderSim, "", func(t *testing.T, src gnss.Source) {
			assert.IsType(t, &gnss.Simulator{}, src)
		}},
		{"replay", config.GNSSProviderReplay, gpxPath, func(t *testing.T, src gnss.Source) {
			require.IsType(t, &gnss.Replay{}, src)
			assert.Equal(t, 2, src.(*gnss.Replay).Len())
		}},
		{"replay missing file falls back", config.GNSSProviderReplay, filepath.Join(t.TempDir(), "gone.gpx"), func(t *testing.T, src gnss.Source) {
			assert.Nil(t, src)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.GNSS.Provider = tt.provider
			cfg.GNSS.Replay.Path = tt.path
			mgr := session.NewManager(session.Options{})
			defer mgr.Close()

			src := initGNSS(ctx, config.NewProvider(cfg, nil), mgr, session.DeviceSessionID)
			if src != nil {
				defer src.Close()
			}
			tt.check(t, src)
		})
	}
}

func TestDeviceSink(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(session.Options{})
	defer mgr.Close()

	sink := deviceSink(mgr, session.DeviceSessionID)

	// idle fixes are dropped without creating state
	sink(gnss.Fix{Lat: 46.6263, Lon: 14.2230})
	assert.Nil(t, mgr.Get(session.DeviceSessionID).Snapshot().LastFix)

	target, err := stakeout.NewTarget("P-17", orb.Point{14.2230, 46.6263})
	require.NoError(t, err)
	require.NoError(t, mgr.Get(session.DeviceSessionID).SetTarget(ctx, target))

	sink(gnss.Fix{Lat: 46.62631, Lon: 14.2230})
	snap := mgr.Get(session.DeviceSessionID).Snapshot()
	require.NotNil(t, snap.Navigation)
	assert.InDelta(t, 1.11, snap.Navigation.DistanceM, 0.05)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.RequestLogger
	logging.RequestLogger = slog.New(slog.NewTextHandler(&buf, nil))
	defer func() { logging.RequestLogger = prev }()

	h := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/stakeout/device/zoom", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), "Request Processed")
	assert.Contains(t, buf.String(), "path=/api/stakeout/device/zoom")
}

func TestRunServerLifecycle_Signal(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	quit := make(chan os.Signal, 1)
	quit <- os.Interrupt
	assert.NoError(t, runServerLifecycle(context.Background(), srv, quit))
}
