package gnss

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"stakeout/pkg/logging"
)

// Feed polls a Source and forwards every fix to a sink.
type Feed struct {
	src      Source
	interval time.Duration
	sink     func(Fix)
	logger   *slog.Logger
}

// NewFeed creates a feed. A non-positive interval defaults to one second.
func NewFeed(src Source, interval time.Duration, sink func(Fix), logger *slog.Logger) *Feed {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		src:      src,
		interval: interval,
		sink:     sink,
		logger:   logger.With("component", "gnss"),
	}
}

// Run polls until ctx is cancelled. Source errors are logged once per outage.
func (f *Feed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fix, err := f.src.Position(ctx)
			if err != nil {
				if !failing && !errors.Is(err, context.Canceled) {
					f.logger.Warn("Location source failed", "error", err)
				}
				failing = true
				continue
			}
			if failing {
				f.logger.Info("Location source recovered")
				failing = false
			}
			logging.Trace(f.logger, "Fix", "lat", fix.Lat, "lon", fix.Lon, "course", fix.Course)
			f.sink(fix)
		}
	}
}
