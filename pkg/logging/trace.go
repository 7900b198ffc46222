package logging

import (
	"log/slog"
	"sync/atomic"
)

var traceOn atomic.Bool

// SetTrace turns per-fix diagnostics on or off.
func SetTrace(on bool) { traceOn.Store(on) }

// TraceEnabled reports whether per-fix diagnostics are logged.
func TraceEnabled() bool { return traceOn.Load() }

// Trace logs at DEBUG when tracing is on. The director, the renderer and the
// GNSS feed call it for every fix.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if !traceOn.Load() {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug(msg, args...)
}
