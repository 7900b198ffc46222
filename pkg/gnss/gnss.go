// Package gnss provides location sources that drive the stake-out director:
// a simulated receiver, GPX track replay and the polling feed that forwards
// fixes to a session.
package gnss

import (
	"context"
	"errors"
	"time"
)

// ErrNoFix is returned while a source has no position yet.
var ErrNoFix = errors.New("no position fix")

// Fix is a single receiver position.
type Fix struct {
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Course   float64   `json:"course"`   // degrees true, course over ground
	Speed    float64   `json:"speed"`    // m/s
	Accuracy float64   `json:"accuracy"` // 1-sigma horizontal, meters
	Time     time.Time `json:"time"`
}

// Source defines a location provider.
type Source interface {
	// Position returns the most recent fix.
	Position(ctx context.Context) (Fix, error)
	// Close releases resources associated with the source.
	Close() error
}
