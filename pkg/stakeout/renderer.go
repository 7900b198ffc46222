package stakeout

import (
	"log/slog"
	"time"

	"github.com/paulmach/orb"

	"stakeout/pkg/logging"
)

// RingDraw is everything the map surface needs to draw one ring.
type RingDraw struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	RadiusM     float64 `json:"radius_m"`
	PixelRadius float64 `json:"pixel_radius"`
	StrokeColor string  `json:"stroke_color"`
	StrokeWidth float64 `json:"stroke_width"`
	Visible     bool    `json:"visible"`
	Active      bool    `json:"active"`
}

// NavigationResult is the direction indicator published on every accepted fix.
// NearestPoint is [lng, lat].
type NavigationResult struct {
	TargetID     string    `json:"target_id"`
	NearestPoint orb.Point `json:"nearest_point"`
	BearingDeg   float64   `json:"bearing_deg"`
	DistanceM    float64   `json:"distance_m"`
}

// Renderer is the map surface. It owns no geometry logic; it only draws what
// it is given. Calls happen on the same turn as the triggering event.
type Renderer interface {
	DrawRings(center orb.Point, rings []RingDraw)
	DrawNavigation(nav NavigationResult)
	ClearStakeout()
}

// RenderObserver receives timing for every renderer call.
type RenderObserver interface {
	ObserveRender(op string, d time.Duration)
}

type instrumentedRenderer struct {
	next     Renderer
	observer RenderObserver
	logger   *slog.Logger
}

// InstrumentRenderer wraps r so that every call is timed and traced.
// A nil observer only adds trace logging.
func InstrumentRenderer(r Renderer, observer RenderObserver, logger *slog.Logger) Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &instrumentedRenderer{next: r, observer: observer, logger: logger}
}

func (i *instrumentedRenderer) DrawRings(center orb.Point, rings []RingDraw) {
	start := time.Now()
	i.next.DrawRings(center, rings)
	i.done("draw_rings", start, "rings", len(rings))
}

func (i *instrumentedRenderer) DrawNavigation(nav NavigationResult) {
	start := time.Now()
	i.next.DrawNavigation(nav)
	i.done("draw_navigation", start, "distance_m", nav.DistanceM)
}

func (i *instrumentedRenderer) ClearStakeout() {
	start := time.Now()
	i.next.ClearStakeout()
	i.done("clear", start)
}

func (i *instrumentedRenderer) done(op string, start time.Time, args ...any) {
	d := time.Since(start)
	if i.observer != nil {
		i.observer.ObserveRender(op, d)
	}
	logging.Trace(i.logger, "Render call", append([]any{"op", op, "duration", d}, args...)...)
}

// NopRenderer discards everything. Useful for headless sessions.
type NopRenderer struct{}

func (NopRenderer) DrawRings(orb.Point, []RingDraw) {}
func (NopRenderer) DrawNavigation(NavigationResult) {}
func (NopRenderer) ClearStakeout()                  {}
