package stakeout

import (
	"errors"
	"log/slog"
	"math"

	"github.com/paulmach/orb"

	"stakeout/pkg/geo"
	"stakeout/pkg/logging"
)

// State is the director's lifecycle state.
type State string

const (
	// StateIdle means no target is set; fixes are ignored.
	StateIdle State = "idle"
	// StateActive means a target is set and fixes drive navigation.
	StateActive State = "active"
)

var (
	// ErrInvalidPosition is returned for NaN or out-of-range fixes. State is unchanged.
	ErrInvalidPosition = errors.New("invalid position")
	// ErrNoTarget is returned when a fix arrives while idle.
	ErrNoTarget = errors.New("no stake-out target")
	// ErrInvalidTarget is returned when a target geometry cannot be used.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrInvalidZoom is returned for zoom levels the map surface cannot have.
	ErrInvalidZoom = errors.New("invalid zoom")
)

// Observer is notified of director activity. Implementations must be cheap;
// they run inline with every fix.
type Observer interface {
	FixAccepted(distanceM float64)
	FixRejected(reason string)
	TargetChanged(active bool)
	VisibleSetChanged(rings int)
}

type nopObserver struct{}

func (nopObserver) FixAccepted(float64)   {}
func (nopObserver) FixRejected(string)    {}
func (nopObserver) TargetChanged(bool)    {}
func (nopObserver) VisibleSetChanged(int) {}

// Snapshot is a read-only copy of the director's state.
type Snapshot struct {
	State      State             `json:"state"`
	TargetID   string            `json:"target_id,omitempty"`
	Center     *orb.Point        `json:"center,omitempty"`
	Zoom       float64           `json:"zoom,omitempty"`
	LastFix    *geo.Point        `json:"last_fix,omitempty"`
	Navigation *NavigationResult `json:"navigation,omitempty"`
	Rings      []RingState       `json:"rings"`
	Visible    []Ring            `json:"visible"`
}

// Director keeps the single active target and turns fixes and zoom changes into
// navigation and ring updates for the renderer.
type Director struct {
	renderer Renderer
	rings    *ProximityRings
	lod      *ZoomLevelOfDetail
	proj     *ScreenProjection
	observer Observer
	logger   *slog.Logger

	activeStroke float64
	idleStroke   float64

	state  State
	target *Target

	zoom         float64
	zoomKnown    bool
	renderedZoom float64
	visible      []Ring
	pixels       []float64

	lastFix *geo.Point
	result  *NavigationResult
	states  []RingState
}

// Option configures a Director.
type Option func(*Director)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Director) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithRings replaces the default ring list.
func WithRings(r *ProximityRings) Option {
	return func(d *Director) {
		if r != nil {
			d.rings = r
		}
	}
}

// WithZoomBands replaces the default zoom breakpoints.
func WithZoomBands(bands []ZoomBand) Option {
	return func(d *Director) { d.lod = NewZoomLevelOfDetail(nil, bands) }
}

// WithProjection replaces the default screen projection.
func WithProjection(p *ScreenProjection) Option {
	return func(d *Director) {
		if p != nil {
			d.proj = p
		}
	}
}

// WithObserver attaches an activity observer.
func WithObserver(o Observer) Option {
	return func(d *Director) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithStrokeWidths sets ring stroke widths for armed and passed rings.
func WithStrokeWidths(active, idle float64) Option {
	return func(d *Director) {
		if active > 0 {
			d.activeStroke = active
		}
		if idle > 0 {
			d.idleStroke = idle
		}
	}
}

// NewDirector creates an idle director drawing to r. A nil renderer draws nothing.
func NewDirector(r Renderer, opts ...Option) *Director {
	if r == nil {
		r = NopRenderer{}
	}
	rings, _ := NewProximityRings(defaultRings)
	d := &Director{
		renderer:     r,
		rings:        rings,
		observer:     nopObserver{},
		logger:       slog.Default(),
		activeStroke: 3,
		idleStroke:   1.5,
		state:        StateIdle,
		renderedZoom: math.NaN(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.lod == nil {
		d.lod = NewZoomLevelOfDetail(nil, nil)
	}
	// the selector always works on the director's own ring list
	d.lod = NewZoomLevelOfDetail(d.rings.Rings(), d.lod.bands)
	if d.proj == nil {
		d.proj = NewScreenProjection(1, d.logger)
	}
	return d
}

// State returns the lifecycle state.
func (d *Director) State() State {
	return d.state
}

// Target returns the active target.
func (d *Director) Target() (Target, bool) {
	if d.target == nil {
		return Target{}, false
	}
	return *d.target, true
}

// SetTarget activates t, replacing any previous target without error. The
// geometry is validated and the ring center derived again, so a Target built
// by hand behaves like one from NewTarget.
func (d *Director) SetTarget(t Target) error {
	nt, err := NewTarget(t.ID, t.Geometry)
	if err != nil {
		d.logger.Warn("Rejected stake-out target", "target_id", t.ID, "error", err)
		return err
	}
	t = nt
	replaced := d.target != nil
	d.target = &t
	d.state = StateActive
	d.lastFix = nil
	d.result = nil
	d.states = nil
	d.renderedZoom = math.NaN()

	d.logger.Info("Stake-out target set", "target_id", t.ID, "type", t.Geometry.GeoJSONType(),
		"lat", t.center.Lat, "lon", t.center.Lon, "replaced", replaced)
	d.observer.TargetChanged(true)

	if d.zoomKnown {
		d.recomputeVisible()
		d.renderRings()
	}
	return nil
}

// Clear drops the target and returns to idle.
func (d *Director) Clear() {
	if d.state == StateIdle {
		return
	}
	id := d.target.ID
	d.target = nil
	d.state = StateIdle
	d.lastFix = nil
	d.result = nil
	d.states = nil
	d.visible = nil
	d.pixels = nil
	d.renderedZoom = math.NaN()
	d.renderer.ClearStakeout()
	d.observer.TargetChanged(false)
	d.logger.Info("Stake-out target cleared", "target_id", id)
}

// Stop ends the stake-out session: the target is cleared and the known zoom forgotten.
func (d *Director) Stop() {
	d.Clear()
	d.zoom = 0
	d.zoomKnown = false
}

// UpdatePosition processes a fix. Invalid fixes and fixes while idle are ignored
// and reported through the returned error; the previous result is kept.
func (d *Director) UpdatePosition(lng, lat float64) (NavigationResult, error) {
	if !geo.Valid(lng, lat) {
		d.logger.Warn("Rejected position fix", "lng", lng, "lat", lat)
		d.observer.FixRejected("invalid")
		return d.lastResult(), ErrInvalidPosition
	}
	if d.state != StateActive {
		logging.Trace(d.logger, "Ignoring fix without target", "lng", lng, "lat", lat)
		d.observer.FixRejected("no_target")
		return NavigationResult{}, ErrNoTarget
	}

	pos := geo.Point{Lat: lat, Lon: lng}
	center := d.target.center

	nearest, ok := geo.NearestOnBoundary(pos, d.target.Geometry)
	if !ok {
		nearest = center
	}
	res := NavigationResult{
		TargetID:     d.target.ID,
		NearestPoint: nearest.Orb(),
		BearingDeg:   geo.Bearing(pos, nearest),
		DistanceM:    geo.Distance(pos, nearest),
	}

	d.lastFix = &pos
	d.result = &res
	d.states = d.rings.ActivationFor(pos, &center)

	d.renderer.DrawNavigation(res)
	if d.zoomKnown {
		if d.zoom != d.renderedZoom {
			d.recomputeVisible()
		}
		d.renderRings()
	}

	d.observer.FixAccepted(res.DistanceM)
	logging.Trace(d.logger, "Fix processed", "distance_m", res.DistanceM, "bearing", res.BearingDeg)
	return res, nil
}

// ZoomChanged re-derives the visible ring set and pixel radii for a new zoom.
func (d *Director) ZoomChanged(zoom float64) error {
	if !usableZoom(zoom) || zoom > MaxZoom {
		d.logger.Warn("Rejected zoom change", "zoom", zoom)
		return ErrInvalidZoom
	}
	if d.zoomKnown && zoom == d.zoom {
		return nil
	}
	d.zoom = zoom
	d.zoomKnown = true
	if d.state == StateActive {
		d.recomputeVisible()
		d.renderRings()
	}
	return nil
}

// Result returns the last navigation result.
func (d *Director) Result() (NavigationResult, bool) {
	if d.result == nil {
		return NavigationResult{}, false
	}
	return *d.result, true
}

// RingStates returns the activation state from the last accepted fix.
func (d *Director) RingStates() []RingState {
	out := make([]RingState, len(d.states))
	copy(out, d.states)
	return out
}

// VisibleRings returns the ring set selected for the current zoom.
func (d *Director) VisibleRings() []Ring {
	out := make([]Ring, len(d.visible))
	copy(out, d.visible)
	return out
}

// Snapshot copies the director state.
func (d *Director) Snapshot() Snapshot {
	s := Snapshot{
		State:   d.state,
		Rings:   d.RingStates(),
		Visible: d.VisibleRings(),
	}
	if d.zoomKnown {
		s.Zoom = d.zoom
	}
	if d.target != nil {
		c := d.target.center.Orb()
		s.TargetID = d.target.ID
		s.Center = &c
	}
	if d.lastFix != nil {
		p := *d.lastFix
		s.LastFix = &p
	}
	if d.result != nil {
		r := *d.result
		s.Navigation = &r
	}
	return s
}

func (d *Director) lastResult() NavigationResult {
	if d.result == nil {
		return NavigationResult{}
	}
	return *d.result
}

func (d *Director) recomputeVisible() {
	center := d.target.center
	d.visible = d.lod.SelectedRings(d.zoom)
	d.pixels = make([]float64, len(d.visible))
	for i, r := range d.visible {
		d.pixels[i] = d.proj.PixelRadiusAt(r.RadiusM, center, d.zoom)
	}
	d.renderedZoom = d.zoom
	d.observer.VisibleSetChanged(len(d.visible))
}

func (d *Director) renderRings() {
	all := d.rings.Rings()
	draws := make([]RingDraw, len(all))
	for i, r := range all {
		active := i < len(d.states) && d.states[i].Active
		width := d.idleStroke
		if active {
			width = d.activeStroke
		}
		draw := RingDraw{
			ID:          r.ID(),
			Label:       r.Label,
			RadiusM:     r.RadiusM,
			StrokeColor: r.Color.Hex(),
			StrokeWidth: width,
			Active:      active,
		}
		if i < len(d.visible) {
			draw.Visible = true
			draw.PixelRadius = d.pixels[i]
		}
		draws[i] = draw
	}
	d.renderer.DrawRings(d.target.center.Orb(), draws)
}
