// Package metrics exposes stake-out activity as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records director, renderer and session activity. It satisfies the
// stakeout Observer and RenderObserver interfaces, so one collector can be
// shared by every session's director.
type Collector struct {
	gatherer prometheus.Gatherer

	Fixes              *prometheus.CounterVec
	TargetChanges      *prometheus.CounterVec
	VisibleRecomputes  prometheus.Counter
	VisibleRings       prometheus.Gauge
	NavigationDistance prometheus.Gauge
	RenderDuration     *prometheus.HistogramVec
	Stakes             prometheus.Counter
	Sessions           prometheus.Gauge
	Cues               prometheus.Counter
}

// NewCollector registers stake-out metrics against the provided registerer.
// A nil registerer uses the process default.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	fixes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stakeout_fixes_total",
		Help: "Position fixes handled by the director, by result.",
	}, []string{"result"}), "stakeout_fixes_total")
	if err != nil {
		return nil, err
	}

	targets, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stakeout_target_changes_total",
		Help: "Targets set or cleared.",
	}, []string{"action"}), "stakeout_target_changes_total")
	if err != nil {
		return nil, err
	}

	recomputes, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stakeout_visible_set_recomputes_total",
		Help: "Times the zoom-dependent ring set was re-derived.",
	}), "stakeout_visible_set_recomputes_total")
	if err != nil {
		return nil, err
	}

	visible, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stakeout_visible_rings",
		Help: "Rings visible at the most recently rendered zoom.",
	}), "stakeout_visible_rings")
	if err != nil {
		return nil, err
	}

	distance, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stakeout_navigation_distance_meters",
		Help: "Distance to the target boundary at the last accepted fix.",
	}), "stakeout_navigation_distance_meters")
	if err != nil {
		return nil, err
	}

	render, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stakeout_render_duration_seconds",
		Help:    "Time spent in map-surface render calls.",
		Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}, []string{"op"}), "stakeout_render_duration_seconds")
	if err != nil {
		return nil, err
	}

	stakes, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stakeout_stakes_recorded_total",
		Help: "As-staked points written to the stake log.",
	}), "stakeout_stakes_recorded_total")
	if err != nil {
		return nil, err
	}

	sessions, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stakeout_sessions",
		Help: "Live stake-out sessions.",
	}), "stakeout_sessions")
	if err != nil {
		return nil, err
	}

	cues, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stakeout_audio_cues_total",
		Help: "Proximity tones played.",
	}), "stakeout_audio_cues_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:           gatherer,
		Fixes:              fixes,
		TargetChanges:      targets,
		VisibleRecomputes:  recomputes,
		VisibleRings:       visible,
		NavigationDistance: distance,
		RenderDuration:     render,
		Stakes:             stakes,
		Sessions:           sessions,
		Cues:               cues,
	}, nil
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// FixAccepted counts an accepted fix and records its distance.
func (c *Collector) FixAccepted(distanceM float64) {
	if c == nil {
		return
	}
	c.Fixes.WithLabelValues("accepted").Inc()
	c.NavigationDistance.Set(distanceM)
}

// FixRejected counts a rejected fix under reason.
func (c *Collector) FixRejected(reason string) {
	if c == nil {
		return
	}
	c.Fixes.WithLabelValues(reason).Inc()
}

// TargetChanged counts a target being set or cleared.
func (c *Collector) TargetChanged(active bool) {
	if c == nil {
		return
	}
	action := "clear"
	if active {
		action = "set"
	}
	c.TargetChanges.WithLabelValues(action).Inc()
}

// VisibleSetChanged counts a ring-set recompute.
func (c *Collector) VisibleSetChanged(rings int) {
	if c == nil {
		return
	}
	c.VisibleRecomputes.Inc()
	c.VisibleRings.Set(float64(rings))
}

// ObserveRender records the duration of a render call.
func (c *Collector) ObserveRender(op string, d time.Duration) {
	if c == nil {
		return
	}
	c.RenderDuration.WithLabelValues(op).Observe(d.Seconds())
}

// StakeRecorded counts a stake written to the log.
func (c *Collector) StakeRecorded() {
	if c == nil {
		return
	}
	c.Stakes.Inc()
}

// SetSessions updates the live session gauge.
func (c *Collector) SetSessions(n int) {
	if c == nil {
		return
	}
	c.Sessions.Set(float64(n))
}

// CuePlayed counts a proximity tone.
func (c *Collector) CuePlayed() {
	if c == nil {
		return
	}
	c.Cues.Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
