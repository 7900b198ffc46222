package cue

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"stakeout/pkg/stakeout"
)

// Default tone parameters.
const (
	DefaultBaseFrequency = 440.0
	DefaultToneLength    = 120 * time.Millisecond
)

// CueObserver is told about every tone played.
type CueObserver interface {
	CuePlayed()
}

// Tracker watches ring activation and plays a tone each time the innermost
// armed ring moves inward. Each ring step raises the pitch by a whole tone.
type Tracker struct {
	mu       sync.Mutex
	player   Player
	base     float64
	length   time.Duration
	enabled  bool
	last     int // index of the innermost armed ring, -1 for none
	observer CueObserver
	logger   *slog.Logger
}

// NewTracker creates an enabled tracker.
func NewTracker(p Player, baseFreq float64, length time.Duration, logger *slog.Logger) *Tracker {
	if p == nil {
		p = NopPlayer{}
	}
	if baseFreq <= 0 {
		baseFreq = DefaultBaseFrequency
	}
	if length <= 0 {
		length = DefaultToneLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		player:  p,
		base:    baseFreq,
		length:  length,
		enabled: true,
		last:    -1,
		logger:  logger.With("component", "cue"),
	}
}

// SetObserver attaches an observer for played cues.
func (t *Tracker) SetObserver(o CueObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observer = o
}

// SetEnabled toggles audio. Tracking continues while disabled so that
// re-enabling does not replay rings already passed.
func (t *Tracker) SetEnabled(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = on
}

// Enabled reports whether tones are played.
func (t *Tracker) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Reset forgets the armed ring, e.g. when the target changes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = -1
}

// Update takes the ring states from the latest fix. It returns true if a tone
// was played.
func (t *Tracker) Update(states []stakeout.RingState) bool {
	idx := innermostIndex(states)

	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.last
	t.last = idx
	if idx <= prev || !t.enabled {
		return false
	}

	freq := Frequency(t.base, idx)
	if err := t.player.Play(freq, t.length); err != nil {
		t.logger.Warn("Failed to play cue", "error", err)
		return false
	}
	t.logger.Debug("Cue played", "ring", states[idx].Ring.Label, "freq", freq)
	if t.observer != nil {
		t.observer.CuePlayed()
	}
	return true
}

// Frequency is the tone for the ring at index idx of the descending ring list.
func Frequency(base float64, idx int) float64 {
	return base * math.Pow(2, float64(idx)/6)
}

func innermostIndex(states []stakeout.RingState) int {
	for i := len(states) - 1; i >= 0; i-- {
		if states[i].Active {
			return i
		}
	}
	return -1
}
