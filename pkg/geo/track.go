package geo

import "sync"

// TrackBuffer maintains a rolling window of fixes and derives the course over ground.
// Fixes closer than minMove meters to the previous sample are dropped so that a
// stationary receiver does not produce a course from position noise.
type TrackBuffer struct {
	mu         sync.RWMutex
	samples    []Point
	windowSize int
	minMove    float64
}

// NewTrackBuffer creates a new buffer with the specified sample window size.
func NewTrackBuffer(windowSize int, minMove float64) *TrackBuffer {
	if windowSize < 2 {
		windowSize = 2
	}
	if minMove < 0 {
		minMove = 0
	}
	return &TrackBuffer{
		windowSize: windowSize,
		minMove:    minMove,
	}
}

// Push adds a new fix and returns the current course in degrees.
// If the buffer has fewer than 2 samples, it returns the provided default course.
func (b *TrackBuffer) Push(p Point, defaultCourse float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n := len(b.samples); n > 0 && Distance(b.samples[n-1], p) < b.minMove {
		return b.courseLocked(defaultCourse)
	}

	b.samples = append(b.samples, p)
	if len(b.samples) > b.windowSize {
		b.samples = b.samples[1:]
	}
	return b.courseLocked(defaultCourse)
}

func (b *TrackBuffer) courseLocked(defaultCourse float64) float64 {
	if len(b.samples) < 2 {
		return defaultCourse
	}
	return Bearing(b.samples[0], b.samples[len(b.samples)-1])
}

// Len returns the number of retained samples.
func (b *TrackBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Reset clears the buffer history.
func (b *TrackBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = nil
}
