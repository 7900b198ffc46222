package gnss

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"stakeout/pkg/geo"
)

const tickRate = 100 * time.Millisecond

// SimConfig holds settings for the simulated receiver.
type SimConfig struct {
	StartLat       float64
	StartLon       float64
	Speed          float64 // m/s
	Heading        float64 // degrees
	HeadingJitter  float64 // std dev of heading change per tick, degrees
	PositionJitter float64 // std dev of reported position noise, meters
	WalkToTarget   bool
	Seed           int64
}

// Simulator is a timer-driven receiver that walks at a constant speed. With
// WalkToTarget set it heads for the current stake and stops on it; otherwise it
// wanders with a random-walk heading.
type Simulator struct {
	mu      sync.Mutex
	cfg     SimConfig
	truth   geo.Point
	heading float64
	target  *geo.Point
	fix     Fix
	rng     *rand.Rand
	now     func() time.Time

	trackBuf *geo.TrackBuffer
	stopCh   chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

// NewSimulator creates and starts a simulated receiver.
func NewSimulator(cfg SimConfig) *Simulator {
	s := newSimulator(cfg)
	s.wg.Add(1)
	go s.loop()
	return s
}

func newSimulator(cfg SimConfig) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Simulator{
		cfg:      cfg,
		truth:    geo.Point{Lat: cfg.StartLat, Lon: cfg.StartLon},
		heading:  math.Mod(geo.NormalizeAngle(cfg.Heading)+360, 360),
		rng:      rand.New(rand.NewSource(seed)),
		now:      time.Now,
		trackBuf: geo.NewTrackBuffer(5, 0.05),
		stopCh:   make(chan struct{}),
	}
	s.publish()
	return s
}

// Position returns the current noisy fix.
func (s *Simulator) Position(ctx context.Context) (Fix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fix, nil
}

// Truth returns the noise-free position, for diagnostics and tests.
func (s *Simulator) Truth() geo.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.truth
}

// SetTarget sets the point the simulator walks to. nil resumes wandering.
func (s *Simulator) SetTarget(p *geo.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil {
		s.target = nil
		return
	}
	t := *p
	s.target = &t
}

// Close stops the simulation loop.
func (s *Simulator) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	return nil
}

func (s *Simulator) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.step(tickRate.Seconds())
		}
	}
}

// step advances the simulation by dt seconds using explicit Euler integration.
func (s *Simulator) step(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dist := s.cfg.Speed * dt
	if s.cfg.WalkToTarget && s.target != nil {
		remaining := geo.Distance(s.truth, *s.target)
		if remaining <= dist {
			s.truth = *s.target
			dist = 0
		} else {
			s.heading = geo.Bearing(s.truth, *s.target)
		}
	} else if s.cfg.HeadingJitter > 0 {
		s.heading = math.Mod(s.heading+s.rng.NormFloat64()*s.cfg.HeadingJitter+360, 360)
	}

	if dist > 0 {
		s.truth = geo.DestinationPoint(s.truth, dist, s.heading)
	}
	s.publish()
}

// publish derives the reported fix from the true position. Caller holds mu.
func (s *Simulator) publish() {
	reported := s.truth
	if s.cfg.PositionJitter > 0 {
		offset := math.Abs(s.rng.NormFloat64() * s.cfg.PositionJitter)
		reported = geo.DestinationPoint(reported, offset, s.rng.Float64()*360)
	}

	speed := s.cfg.Speed
	if s.cfg.WalkToTarget && s.target != nil && s.truth == *s.target {
		speed = 0
	}

	s.fix = Fix{
		Lat:      reported.Lat,
		Lon:      reported.Lon,
		Course:   s.trackBuf.Push(reported, s.heading),
		Speed:    speed,
		Accuracy: s.cfg.PositionJitter,
		Time:     s.now(),
	}
}
