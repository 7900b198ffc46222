package session

import (
	"log/slog"
	"sync"

	"github.com/paulmach/orb"

	"stakeout/pkg/stakeout"
)

// Frame types pushed to the map surface.
const (
	FrameRings      = "rings"
	FrameNavigation = "navigation"
	FrameClear      = "clear"
)

// Frame is one renderer call, serialised for the map surface.
type Frame struct {
	Seq        uint64                     `json:"seq"`
	Type       string                     `json:"type"`
	Center     *orb.Point                 `json:"center,omitempty"`
	Rings      []stakeout.RingDraw        `json:"rings,omitempty"`
	Navigation *stakeout.NavigationResult `json:"navigation,omitempty"`
}

// Broadcaster fans frames out to subscribers. Slow subscribers lose frames
// rather than stall the director.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Frame
	nextID int
	seq    uint64
	rings  *Frame
	nav    *Frame
	buffer int
	logger *slog.Logger
}

// NewBroadcaster creates a broadcaster whose subscriber channels hold buffer frames.
func NewBroadcaster(buffer int, logger *slog.Logger) *Broadcaster {
	if buffer < 2 {
		buffer = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subs:   make(map[int]chan Frame),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe returns a channel primed with the latest ring and navigation
// frames and a function that ends the subscription.
func (b *Broadcaster) Subscribe() (<-chan Frame, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Frame, b.buffer)
	if b.rings != nil {
		ch <- *b.rings
	}
	if b.nav != nil {
		ch <- *b.nav
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish stamps f with the next sequence number and delivers it.
func (b *Broadcaster) Publish(f Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	f.Seq = b.seq
	switch f.Type {
	case FrameRings:
		b.rings = &f
	case FrameNavigation:
		b.nav = &f
	case FrameClear:
		b.rings, b.nav = nil, nil
	}

	for id, ch := range b.subs {
		select {
		case ch <- f:
		default:
			b.logger.Debug("Subscriber buffer full, dropping frame", "subscriber", id, "type", f.Type)
		}
	}
}

// Close ends every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// frameRenderer turns renderer calls into frames.
type frameRenderer struct {
	b *Broadcaster
}

func (r frameRenderer) DrawRings(center orb.Point, rings []stakeout.RingDraw) {
	c := center
	r.b.Publish(Frame{Type: FrameRings, Center: &c, Rings: rings})
}

func (r frameRenderer) DrawNavigation(nav stakeout.NavigationResult) {
	n := nav
	r.b.Publish(Frame{Type: FrameNavigation, Navigation: &n})
}

func (r frameRenderer) ClearStakeout() {
	r.b.Publish(Frame{Type: FrameClear})
}
