package gnss

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"stakeout/pkg/geo"
)

// Replay plays back a recorded GPX track in real time (scaled by rate),
// interpolating between track points.
type Replay struct {
	mu     sync.Mutex
	points []trackPoint
	span   time.Duration
	rate   float64
	loop   bool
	start  time.Time
	now    func() time.Time
	closed bool
}

type trackPoint struct {
	pos    geo.Point
	offset time.Duration // from the first point
}

// NewReplayFile loads a GPX file for replay.
func NewReplayFile(path string, rate float64, loop bool) (*Replay, error) {
	g, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX file: %w", err)
	}
	return newReplay(g, rate, loop, time.Now)
}

// NewReplayBytes parses GPX data for replay.
func NewReplayBytes(data []byte, rate float64, loop bool) (*Replay, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX data: %w", err)
	}
	return newReplay(g, rate, loop, time.Now)
}

func newReplay(g *gpx.GPX, rate float64, loop bool, now func() time.Time) (*Replay, error) {
	var raw []gpx.GPXPoint
	for _, track := range g.Tracks {
		for _, segment := range track.Segments {
			raw = append(raw, segment.Points...)
		}
	}
	if len(raw) == 0 {
		for _, route := range g.Routes {
			raw = append(raw, route.Points...)
		}
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("GPX contains no track or route points")
	}

	// Untimed tracks are played at one point per second.
	timed := !raw[0].Timestamp.IsZero()
	points := make([]trackPoint, 0, len(raw))
	for i, p := range raw {
		offset := time.Duration(i) * time.Second
		if timed && !p.Timestamp.IsZero() {
			offset = p.Timestamp.Sub(raw[0].Timestamp)
		}
		if n := len(points); n > 0 && offset < points[n-1].offset {
			offset = points[n-1].offset
		}
		points = append(points, trackPoint{
			pos:    geo.Point{Lat: p.Latitude, Lon: p.Longitude},
			offset: offset,
		})
	}

	if !(rate > 0) {
		rate = 1
	}
	return &Replay{
		points: points,
		span:   points[len(points)-1].offset,
		rate:   rate,
		loop:   loop,
		start:  now(),
		now:    now,
	}, nil
}

// Len returns the number of track points.
func (r *Replay) Len() int {
	return len(r.points)
}

// Position returns the interpolated track position at the current replay time.
func (r *Replay) Position(ctx context.Context) (Fix, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Fix{}, ErrNoFix
	}

	now := r.now()
	elapsed := time.Duration(float64(now.Sub(r.start)) * r.rate)
	if r.span > 0 && r.loop {
		elapsed %= r.span
	}

	i := r.segmentAt(elapsed)
	a := r.points[i]
	if i == len(r.points)-1 {
		return Fix{Lat: a.pos.Lat, Lon: a.pos.Lon, Time: now}, nil
	}
	b := r.points[i+1]

	frac := 0.0
	if d := b.offset - a.offset; d > 0 {
		frac = float64(elapsed-a.offset) / float64(d)
	}
	legLen := geo.Distance(a.pos, b.pos)
	course := geo.Bearing(a.pos, b.pos)
	pos := geo.DestinationPoint(a.pos, legLen*frac, course)

	speed := 0.0
	if d := (b.offset - a.offset).Seconds(); d > 0 {
		speed = legLen / d
	}
	return Fix{Lat: pos.Lat, Lon: pos.Lon, Course: course, Speed: speed, Time: now}, nil
}

// segmentAt returns the index of the last point at or before elapsed.
func (r *Replay) segmentAt(elapsed time.Duration) int {
	lo, hi := 0, len(r.points)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if r.points[mid].offset <= elapsed {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// Close stops the replay.
func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
