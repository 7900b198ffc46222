// Package session holds per-client stake-out state. Each session owns one
// navigation director and serialises every call into it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stakeout/pkg/cue"
	"stakeout/pkg/geo"
	"stakeout/pkg/logging"
	"stakeout/pkg/model"
	"stakeout/pkg/stakeout"
)

var (
	// ErrNoFix is returned by Mark before the first accepted fix.
	ErrNoFix = errors.New("no position fix yet")
	// ErrNoStakeLog is returned by Mark when no stake store is configured.
	ErrNoStakeLog = errors.New("stake log unavailable")
)

// Session is one client's stake-out.
type Session struct {
	ID      string
	Created time.Time

	mu       sync.Mutex
	director *stakeout.Director
	frames   *Broadcaster
	cues     *cue.Tracker
	mgr      *Manager
	lastFix  *geo.Point
	logger   *slog.Logger
}

// SetTarget starts or replaces the stake-out target.
func (s *Session) SetTarget(ctx context.Context, t stakeout.Target) error {
	s.mu.Lock()
	if err := s.director.SetTarget(t); err != nil {
		s.mu.Unlock()
		return err
	}
	t, _ = s.director.Target()
	s.lastFix = nil
	s.cues.Reset()
	// persisted under the lock so a racing Clear cannot be overwritten
	s.mgr.persistTarget(ctx, s, &t)
	s.mu.Unlock()

	c := t.Center()
	logging.LogEvent(&logging.Event{
		Type:    "target",
		Session: s.ID,
		Target:  t.ID,
		Title:   "Target set",
		Summary: fmt.Sprintf("centre %.7f,%.7f", c.Lat, c.Lon),
	})
	s.mgr.notifyTarget(s, &t)
	return nil
}

// Clear ends the stake-out.
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	wasActive := s.director.State() == stakeout.StateActive
	s.director.Clear()
	s.lastFix = nil
	s.cues.Reset()
	if wasActive {
		s.mgr.persistTarget(ctx, s, nil)
	}
	s.mu.Unlock()

	if !wasActive {
		return
	}
	logging.LogEvent(&logging.Event{Type: "target", Session: s.ID, Title: "Target cleared"})
	s.mgr.notifyTarget(s, nil)
}

// UpdatePosition feeds a fix to the director and the audio cues.
func (s *Session) UpdatePosition(lng, lat float64) (stakeout.NavigationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.director.UpdatePosition(lng, lat)
	if err != nil {
		return res, err
	}
	s.lastFix = &geo.Point{Lat: lat, Lon: lng}
	s.cues.Update(s.director.RingStates())
	return res, nil
}

// ZoomChanged tells the director the map zoom changed.
func (s *Session) ZoomChanged(ctx context.Context, zoom float64) error {
	s.mu.Lock()
	err := s.director.ZoomChanged(zoom)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.mgr.zoomChanged(ctx, s, zoom)
	return nil
}

// Snapshot returns a copy of the director state.
func (s *Session) Snapshot() stakeout.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.director.Snapshot()
}

// Subscribe returns the session's render frames. Call the returned function
// to unsubscribe.
func (s *Session) Subscribe() (<-chan Frame, func()) {
	return s.frames.Subscribe()
}

// Cues returns the session's audio cue tracker.
func (s *Session) Cues() *cue.Tracker {
	return s.cues
}

// Mark records the last accepted fix as the as-staked position of the current
// target. The design position is the nearest point of the target at that fix.
func (s *Session) Mark(ctx context.Context) (*model.Stake, error) {
	s.mu.Lock()
	if s.director.State() != stakeout.StateActive {
		s.mu.Unlock()
		return nil, stakeout.ErrNoTarget
	}
	nav, ok := s.director.Result()
	if !ok || s.lastFix == nil {
		s.mu.Unlock()
		return nil, ErrNoFix
	}
	stake := &model.Stake{
		SessionID:  s.ID,
		TargetID:   nav.TargetID,
		TargetLat:  nav.NearestPoint.Lat(),
		TargetLon:  nav.NearestPoint.Lon(),
		Lat:        s.lastFix.Lat,
		Lon:        s.lastFix.Lon,
		ResidualM:  nav.DistanceM,
		BearingDeg: nav.BearingDeg,
	}
	if ring, ok := stakeout.Innermost(s.director.RingStates()); ok {
		stake.Ring = ring.Label
	}
	s.mu.Unlock()

	if s.mgr.stakes == nil {
		return nil, ErrNoStakeLog
	}
	if err := s.mgr.stakes.RecordStake(ctx, stake); err != nil {
		return nil, fmt.Errorf("failed to record stake: %w", err)
	}

	s.logger.Info("Stake marked", "target_id", stake.TargetID, "residual_m", stake.ResidualM, "ring", stake.Ring)
	logging.LogEvent(&logging.Event{
		Timestamp: stake.CreatedAt,
		Type:      "stake",
		Session:   s.ID,
		Target:    stake.TargetID,
		Title:     "Stake marked",
		Summary:   fmt.Sprintf("staked at %.7f,%.7f, %.3f m from design (ring %s)", stake.Lat, stake.Lon, stake.ResidualM, stake.Ring),
	})
	s.mgr.metrics.StakeRecorded()
	return stake, nil
}

func (s *Session) close() {
	s.mu.Lock()
	s.director.Stop()
	s.mu.Unlock()
	s.frames.Close()
}
