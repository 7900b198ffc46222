package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"stakeout/pkg/config"
	"stakeout/pkg/stakeout"
)

// persistedTarget is the stored form of the persisted session's target.
type persistedTarget struct {
	ID       string            `json:"id"`
	Geometry *geojson.Geometry `json:"geometry"`
}

func encodeTarget(t *stakeout.Target) ([]byte, error) {
	return json.Marshal(persistedTarget{ID: t.ID, Geometry: geojson.NewGeometry(t.Geometry)})
}

func decodeTarget(data []byte) (stakeout.Target, error) {
	var pt persistedTarget
	if err := json.Unmarshal(data, &pt); err != nil {
		return stakeout.Target{}, fmt.Errorf("failed to decode persisted target: %w", err)
	}
	if pt.Geometry == nil {
		return stakeout.Target{}, fmt.Errorf("%w: persisted target has no geometry", stakeout.ErrInvalidTarget)
	}
	return stakeout.NewTarget(pt.ID, pt.Geometry.Coordinates)
}

// Restore re-applies the persisted session's last zoom and target. It returns
// true if a target was restored. Unreadable state is logged and discarded.
func (m *Manager) Restore(ctx context.Context) bool {
	if m.persistID == "" || m.state == nil {
		return false
	}
	s := m.Get(m.persistID)

	if val, ok := m.state.GetState(ctx, config.KeyLastZoom); ok && val != "" {
		if zoom, err := strconv.ParseFloat(val, 64); err == nil {
			s.mu.Lock()
			_ = s.director.ZoomChanged(zoom)
			s.mu.Unlock()
		} else {
			m.logger.Warn("Discarding persisted zoom", "value", val, "error", err)
		}
	}

	val, ok := m.state.GetState(ctx, config.KeyLastTarget)
	if !ok || val == "" {
		return false
	}
	t, err := decodeTarget([]byte(val))
	if err != nil {
		m.logger.Error("Failed to restore persisted target", "error", err)
		_ = m.state.DeleteState(ctx, config.KeyLastTarget)
		return false
	}
	if err := s.SetTarget(ctx, t); err != nil {
		m.logger.Error("Failed to restore persisted target", "error", err)
		return false
	}
	m.logger.Info("Restored persisted target", "session_id", s.ID, "target_id", t.ID)
	return true
}
