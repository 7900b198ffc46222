package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"stakeout/pkg/session"
	"stakeout/pkg/stakeout"
	"stakeout/pkg/targets"
)

// StakeoutHandler exposes per-session stake-out control.
type StakeoutHandler struct {
	sessions *session.Manager
	library  *targets.Library
	logger   *slog.Logger
}

// NewStakeoutHandler creates a handler. library may be nil, in which case
// targets must be sent as geometry.
func NewStakeoutHandler(sessions *session.Manager, library *targets.Library, logger *slog.Logger) *StakeoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StakeoutHandler{sessions: sessions, library: library, logger: logger.With("component", "api")}
}

// TargetRequest selects a library target by ID or carries a GeoJSON geometry
// or Feature.
type TargetRequest struct {
	TargetID string          `json:"target_id,omitempty"`
	ID       string          `json:"id,omitempty"`
	Geometry json.RawMessage `json:"geometry,omitempty"`
}

// PositionRequest is a location fix.
type PositionRequest struct {
	Lng *float64 `json:"lng"`
	Lat *float64 `json:"lat"`
}

// ZoomRequest reports the map zoom.
type ZoomRequest struct {
	Zoom *float64 `json:"zoom"`
}

// HandleNewSession allocates a session ID.
func (h *StakeoutHandler) HandleNewSession(w http.ResponseWriter, r *http.Request) {
	id := session.NewID()
	s := h.sessions.Get(id)
	writeJSON(w, http.StatusCreated, map[string]any{"session_id": id, "snapshot": s.Snapshot()})
}

// HandleSnapshot returns the session's current stake-out state.
func (h *StakeoutHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Lookup(r.PathValue("sid"))
	if !ok {
		writeError(w, fmt.Errorf("%w: session %s", errNotFound, r.PathValue("sid")))
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// HandleSetTarget starts or replaces the stake-out target.
func (h *StakeoutHandler) HandleSetTarget(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	t, err := h.resolveTarget(&req)
	if err != nil {
		writeError(w, err)
		return
	}

	s := h.sessions.Get(r.PathValue("sid"))
	if err := s.SetTarget(r.Context(), t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *StakeoutHandler) resolveTarget(req *TargetRequest) (stakeout.Target, error) {
	if req.TargetID != "" {
		if h.library == nil {
			return stakeout.Target{}, fmt.Errorf("%w: target library not loaded", errNotFound)
		}
		t, ok := h.library.Get(req.TargetID)
		if !ok {
			return stakeout.Target{}, fmt.Errorf("%w: target %s", errNotFound, req.TargetID)
		}
		return t, nil
	}
	if len(req.Geometry) == 0 {
		return stakeout.Target{}, fmt.Errorf("%w: target_id or geometry required", errBadRequest)
	}
	g, err := targets.ParseGeometry(req.Geometry)
	if err != nil {
		return stakeout.Target{}, err
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = "adhoc"
	}
	return stakeout.NewTarget(id, g)
}

// HandleClearTarget ends the stake-out. Clearing an idle or unknown session
// is not an error.
func (h *StakeoutHandler) HandleClearTarget(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Lookup(r.PathValue("sid"))
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.Clear(r.Context())
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// HandlePosition feeds a location fix.
func (h *StakeoutHandler) HandlePosition(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Lng == nil || req.Lat == nil {
		writeError(w, fmt.Errorf("%w: lng and lat required", stakeout.ErrInvalidPosition))
		return
	}
	s, ok := h.sessions.Lookup(r.PathValue("sid"))
	if !ok {
		writeError(w, fmt.Errorf("%w: session %s", errNotFound, r.PathValue("sid")))
		return
	}
	res, err := s.UpdatePosition(*req.Lng, *req.Lat)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleZoom reports a map zoom change.
func (h *StakeoutHandler) HandleZoom(w http.ResponseWriter, r *http.Request) {
	var req ZoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Zoom == nil {
		writeError(w, fmt.Errorf("%w: zoom required", stakeout.ErrInvalidZoom))
		return
	}
	s := h.sessions.Get(r.PathValue("sid"))
	if err := s.ZoomChanged(r.Context(), *req.Zoom); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// HandleMark records the current fix as staked.
func (h *StakeoutHandler) HandleMark(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Lookup(r.PathValue("sid"))
	if !ok {
		writeError(w, fmt.Errorf("%w: session %s", errNotFound, r.PathValue("sid")))
		return
	}
	stake, err := s.Mark(r.Context())
	if err != nil {
		if statusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("Failed to mark stake", "session_id", s.ID, "error", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stake)
}
