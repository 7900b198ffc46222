package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"stakeout/pkg/session"
	"stakeout/pkg/stakeout"
)

// maxBody bounds request bodies; a parcel boundary with a few thousand
// vertices fits comfortably.
const maxBody = 4 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, stakeout.ErrInvalidPosition),
		errors.Is(err, stakeout.ErrInvalidTarget),
		errors.Is(err, stakeout.ErrInvalidZoom),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, stakeout.ErrNoTarget), errors.Is(err, session.ErrNoFix):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoStakeLog):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var (
	errBadRequest = errors.New("bad request")
	errNotFound   = errors.New("not found")
)

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
