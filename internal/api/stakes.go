package api

import (
	"fmt"
	"net/http"
	"strconv"

	"stakeout/pkg/geo"
	"stakeout/pkg/model"
	"stakeout/pkg/store"
)

const (
	defaultStakeLimit = 50
	maxStakeLimit     = 1000
	maxNearK          = 10
)

// StakesHandler serves the as-staked log.
type StakesHandler struct {
	stakes store.StakeStore
}

// NewStakesHandler creates a handler over st.
func NewStakesHandler(st store.StakeStore) *StakesHandler {
	return &StakesHandler{stakes: st}
}

// HandleRecent lists the newest stakes. ?limit= caps the count.
func (h *StakesHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultStakeLimit)
	if err != nil || limit <= 0 {
		writeError(w, fmt.Errorf("%w: limit must be a positive integer", errBadRequest))
		return
	}
	limit = min(limit, maxStakeLimit)

	list, err := h.stakes.RecentStakes(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// HandleNear lists stakes within k H3 rings of ?lat=&lon=.
func (h *StakesHandler) HandleNear(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil || !geo.Valid(lon, lat) {
		writeError(w, fmt.Errorf("%w: lat and lon required", errBadRequest))
		return
	}
	k, err := intParam(r, "k", 1)
	if err != nil || k < 0 || k > maxNearK {
		writeError(w, fmt.Errorf("%w: k must be between 0 and %d", errBadRequest, maxNearK))
		return
	}

	list, err := h.stakes.StakesNear(r.Context(), lat, lon, k)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// HandleGet returns one stake.
func (h *StakesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, err := h.stakes.GetStake(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if st == nil {
		writeError(w, fmt.Errorf("%w: stake %s", errNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func nonNil(list []*model.Stake) []*model.Stake {
	if list == nil {
		return []*model.Stake{}
	}
	return list
}
