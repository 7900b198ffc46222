package api

import (
	"fmt"
	"net/http"

	"github.com/paulmach/orb/geojson"

	"stakeout/pkg/targets"
)

// TargetsHandler lists the target library.
type TargetsHandler struct {
	library *targets.Library
}

// NewTargetsHandler creates a handler over lib.
func NewTargetsHandler(lib *targets.Library) *TargetsHandler {
	return &TargetsHandler{library: lib}
}

// HandleList returns every library target, sorted by ID.
func (h *TargetsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.library.List())
}

// HandleGet returns one target as a GeoJSON Feature.
func (h *TargetsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := h.library.Get(id)
	if !ok {
		writeError(w, fmt.Errorf("%w: target %s", errNotFound, id))
		return
	}
	f := geojson.NewFeature(t.Geometry)
	f.ID = t.ID
	c := t.Center()
	f.Properties["center"] = []float64{c.Lon, c.Lat}

	w.Header().Set("Content-Type", "application/geo+json")
	data, err := f.MarshalJSON()
	if err != nil {
		writeError(w, err)
		return
	}
	_, _ = w.Write(data)
}
