package model

import (
	"time"
)

// Stake is an as-staked point: where the operator actually drove the marker for
// a target, and how far that landed from the design position.
type Stake struct {
	ID        string `json:"id"`         // UUID
	SessionID string `json:"session_id"` // session that recorded it
	TargetID  string `json:"target_id"`

	// Design position (nearest boundary point at the time of marking)
	TargetLat float64 `json:"target_lat"`
	TargetLon float64 `json:"target_lon"`

	// Staked position
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	ResidualM  float64 `json:"residual_m"`  // distance staked -> design
	BearingDeg float64 `json:"bearing_deg"` // from staked point toward design
	Ring       string  `json:"ring"`        // innermost armed ring label, "" if outside all

	H3Cell    string    `json:"h3_cell"`
	CreatedAt time.Time `json:"created_at"`
}

// TargetInfo describes a library target for listings.
type TargetInfo struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Type   string  `json:"type"` // GeoJSON geometry type
	Source string  `json:"source"`
	Lat    float64 `json:"lat"` // ring center
	Lon    float64 `json:"lon"`
}
