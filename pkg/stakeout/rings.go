// Package stakeout implements the stake-out navigation core: proximity rings
// around a target, zoom-dependent ring selection, meter-to-pixel conversion and
// the director that ties them to live position fixes.
//
// Everything in this package is synchronous and single-threaded. Callers that
// share a Director between goroutines must serialise access themselves.
package stakeout

import (
	"fmt"

	"stakeout/pkg/geo"
)

// RGBA is a stroke color.
type RGBA struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// Hex returns the color as #rrggbbaa.
func (c RGBA) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// Ring is a static proximity ring centered on the target.
type Ring struct {
	RadiusM float64 `json:"radius_m"`
	Color   RGBA    `json:"color"`
	Label   string  `json:"label"`
}

// ID is the stable identifier the map surface uses for the ring's layer.
func (r Ring) ID() string {
	return fmt.Sprintf("stakeout-ring-%gm", r.RadiusM)
}

// RingState is a ring together with whether the current fix lies inside it.
type RingState struct {
	Ring   Ring `json:"ring"`
	Active bool `json:"active"`
}

var defaultRings = []Ring{
	{RadiusM: 2.0, Color: RGBA{0xe5, 0x39, 0x35, 0xff}, Label: "2 m"},
	{RadiusM: 1.0, Color: RGBA{0xfb, 0x8c, 0x00, 0xff}, Label: "1 m"},
	{RadiusM: 0.5, Color: RGBA{0xfd, 0xd8, 0x35, 0xff}, Label: "50 cm"},
	{RadiusM: 0.3, Color: RGBA{0x7c, 0xb3, 0x42, 0xff}, Label: "30 cm"},
	{RadiusM: 0.1, Color: RGBA{0x00, 0xac, 0xc1, 0xff}, Label: "10 cm"},
	{RadiusM: 0.05, Color: RGBA{0x1e, 0x88, 0xe5, 0xff}, Label: "5 cm"},
	{RadiusM: 0.04, Color: RGBA{0x39, 0x49, 0xab, 0xff}, Label: "4 cm"},
	{RadiusM: 0.03, Color: RGBA{0x8e, 0x24, 0xaa, 0xff}, Label: "3 cm"},
	{RadiusM: 0.02, Color: RGBA{0xd8, 0x1b, 0x60, 0xff}, Label: "2 cm"},
	{RadiusM: 0.01, Color: RGBA{0xff, 0xff, 0xff, 0xff}, Label: "1 cm"},
}

// DefaultRings returns a copy of the standard ring list, largest first.
func DefaultRings() []Ring {
	out := make([]Ring, len(defaultRings))
	copy(out, defaultRings)
	return out
}

// ProximityRings owns the fixed ring list and computes activation state.
type ProximityRings struct {
	rings []Ring
}

// NewProximityRings validates the ring list. Radii must be positive and
// strictly descending so that every zoom selection is a nested prefix.
func NewProximityRings(rings []Ring) (*ProximityRings, error) {
	if len(rings) == 0 {
		return nil, fmt.Errorf("ring list is empty")
	}
	for i, r := range rings {
		if !(r.RadiusM > 0) {
			return nil, fmt.Errorf("ring %d: radius must be positive, got %v", i, r.RadiusM)
		}
		if i > 0 && r.RadiusM >= rings[i-1].RadiusM {
			return nil, fmt.Errorf("ring %d: radius %v not smaller than previous %v", i, r.RadiusM, rings[i-1].RadiusM)
		}
	}
	cp := make([]Ring, len(rings))
	copy(cp, rings)
	return &ProximityRings{rings: cp}, nil
}

// Rings returns a copy of the ordered ring list.
func (p *ProximityRings) Rings() []Ring {
	out := make([]Ring, len(p.rings))
	copy(out, p.rings)
	return out
}

// ActivationFor marks every ring whose radius is at least the great-circle
// distance from position to target. A nil target means stake-out has not
// started and yields an empty list.
func (p *ProximityRings) ActivationFor(position geo.Point, target *geo.Point) []RingState {
	if target == nil {
		return []RingState{}
	}
	dist := geo.Distance(position, *target)
	states := make([]RingState, len(p.rings))
	for i, r := range p.rings {
		states[i] = RingState{Ring: r, Active: dist <= r.RadiusM}
	}
	return states
}

// Innermost returns the smallest active ring, if any.
func Innermost(states []RingState) (Ring, bool) {
	for i := len(states) - 1; i >= 0; i-- {
		if states[i].Active {
			return states[i].Ring, true
		}
	}
	return Ring{}, false
}
