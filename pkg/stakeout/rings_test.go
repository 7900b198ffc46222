package stakeout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakeout/pkg/geo"
)

var stakePoint = geo.Point{Lat: 46.6263, Lon: 14.2230}

func TestDefaultRings_Descending(t *testing.T) {
	rings := DefaultRings()
	require.Len(t, rings, 10)
	for i := 1; i < len(rings); i++ {
		assert.Less(t, rings[i].RadiusM, rings[i-1].RadiusM, "ring %d", i)
	}
	_, err := NewProximityRings(rings)
	assert.NoError(t, err)
}

func TestNewProximityRings_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		rings []Ring
	}{
		{"Empty", nil},
		{"Ascending", []Ring{{RadiusM: 1}, {RadiusM: 2}}},
		{"Duplicate", []Ring{{RadiusM: 1}, {RadiusM: 1}}},
		{"Zero Radius", []Ring{{RadiusM: 1}, {RadiusM: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProximityRings(tt.rings)
			assert.Error(t, err)
		})
	}
}

func TestActivationFor(t *testing.T) {
	pr, err := NewProximityRings(DefaultRings())
	require.NoError(t, err)

	tests := []struct {
		name       string
		distance   float64
		wantActive int // number of leading rings expected active
	}{
		{"On Target", 0, 10},
		{"Five Millimeters", 0.005, 10},
		{"Fifteen Millimeters", 0.015, 9},
		{"Twenty Centimeters", 0.2, 4},
		{"Sixty Centimeters", 0.6, 2},
		{"One And Half Meters", 1.5, 1},
		{"Five Meters", 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := geo.DestinationPoint(stakePoint, tt.distance, 33)
			target := stakePoint
			states := pr.ActivationFor(pos, &target)
			require.Len(t, states, 10)

			d := geo.Distance(pos, target)
			for i, s := range states {
				assert.Equal(t, d <= s.Ring.RadiusM, s.Active, "ring %v", s.Ring.RadiusM)
				assert.Equal(t, i < tt.wantActive, s.Active, "ring %v", s.Ring.RadiusM)
			}
		})
	}
}

func TestActivationFor_NilTarget(t *testing.T) {
	pr, _ := NewProximityRings(DefaultRings())
	states := pr.ActivationFor(stakePoint, nil)
	assert.NotNil(t, states)
	assert.Empty(t, states)
}

func TestInnermost(t *testing.T) {
	pr, _ := NewProximityRings(DefaultRings())
	target := stakePoint

	r, ok := Innermost(pr.ActivationFor(geo.DestinationPoint(stakePoint, 0.25, 0), &target))
	require.True(t, ok)
	assert.Equal(t, 0.3, r.RadiusM)

	_, ok = Innermost(pr.ActivationFor(geo.DestinationPoint(stakePoint, 10, 0), &target))
	assert.False(t, ok)
}

func TestRing_IDAndColor(t *testing.T) {
	r := Ring{RadiusM: 0.05, Color: RGBA{R: 0x1e, G: 0x88, B: 0xe5, A: 0xff}}
	assert.Equal(t, "stakeout-ring-0.05m", r.ID())
	assert.Equal(t, "#1e88e5ff", r.Color.Hex())
}
