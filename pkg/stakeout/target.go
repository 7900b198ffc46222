package stakeout

import (
	"fmt"

	"github.com/paulmach/orb"

	"stakeout/pkg/geo"
)

// Target is what the operator is walking to: a single point or a feature whose
// boundary should be reached. Rings are centred on Center.
type Target struct {
	ID       string
	Geometry orb.Geometry
	center   geo.Point
}

// NewTarget validates g and computes the ring center.
func NewTarget(id string, g orb.Geometry) (Target, error) {
	if g == nil {
		return Target{}, fmt.Errorf("%w: missing geometry", ErrInvalidTarget)
	}
	if !geo.ValidGeometry(g) {
		return Target{}, fmt.Errorf("%w: coordinates out of range", ErrInvalidTarget)
	}
	switch g.(type) {
	case orb.Point, orb.MultiPoint, orb.LineString, orb.MultiLineString, orb.Ring, orb.Polygon, orb.MultiPolygon:
	default:
		return Target{}, fmt.Errorf("%w: unsupported geometry %s", ErrInvalidTarget, g.GeoJSONType())
	}
	c, ok := geo.Centroid(g)
	if !ok {
		return Target{}, fmt.Errorf("%w: empty geometry", ErrInvalidTarget)
	}
	return Target{ID: id, Geometry: g, center: c}, nil
}

// NewPointTarget is NewTarget for a single coordinate.
func NewPointTarget(id string, lng, lat float64) (Target, error) {
	return NewTarget(id, orb.Point{lng, lat})
}

// Center is the point the proximity rings are drawn around.
func (t Target) Center() geo.Point {
	return t.center
}

// IsPoint reports whether the target is a single coordinate.
func (t Target) IsPoint() bool {
	_, ok := t.Geometry.(orb.Point)
	return ok
}
