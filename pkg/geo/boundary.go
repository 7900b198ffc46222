package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// NearestOnBoundary returns the point on the boundary of g that is closest to p.
// Polygons are searched over every ring (holes included) so a position inside a
// parcel still resolves to the edge the operator has to walk to. The search runs
// in Web Mercator, which is conformal and accurate enough at stake-out range.
// A point geometry resolves to itself. ok is false for empty or unsupported geometries.
func NearestOnBoundary(p Point, g orb.Geometry) (nearest Point, ok bool) {
	if target, isPoint := g.(orb.Point); isPoint {
		return FromOrb(target), true
	}

	q := project.WGS84.ToMercator(p.Orb())
	best := math.MaxFloat64
	var bestPt orb.Point

	visit := func(line []orb.Point, closed bool) {
		n := len(line)
		if n == 0 {
			return
		}
		if n == 1 {
			c := project.WGS84.ToMercator(line[0])
			if d := planar.DistanceSquared(q, c); d < best {
				best, bestPt = d, c
			}
			return
		}
		last := n - 1
		if closed && line[0] != line[n-1] {
			last = n
		}
		for i := 0; i < last; i++ {
			a := project.WGS84.ToMercator(line[i])
			b := project.WGS84.ToMercator(line[(i+1)%n])
			c := closestOnSegment(q, a, b)
			if d := planar.DistanceSquared(q, c); d < best {
				best, bestPt = d, c
			}
		}
	}

	switch geom := g.(type) {
	case orb.MultiPoint:
		for _, v := range geom {
			visit([]orb.Point{v}, false)
		}
	case orb.LineString:
		visit(geom, false)
	case orb.MultiLineString:
		for _, ls := range geom {
			visit(ls, false)
		}
	case orb.Ring:
		visit(geom, true)
	case orb.Polygon:
		for _, r := range geom {
			visit(r, true)
		}
	case orb.MultiPolygon:
		for _, poly := range geom {
			for _, r := range poly {
				visit(r, true)
			}
		}
	default:
		return Point{}, false
	}

	if best == math.MaxFloat64 {
		return Point{}, false
	}
	return FromOrb(project.Mercator.ToWGS84(bestPt)), true
}

// closestOnSegment returns the point on segment ab closest to p.
func closestOnSegment(p, a, b orb.Point) orb.Point {
	dx := b[0] - a[0]
	dy := b[1] - a[1]

	if dx == 0 && dy == 0 {
		return a
	}

	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / (dx*dx + dy*dy)
	switch {
	case t <= 0:
		return a
	case t >= 1:
		return b
	}
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

// Centroid returns the center the proximity rings are drawn around.
// Areal geometries use the area-weighted centroid, lines and points their
// planar centroid. ok is false for empty geometries.
func Centroid(g orb.Geometry) (Point, bool) {
	if g == nil {
		return Point{}, false
	}
	switch geom := g.(type) {
	case orb.Point:
		return FromOrb(geom), true
	case orb.Polygon:
		if len(geom) == 0 || len(geom[0]) == 0 {
			return Point{}, false
		}
	case orb.MultiPolygon:
		if len(geom) == 0 {
			return Point{}, false
		}
	}
	c, _ := planar.CentroidArea(g)
	if !Valid(c.Lon(), c.Lat()) {
		return Point{}, false
	}
	return FromOrb(c), true
}

// ValidGeometry reports whether every vertex of g is a valid WGS84 coordinate.
func ValidGeometry(g orb.Geometry) bool {
	if g == nil {
		return false
	}
	valid := true
	walk(g, func(p orb.Point) {
		if !Valid(p.Lon(), p.Lat()) {
			valid = false
		}
	})
	return valid
}

func walk(g orb.Geometry, fn func(orb.Point)) {
	switch geom := g.(type) {
	case orb.Point:
		fn(geom)
	case orb.MultiPoint:
		for _, p := range geom {
			fn(p)
		}
	case orb.LineString:
		for _, p := range geom {
			fn(p)
		}
	case orb.Ring:
		for _, p := range geom {
			fn(p)
		}
	case orb.MultiLineString:
		for _, ls := range geom {
			walk(ls, fn)
		}
	case orb.Polygon:
		for _, r := range geom {
			walk(r, fn)
		}
	case orb.MultiPolygon:
		for _, poly := range geom {
			walk(poly, fn)
		}
	case orb.Collection:
		for _, c := range geom {
			walk(c, fn)
		}
	}
}
