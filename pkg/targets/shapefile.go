package targets

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// LoadShapefile loads points, polylines and polygons from an ESRI shapefile.
// Coordinates must already be WGS84 longitude/latitude.
func (l *Library) LoadShapefile(path string) (int, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	fields := shape.Fields()
	fieldNames := make([]string, len(fields))
	for i, f := range fields {
		fieldNames[i] = f.String()
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	added := 0
	for shape.Next() {
		n, p := shape.Shape()

		var geometry orb.Geometry
		switch s := p.(type) {
		case *shp.Null:
			continue
		case *shp.Point:
			geometry = orb.Point{s.X, s.Y}
		case *shp.PointZ:
			geometry = orb.Point{s.X, s.Y}
		case *shp.PolyLine:
			geometry = convertPolyLine(s.NumParts, s.Parts, s.Points)
		case *shp.Polygon:
			geometry = convertPolygon(s.NumParts, s.Parts, s.Points)
		case *shp.PolygonZ:
			geometry = convertPolygon(s.NumParts, s.Parts, s.Points)
		default:
			l.logger.Debug("Skipping unsupported shape type", "type", fmt.Sprintf("%T", p), "path", path)
			continue
		}

		props := make(map[string]any, len(fieldNames))
		for i, name := range fieldNames {
			props[name] = shape.ReadAttribute(n, i)
		}

		id := featureID(nil, props, base, n)
		if l.add(id, featureName(props, id), path, geometry) {
			added++
		}
	}

	if err := shape.Err(); err != nil {
		return added, fmt.Errorf("error iterating shapes: %w", err)
	}
	return added, nil
}

func splitParts(numParts int32, parts []int32, points []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, numParts)
	for i := 0; i < int(numParts); i++ {
		start := parts[i]
		end := int32(len(points))
		if i < int(numParts)-1 {
			end = parts[i+1]
		}
		part := make([]orb.Point, 0, end-start)
		for j := start; j < end; j++ {
			part = append(part, orb.Point{points[j].X, points[j].Y})
		}
		out = append(out, part)
	}
	return out
}

func convertPolyLine(numParts int32, parts []int32, points []shp.Point) orb.Geometry {
	lines := splitParts(numParts, parts, points)
	if len(lines) == 1 {
		return orb.LineString(lines[0])
	}
	ml := make(orb.MultiLineString, len(lines))
	for i, line := range lines {
		ml[i] = line
	}
	return ml
}

// convertPolygon treats the first part as the outer ring and the rest as holes.
// Multi-part parcels with several outer rings are rare in stake-out data.
func convertPolygon(numParts int32, parts []int32, points []shp.Point) orb.Polygon {
	rings := splitParts(numParts, parts, points)
	poly := make(orb.Polygon, len(rings))
	for i, r := range rings {
		poly[i] = r
	}
	return poly
}
