package stakeout

import (
	"errors"
	"log/slog"
	"math"

	"stakeout/pkg/geo"
)

const (
	// EarthCircumferenceMPP is the Web Mercator meters-per-pixel at zoom 0 on the equator
	// for 256px tiles.
	EarthCircumferenceMPP = 156543.03392

	// DefaultFallbackPixels is used whenever no pixel radius can be computed.
	DefaultFallbackPixels = 5.0

	// MaxZoom is the deepest zoom any tile-based map surface reports.
	MaxZoom = 30.0
)

// ErrProjection is returned by a Projector that cannot place a point on screen.
var ErrProjection = errors.New("projection unavailable")

// Projector converts a geographic point to screen pixels. It is the map
// surface's own projection and is only needed when zoom is not available.
type Projector interface {
	Project(p geo.Point) (x, y float64, err error)
}

// PixelFloor is a minimum on-screen radius for rings up to MaxRadiusM.
type PixelFloor struct {
	MaxRadiusM float64
	Pixels     float64
}

// FloorBand applies its floors when zoom is strictly above AboveZoom.
// Floors are checked in order; the first with MaxRadiusM >= radius wins.
type FloorBand struct {
	AboveZoom float64
	Floors    []PixelFloor
}

// DefaultFloorBands keep centimetre rings legible. Tuned constants, ordered by
// descending AboveZoom; the last band catches every remaining zoom.
var DefaultFloorBands = []FloorBand{
	{AboveZoom: 22, Floors: []PixelFloor{{0.01, 4}, {0.02, 5}, {0.05, 6}}},
	{AboveZoom: math.Inf(-1), Floors: []PixelFloor{{0.05, 3}}},
}

// ScreenProjection converts ring radii in meters to pixel radii.
type ScreenProjection struct {
	DevicePixelRatio float64
	FallbackPixels   float64
	FloorBands       []FloorBand
	Projector        Projector
	logger           *slog.Logger
}

// NewScreenProjection returns a projection with the default floors.
func NewScreenProjection(devicePixelRatio float64, logger *slog.Logger) *ScreenProjection {
	if !(devicePixelRatio > 0) || math.IsInf(devicePixelRatio, 0) {
		devicePixelRatio = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenProjection{
		DevicePixelRatio: devicePixelRatio,
		FallbackPixels:   DefaultFallbackPixels,
		FloorBands:       DefaultFloorBands,
		logger:           logger,
	}
}

// MetersPerPixel is the Web Mercator ground resolution at lat/zoom.
func MetersPerPixel(centerLat, zoom float64) float64 {
	return EarthCircumferenceMPP * math.Cos(centerLat*math.Pi/180) / math.Pow(2, zoom)
}

// PixelRadius converts radiusM to an on-screen radius for a ring centred at centerLat.
func (s *ScreenProjection) PixelRadius(radiusM, centerLat, zoom float64) float64 {
	return s.PixelRadiusAt(radiusM, geo.Point{Lat: centerLat}, zoom)
}

// PixelRadiusAt is PixelRadius with the full ring center, which the projector
// fallback needs. Zero lat or zoom is treated as "not known yet" by the host.
func (s *ScreenProjection) PixelRadiusAt(radiusM float64, center geo.Point, zoom float64) float64 {
	if !(radiusM > 0) || math.IsInf(radiusM, 0) {
		s.logger.Warn("Invalid ring radius, using fallback pixel radius", "radius_m", radiusM, "fallback_px", s.fallback())
		return s.fallback()
	}

	var px float64
	switch {
	case usableZoom(zoom) && usableLat(center.Lat):
		px = radiusM / MetersPerPixel(center.Lat, math.Min(zoom, MaxZoom)) * s.DevicePixelRatio
	case s.Projector != nil:
		var err error
		px, err = s.offsetPixels(radiusM, center)
		if err != nil {
			s.logger.Warn("Projection failed, using fallback pixel radius", "error", err, "fallback_px", s.fallback())
			return s.fallback()
		}
	default:
		s.logger.Warn("Cannot compute pixel radius, using fallback",
			"lat", center.Lat, "zoom", zoom, "fallback_px", s.fallback())
		return s.fallback()
	}

	if f := s.Floor(radiusM, zoom); px < f {
		px = f
	}
	return px
}

// Floor returns the minimum visible pixel radius for the radius/zoom bucket, or 0.
func (s *ScreenProjection) Floor(radiusM, zoom float64) float64 {
	for _, band := range s.FloorBands {
		if zoom > band.AboveZoom {
			for _, f := range band.Floors {
				if radiusM <= f.MaxRadiusM+radiusEpsilon {
					return f.Pixels
				}
			}
			return 0
		}
	}
	return 0
}

// offsetPixels projects the center and a point radiusM due east and measures the
// screen distance between them.
func (s *ScreenProjection) offsetPixels(radiusM float64, center geo.Point) (float64, error) {
	if !center.Valid() {
		return 0, ErrProjection
	}
	x0, y0, err := s.Projector.Project(center)
	if err != nil {
		return 0, err
	}
	x1, y1, err := s.Projector.Project(geo.DestinationPoint(center, radiusM, 90))
	if err != nil {
		return 0, err
	}
	px := math.Hypot(x1-x0, y1-y0)
	if math.IsNaN(px) || math.IsInf(px, 0) {
		return 0, ErrProjection
	}
	return px, nil
}

func (s *ScreenProjection) fallback() float64 {
	if s.FallbackPixels > 0 {
		return s.FallbackPixels
	}
	return DefaultFallbackPixels
}

// usableZoom accepts any positive zoom; the formula clamps it to MaxZoom.
func usableZoom(z float64) bool {
	return z > 0
}

func usableLat(lat float64) bool {
	return lat != 0 && lat > -90 && lat < 90
}
