package stakeout

// ZoomBand includes every ring with radius >= MinRadiusM once the map zoom is
// at or above MinZoom. Because rings are ordered largest first, a radius
// threshold always selects a prefix of the list.
type ZoomBand struct {
	MinZoom    float64
	MinRadiusM float64
}

// DefaultZoomBands are tuned constants carried over from the field app, not
// derived values. Ordered by descending zoom.
var DefaultZoomBands = []ZoomBand{
	{MinZoom: 26, MinRadiusM: 0.01},
	{MinZoom: 23, MinRadiusM: 0.05},
	{MinZoom: 22, MinRadiusM: 0.1},
	{MinZoom: 20, MinRadiusM: 0.5},
	{MinZoom: 17, MinRadiusM: 1.0},
}

// radiusEpsilon absorbs float noise when comparing configured radii.
const radiusEpsilon = 1e-9

// ZoomLevelOfDetail selects which rings are worth drawing at a zoom level.
type ZoomLevelOfDetail struct {
	rings []Ring
	bands []ZoomBand
}

// NewZoomLevelOfDetail builds a selector over rings (largest first) using
// bands ordered by descending MinZoom. Nil bands selects DefaultZoomBands.
func NewZoomLevelOfDetail(rings []Ring, bands []ZoomBand) *ZoomLevelOfDetail {
	if bands == nil {
		bands = DefaultZoomBands
	}
	return &ZoomLevelOfDetail{rings: rings, bands: bands}
}

// SelectedRings returns the rings for the highest band whose threshold the zoom
// reaches. Below the lowest band nothing is drawn.
func (z *ZoomLevelOfDetail) SelectedRings(zoom float64) []Ring {
	n := z.prefixLen(zoom)
	out := make([]Ring, n)
	copy(out, z.rings[:n])
	return out
}

func (z *ZoomLevelOfDetail) prefixLen(zoom float64) int {
	for _, b := range z.bands {
		if zoom >= b.MinZoom {
			n := 0
			for n < len(z.rings) && z.rings[n].RadiusM >= b.MinRadiusM-radiusEpsilon {
				n++
			}
			return n
		}
	}
	return 0
}
