package targets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakeout/pkg/stakeout"
)

const parcels = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "BM-12", "properties": {"name": "Benchmark 12"},
     "geometry": {"type": "Point", "coordinates": [14.2230, 46.6263]}},
    {"type": "Feature", "properties": {"name": "Parcel 7"},
     "geometry": {"type": "Polygon", "coordinates": [[[14.2229,46.6262],[14.2231,46.6262],[14.2231,46.6264],[14.2229,46.6264],[14.2229,46.6262]]]}},
    {"type": "Feature", "properties": {}, "geometry": null},
    {"type": "Feature", "properties": {"name": "Broken"},
     "geometry": {"type": "Point", "coordinates": [214.0, 46.0]}},
    {"type": "Feature", "properties": {},
     "geometry": {"type": "LineString", "coordinates": [[14.2,46.6],[14.3,46.7]]}}
  ]
}`

func TestLibrary_LoadGeoJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parcels.geojson")
	require.NoError(t, os.WriteFile(path, []byte(parcels), 0o644))

	lib := NewLibrary(nil)
	n, err := lib.LoadGeoJSON(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list := lib.List()
	require.Len(t, list, 3)
	assert.Equal(t, "BM-12", list[0].ID)
	assert.Equal(t, "Benchmark 12", list[0].Name)
	assert.Equal(t, "Point", list[0].Type)
	assert.Equal(t, "Parcel 7", list[1].ID)
	assert.Equal(t, "Polygon", list[1].Type)
	assert.InDelta(t, 46.6263, list[1].Lat, 1e-9)
	assert.Equal(t, "parcels#4", list[2].ID)

	tgt, ok := lib.Get("Parcel 7")
	require.True(t, ok)
	assert.False(t, tgt.IsPoint())

	_, ok = lib.Get("Broken")
	assert.False(t, ok)
}

func TestLibrary_LoadSingleFeature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"Feature","id":7,"properties":{},"geometry":{"type":"Point","coordinates":[14.1,46.5]}}`), 0o644))

	lib := NewLibrary(nil)
	n, err := lib.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := lib.Get("7")
	assert.True(t, ok)
}

func TestLibrary_LoadShapefile(t *testing.T) {
	dir := t.TempDir()

	pointsPath := filepath.Join(dir, "marks.shp")
	w, err := shp.Create(pointsPath, shp.POINT)
	require.NoError(t, err)
	w.SetFields([]shp.Field{shp.StringField("NAME", 25)})
	for i, p := range []shp.Point{{X: 14.2230, Y: 46.6263}, {X: 14.2240, Y: 46.6270}} {
		w.Write(&p)
		w.WriteAttribute(i, 0, []string{"PK-1", "PK-2"}[i])
	}
	w.Close()

	polyPath := filepath.Join(dir, "lots.shp")
	pw, err := shp.Create(polyPath, shp.POLYGON)
	require.NoError(t, err)
	pw.SetFields([]shp.Field{shp.StringField("KIND", 10)})
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{{
		{X: 14.2229, Y: 46.6262}, {X: 14.2229, Y: 46.6264}, {X: 14.2231, Y: 46.6264},
		{X: 14.2231, Y: 46.6262}, {X: 14.2229, Y: 46.6262},
	}}))
	pw.Write(&poly)
	pw.WriteAttribute(0, 0, "lot")
	pw.Close()

	lib := NewLibrary(nil)
	require.NoError(t, lib.LoadPaths([]string{dir, filepath.Join(dir, "missing")}))
	assert.Equal(t, 3, lib.Len())

	pk, ok := lib.Get("PK-2")
	require.True(t, ok)
	assert.True(t, pk.IsPoint())
	assert.Equal(t, orb.Point{14.2240, 46.6270}, pk.Geometry)

	lot, ok := lib.Get("lots#0")
	require.True(t, ok)
	p, isPoly := lot.Geometry.(orb.Polygon)
	require.True(t, isPoly)
	assert.Len(t, p[0], 5)
}

func TestLibrary_UnsupportedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drawing.dxf")
	require.NoError(t, os.WriteFile(path, []byte("0\nSECTION\n"), 0o644))

	lib := NewLibrary(nil)
	_, err := lib.LoadFile(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	// LoadPaths skips unknown extensions inside directories
	assert.NoError(t, lib.LoadPaths([]string{filepath.Dir(path)}))
	assert.Zero(t, lib.Len())
}

func TestLibrary_Add(t *testing.T) {
	lib := NewLibrary(nil)
	assert.True(t, lib.Add("a", "A", orb.Point{14.2, 46.6}))
	assert.False(t, lib.Add("b", "B", orb.Polygon{}))
	assert.Equal(t, "api", lib.List()[0].Source)
}

func TestParseGeometry(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantType string
		wantErr  bool
	}{
		{"Geometry", `{"type":"Point","coordinates":[14.2,46.6]}`, "Point", false},
		{"Feature", `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`, "Polygon", false},
		{"Garbage", `{"lat":46.6}`, "", true},
		{"Not JSON", `not json`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ParseGeometry([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, stakeout.ErrInvalidTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, g.GeoJSONType())
		})
	}
}
