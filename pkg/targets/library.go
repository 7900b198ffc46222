// Package targets loads named stake-out targets from GeoJSON and shapefiles.
package targets

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"stakeout/pkg/model"
	"stakeout/pkg/stakeout"
)

// ErrUnsupportedFormat is returned for files that are neither GeoJSON nor shapefiles.
var ErrUnsupportedFormat = errors.New("unsupported target file format")

// Extensions lists the file extensions LoadFile accepts.
var Extensions = []string{".geojson", ".json", ".shp"}

type entry struct {
	target stakeout.Target
	info   model.TargetInfo
}

// Library is an in-memory, read-mostly catalogue of targets keyed by ID.
type Library struct {
	mu      sync.RWMutex
	targets map[string]entry
	logger  *slog.Logger
}

// NewLibrary creates an empty library.
func NewLibrary(logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		targets: make(map[string]entry),
		logger:  logger.With("component", "targets"),
	}
}

// LoadPaths loads every file in paths. Directories are scanned (non-recursively)
// for .geojson, .json and .shp files. Missing paths are skipped.
func (l *Library) LoadPaths(paths []string) error {
	var errs []error
	for _, p := range paths {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Target path not found", "path", p)
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.IsDir() {
			if _, err := l.LoadFile(p); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !supported(e.Name()) {
				continue
			}
			if _, err := l.LoadFile(filepath.Join(p, e.Name())); err != nil {
				errs = append(errs, err)
			}
		}
	}
	l.logger.Info("Target library loaded", "targets", l.Len())
	return errors.Join(errs...)
}

// LoadFile loads a single GeoJSON or shapefile and returns the number of targets added.
func (l *Library) LoadFile(path string) (int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return l.LoadGeoJSON(path)
	case ".shp":
		return l.LoadShapefile(path)
	default:
		return 0, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

// LoadGeoJSON loads a FeatureCollection (or a single Feature).
func (l *Library) LoadGeoJSON(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil || len(fc.Features) == 0 {
		f, ferr := geojson.UnmarshalFeature(data)
		if ferr != nil {
			if err == nil {
				err = ferr
			}
			return 0, fmt.Errorf("failed to parse GeoJSON %s: %w", path, err)
		}
		fc = geojson.NewFeatureCollection().Append(f)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	added := 0
	for i, f := range fc.Features {
		id := featureID(f.ID, f.Properties, base, i)
		if l.add(id, featureName(f.Properties, id), path, f.Geometry) {
			added++
		}
	}
	return added, nil
}

// Add registers a single geometry under id. It reports whether the geometry
// was usable as a target.
func (l *Library) Add(id, name string, g orb.Geometry) bool {
	return l.add(id, name, "api", g)
}

func (l *Library) add(id, name, source string, g orb.Geometry) bool {
	t, err := stakeout.NewTarget(id, g)
	if err != nil {
		l.logger.Warn("Skipping target", "id", id, "source", source, "error", err)
		return false
	}
	c := t.Center()
	info := model.TargetInfo{
		ID:     id,
		Name:   name,
		Type:   g.GeoJSONType(),
		Source: source,
		Lat:    c.Lat,
		Lon:    c.Lon,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.targets[id]; dup {
		l.logger.Warn("Duplicate target id, replacing", "id", id, "source", source)
	}
	l.targets[id] = entry{target: t, info: info}
	return true
}

// Get returns the target with id.
func (l *Library) Get(id string) (stakeout.Target, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.targets[id]
	return e.target, ok
}

// List returns all targets sorted by ID.
func (l *Library) List() []model.TargetInfo {
	l.mu.RLock()
	out := make([]model.TargetInfo, 0, len(l.targets))
	for _, e := range l.targets {
		out = append(out, e.info)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of targets.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.targets)
}

// ParseGeometry decodes a GeoJSON geometry, Feature or bare coordinate object
// as sent by the map surface.
func ParseGeometry(data []byte) (orb.Geometry, error) {
	if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		return f.Geometry, nil
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stakeout.ErrInvalidTarget, err)
	}
	if g.Coordinates == nil {
		return nil, fmt.Errorf("%w: empty geometry", stakeout.ErrInvalidTarget)
	}
	return g.Coordinates, nil
}

func supported(name string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(name)))
}

func featureID(id any, props map[string]any, base string, index int) string {
	switch v := id.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%g", v)
	}
	for _, key := range []string{"id", "ID", "name", "NAME"} {
		if v, ok := props[key]; ok {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("%s#%d", base, index)
}

func featureName(props map[string]any, fallback string) string {
	for _, key := range []string{"name", "NAME", "label", "LABEL"} {
		if v, ok := props[key]; ok {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return fallback
}
