package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var targetExts = []string{".geojson", ".json", ".shp"}

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestService_CheckNew(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	base := time.Now().Add(-time.Hour)

	existing := filepath.Join(dir1, "lot-4.geojson")
	touch(t, existing, base)

	s := NewService([]string{dir1, dir2, filepath.Join(dir1, "missing")}, targetExts, nil)

	// 1. Files present at start are not reported
	assert.Empty(t, s.CheckNew())

	// 2. New files in both directories, other extensions ignored
	pegs := filepath.Join(dir2, "pegs.GEOJSON")
	parcels := filepath.Join(dir1, "parcels.shp")
	touch(t, pegs, base.Add(time.Minute))
	touch(t, parcels, base.Add(time.Minute))
	touch(t, filepath.Join(dir1, "notes.txt"), base.Add(time.Minute))
	require.NoError(t, os.Mkdir(filepath.Join(dir1, "archive.json"), 0o755))

	assert.Equal(t, sortedPair(parcels, pegs), s.CheckNew())

	// 3. Nothing changed since
	assert.Empty(t, s.CheckNew())

	// 4. Modified file is reported again
	touch(t, existing, base.Add(2*time.Minute))
	assert.Equal(t, []string{existing}, s.CheckNew())
}

func sortedPair(a, b string) []string {
	if a < b {
		return []string{a, b}
	}
	return []string{b, a}
}

func TestService_Run(t *testing.T) {
	dir := t.TempDir()
	s := NewService([]string{dir}, targetExts, nil)

	var mu sync.Mutex
	var got []string
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 10*time.Millisecond, func(p string) {
			mu.Lock()
			got = append(got, p)
			mu.Unlock()
		})
		close(done)
	}()

	path := filepath.Join(dir, "stakes.geojson")
	touch(t, path, time.Now().Add(time.Minute))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == path
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
