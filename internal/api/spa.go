package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// spaFileSystem serves the map UI and falls back to index.html for client-side
// routes that have no file behind them.
type spaFileSystem struct {
	root http.FileSystem
}

func (s *spaFileSystem) Open(name string) (http.File, error) {
	f, err := s.root.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return s.root.Open("index.html")
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// uiHandler returns a file server for dir, or nil if dir has no index.html.
func uiHandler(dir string) http.Handler {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(filepath.Join(dir, "index.html")); err != nil {
		slog.Debug("Map UI not mounted", "dir", dir, "error", err)
		return nil
	}
	return http.FileServer(&spaFileSystem{root: http.FS(os.DirFS(dir))})
}
