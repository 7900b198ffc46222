// Package watcher polls directories for new or updated files so the target
// library picks up survey exports dropped in while the server runs.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Service monitors multiple directories for files with matching extensions.
type Service struct {
	paths  []string
	exts   []string
	logger *slog.Logger

	mu     sync.Mutex
	seen   map[string]time.Time
	primed bool
}

// NewService creates a monitor for paths. Only files whose extension is in
// exts (case-insensitive, with the leading dot) are reported. Files present
// at creation are treated as already seen.
func NewService(paths, exts []string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		paths:  paths,
		exts:   exts,
		logger: logger,
		seen:   make(map[string]time.Time),
	}
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logger.Warn("Watcher: Directory does not exist", "path", path)
		}
	}
	s.scan()
	s.primed = true
	return s
}

// CheckNew returns files created or modified since the previous check,
// sorted by path.
func (s *Service) CheckNew() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scan()
}

// Run calls fn for every new or modified file, polling every interval until
// ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration, fn func(path string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range s.CheckNew() {
				s.logger.Info("Watcher: File changed", "file", p)
				fn(p)
			}
		}
	}
}

func (s *Service) scan() []string {
	var changed []string
	for _, dir := range s.paths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !s.matches(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			full := filepath.Join(dir, entry.Name())
			mod := info.ModTime()
			if prev, ok := s.seen[full]; ok && !mod.After(prev) {
				continue
			}
			s.seen[full] = mod
			if s.primed {
				changed = append(changed, full)
			}
		}
	}
	sort.Strings(changed)
	return changed
}

func (s *Service) matches(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range s.exts {
		if ext == e {
			return true
		}
	}
	return false
}
