package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"stakeout/pkg/config"
	"stakeout/pkg/cue"
	"stakeout/pkg/geo"
	"stakeout/pkg/logging"
	"stakeout/pkg/metrics"
	"stakeout/pkg/stakeout"
	"stakeout/pkg/store"
)

// DeviceSessionID is the session driven by the local location source.
const DeviceSessionID = "device"

// Options configures a Manager. Every field is optional.
type Options struct {
	Config  config.Provider
	Stakes  store.StakeStore
	State   store.StateStore
	Metrics *metrics.Collector
	Player  cue.Player
	// PersistID names the session whose target and zoom survive restarts.
	PersistID string
	Logger    *slog.Logger
}

// Manager creates and expires sessions.
type Manager struct {
	sessions  *Store[Session]
	cfg       config.Provider
	stakes    store.StakeStore
	state     store.StateStore
	metrics   *metrics.Collector
	player    cue.Player
	persistID string
	logger    *slog.Logger

	hookMu   sync.RWMutex
	onTarget []func(sessionID string, center *geo.Point)
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	player := opts.Player
	if player == nil {
		player = cue.NopPlayer{}
	}
	m := &Manager{
		cfg:       opts.Config,
		stakes:    opts.Stakes,
		state:     opts.State,
		metrics:   opts.Metrics,
		player:    player,
		persistID: opts.PersistID,
		logger:    logger.With("component", "session"),
	}

	ttl := 12 * time.Hour
	if m.cfg != nil {
		ttl = m.cfg.SessionTTL(context.Background())
	}
	m.sessions = NewStore(ttl, m.newSession)
	m.sessions.OnEvict(func(id string, s *Session) {
		s.close()
		m.logger.Info("Session expired", "session_id", id)
		logging.LogEvent(&logging.Event{Type: "session", Session: id, Title: "Session expired"})
		m.metrics.SetSessions(m.sessions.Len())
	})
	return m
}

// NewID returns a fresh session ID.
func NewID() string {
	return uuid.NewString()
}

// Get returns the session for id, creating it on first use.
func (m *Manager) Get(id string) *Session {
	s := m.sessions.Get(id)
	m.metrics.SetSessions(m.sessions.Len())
	return s
}

// Lookup returns an existing session.
func (m *Manager) Lookup(id string) (*Session, bool) {
	return m.sessions.Lookup(id)
}

// Delete stops and removes a session.
func (m *Manager) Delete(id string) bool {
	return m.sessions.Delete(id)
}

// IDs lists the live sessions.
func (m *Manager) IDs() []string {
	return m.sessions.IDs()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.sessions.Len()
}

// Cleanup expires idle sessions. The persisted session never expires while
// it is the target of the location feed.
func (m *Manager) Cleanup() int {
	if m.persistID != "" {
		m.sessions.Lookup(m.persistID)
	}
	return m.sessions.Cleanup()
}

// RunCleanup expires idle sessions every interval until ctx is done.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Cleanup(); n > 0 {
				m.logger.Debug("Expired sessions", "count", n)
			}
		}
	}
}

// OnTargetChanged registers fn to run after any session's target is set or
// cleared. center is nil on clear.
func (m *Manager) OnTargetChanged(fn func(sessionID string, center *geo.Point)) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.onTarget = append(m.onTarget, fn)
}

// SetCuesEnabled toggles audio cues on every live session.
func (m *Manager) SetCuesEnabled(on bool) {
	for _, id := range m.sessions.IDs() {
		if s, ok := m.sessions.Lookup(id); ok {
			s.cues.SetEnabled(on)
		}
	}
}

// Close stops every session.
func (m *Manager) Close() {
	for _, id := range m.sessions.IDs() {
		m.sessions.Delete(id)
	}
}

func (m *Manager) newSession(id string) *Session {
	ctx := context.Background()
	logger := m.logger.With("session_id", id)

	dpr, active, idle, fallback := 1.0, 0.0, 0.0, 0.0
	cuesOn := false
	if m.cfg != nil {
		dpr = m.cfg.DevicePixelRatio(ctx)
		active, idle = m.cfg.StrokeWidths(ctx)
		fallback = m.cfg.FallbackPixels(ctx)
		cuesOn = m.cfg.AudioCues(ctx)
	}

	proj := stakeout.NewScreenProjection(dpr, logger)
	if fallback > 0 {
		proj.FallbackPixels = fallback
	}

	frames := NewBroadcaster(32, logger)
	var renderer stakeout.Renderer = frameRenderer{b: frames}
	opts := []stakeout.Option{
		stakeout.WithLogger(logger),
		stakeout.WithProjection(proj),
		stakeout.WithStrokeWidths(active, idle),
	}
	if m.metrics != nil {
		renderer = stakeout.InstrumentRenderer(renderer, m.metrics, logger)
		opts = append(opts, stakeout.WithObserver(m.metrics))
	} else {
		renderer = stakeout.InstrumentRenderer(renderer, nil, logger)
	}

	var baseFreq float64
	var toneLen time.Duration
	if m.cfg != nil {
		audio := m.cfg.AppConfig().Audio
		baseFreq, toneLen = audio.BaseFrequency, time.Duration(audio.ToneLength)
	}
	cues := cue.NewTracker(m.player, baseFreq, toneLen, logger)
	cues.SetEnabled(cuesOn)
	if m.metrics != nil {
		cues.SetObserver(m.metrics)
	}

	s := &Session{
		ID:       id,
		Created:  time.Now(),
		director: stakeout.NewDirector(renderer, opts...),
		frames:   frames,
		cues:     cues,
		mgr:      m,
		logger:   logger,
	}
	logger.Info("Session started")
	return s
}

// persistTarget stores or deletes the device session's target. Callers hold
// s.mu so writes land in the same order as the director saw the changes.
func (m *Manager) persistTarget(ctx context.Context, s *Session, t *stakeout.Target) {
	if s.ID != m.persistID || m.state == nil {
		return
	}
	var err error
	if t == nil {
		err = m.state.DeleteState(ctx, config.KeyLastTarget)
	} else if data, encErr := encodeTarget(t); encErr != nil {
		err = encErr
	} else {
		err = m.state.SetState(ctx, config.KeyLastTarget, string(data))
	}
	if err != nil {
		m.logger.Warn("Failed to persist target", "session_id", s.ID, "error", err)
	}
}

func (m *Manager) notifyTarget(s *Session, t *stakeout.Target) {
	var center *geo.Point
	if t != nil {
		c := t.Center()
		center = &c
	}
	m.hookMu.RLock()
	hooks := append([]func(string, *geo.Point){}, m.onTarget...)
	m.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(s.ID, center)
	}
}

func (m *Manager) zoomChanged(ctx context.Context, s *Session, zoom float64) {
	if s.ID != m.persistID || m.state == nil {
		return
	}
	if err := m.state.SetState(ctx, config.KeyLastZoom, strconv.FormatFloat(zoom, 'f', -1, 64)); err != nil {
		m.logger.Warn("Failed to persist zoom", "session_id", s.ID, "error", err)
	}
}
