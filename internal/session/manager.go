package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/doctorquest/quiz/internal/auth"
	"github.com/doctorquest/quiz/internal/metrics"
	"github.com/doctorquest/quiz/internal/stats"
)

// Deps are the collaborators shared by every tracker.
type Deps struct {
	Questions   QuestionSource
	Stats       StatsStore
	Verifier    auth.TokenVerifier
	Refresher   auth.Refresher // optional
	EarlyExpiry time.Duration
	Options     Options
}

// Manager keeps the live trackers of this instance.
type Manager struct {
	deps   Deps
	hub    Pusher
	logger zerolog.Logger

	mu       sync.RWMutex
	trackers map[uuid.UUID]*Tracker
}

// NewManager creates an empty manager. hub may be nil.
func NewManager(deps Deps, hub Pusher, logger zerolog.Logger) *Manager {
	return &Manager{
		deps:     deps,
		hub:      hub,
		logger:   logger,
		trackers: make(map[uuid.UUID]*Tracker),
	}
}

// Create registers a new unmounted tracker for subject.
func (m *Manager) Create(subject string) *Tracker {
	id := uuid.New()
	logger := m.logger.With().Str("session_id", id.String()).Logger()
	client := auth.NewClient(m.deps.Verifier, m.deps.Refresher, m.deps.EarlyExpiry, logger)
	t := NewTracker(id, subject, m.deps.Questions, m.deps.Stats, client, m.deps.Options, m.logger)
	if m.hub != nil {
		t.Observe(hubObserver(m.hub, id, logger))
	}

	m.mu.Lock()
	m.trackers[id] = t
	m.mu.Unlock()

	metrics.LiveSessions.Inc()
	return t
}

// Get returns the tracker for id or ErrNotFound.
func (m *Manager) Get(id uuid.UUID) (*Tracker, error) {
	m.mu.RLock()
	t, ok := m.trackers[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// Delete discards the tracker, waiting for its queued writes.
func (m *Manager) Delete(id uuid.UUID) error {
	m.mu.Lock()
	t, ok := m.trackers[id]
	delete(m.trackers, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	t.Close()
	if m.hub != nil {
		m.hub.DropSession(id)
	}
	metrics.LiveSessions.Dec()
	return nil
}

// Len returns the number of live trackers.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trackers)
}

func (m *Manager) all() []*Tracker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Tracker, 0, len(m.trackers))
	for _, t := range m.trackers {
		out = append(out, t)
	}
	return out
}

// ApplySnapshot implements stats.SnapshotSink: every tracker signed in as the
// snapshot's user adopts it.
func (m *Manager) ApplySnapshot(snap stats.Snapshot) {
	for _, t := range m.all() {
		t.applySnapshot(snap)
	}
}

// Sweep discards trackers idle since before cutoff and returns how many.
func (m *Manager) Sweep(cutoff time.Time) int {
	removed := 0
	for _, t := range m.all() {
		if t.LastActive().Before(cutoff) {
			if err := m.Delete(t.ID()); err == nil {
				removed++
			}
		}
	}
	return removed
}

// Shutdown discards every tracker.
func (m *Manager) Shutdown() {
	for _, t := range m.all() {
		m.Delete(t.ID())
	}
}

// Reaper discards idle sessions and keeps signed-in sessions' tokens fresh.
type Reaper struct {
	manager  *Manager
	idle     time.Duration
	interval time.Duration
	logger   zerolog.Logger
}

func NewReaper(manager *Manager, idle, interval time.Duration, logger zerolog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{
		manager:  manager,
		idle:     idle,
		interval: interval,
		logger:   logger.With().Str("component", "session_reaper").Logger(),
	}
}

// Run blocks until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			r.tick(ctx, now)
		}
	}
}

func (r *Reaper) tick(ctx context.Context, now time.Time) {
	if r.idle > 0 {
		if n := r.manager.Sweep(now.Add(-r.idle)); n > 0 {
			r.logger.Info().Int("discarded", n).Msg("idle sessions discarded")
		}
	}

	for _, t := range r.manager.all() {
		if t.Auth().GetSession() == nil {
			continue
		}
		if _, err := t.Auth().Refresh(ctx); err != nil && !errors.Is(err, auth.ErrRefreshUnavailable) {
			r.logger.Warn().Err(err).Str("session_id", t.ID().String()).Msg("token refresh failed")
		}
	}
}
