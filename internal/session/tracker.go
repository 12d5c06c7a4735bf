package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/doctorquest/quiz/internal/auth"
	"github.com/doctorquest/quiz/internal/metrics"
	"github.com/doctorquest/quiz/internal/question"
	"github.com/doctorquest/quiz/internal/stats"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrInvalidOption = errors.New("option is not available for the current question")
	ErrNoQuestions   = errors.New("no questions loaded")
	ErrClosed        = errors.New("session closed")
)

// QuestionSource loads the ordered question feed for a subject ("" for all).
type QuestionSource interface {
	Fetch(ctx context.Context, subject string) ([]question.Question, error)
}

// StatsStore writes answers and reads aggregate statistics.
type StatsStore interface {
	RecordAnswer(ctx context.Context, rec stats.AnswerRecord) error
	Refresh(ctx context.Context, userID uuid.UUID) (stats.Snapshot, error)
}

// ChangeKind classifies observer notifications.
type ChangeKind string

const (
	ChangeState ChangeKind = "state"
	ChangeStats ChangeKind = "stats"
	ChangeAuth  ChangeKind = "auth"
)

// Change is delivered to observers after the tracker changed. Event is set for
// ChangeAuth.
type Change struct {
	Kind  ChangeKind
	Event auth.EventType
	View  View
}

// Observer is notified outside the tracker lock.
type Observer func(Change)

// Options tune a tracker's persistence worker.
type Options struct {
	QueueSize      int           // default: 16
	PersistTimeout time.Duration // default: 5 seconds
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 16
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 5 * time.Second
	}
	return o
}

type persistJob struct {
	userID uuid.UUID
	answer *stats.AnswerRecord // nil for a stats-only refresh
}

// Tracker owns one quiz session: its State, the signed-in user and the
// latest statistics snapshot. Persistence runs on a single worker goroutine
// per tracker, so writes for a session reach the store in submission order.
type Tracker struct {
	id        uuid.UUID
	questions QuestionSource
	stats     StatsStore
	auth      *auth.Client
	opts      Options
	logger    zerolog.Logger

	mountMu sync.Mutex

	mu         sync.Mutex
	state      State
	subject    string
	loading    bool
	user       *auth.User
	snapshot   *stats.Snapshot
	lastActive time.Time
	observers  []Observer
	sub        *auth.Subscription
	closed     bool

	jobs chan persistJob
	done chan struct{}
}

// NewTracker creates a tracker for subject and starts its persistence worker.
// Call Mount to load questions and attach to auth changes.
func NewTracker(id uuid.UUID, subject string, questions QuestionSource, store StatsStore, client *auth.Client, opts Options, logger zerolog.Logger) *Tracker {
	opts = opts.withDefaults()
	t := &Tracker{
		id:         id,
		questions:  questions,
		stats:      store,
		auth:       client,
		opts:       opts,
		logger:     logger.With().Str("component", "session").Str("session_id", id.String()).Logger(),
		subject:    question.NormalizeSubject(subject),
		lastActive: time.Now(),
		jobs:       make(chan persistJob, opts.QueueSize),
		done:       make(chan struct{}),
	}
	go t.runWorker()
	return t
}

// ID returns the session id.
func (t *Tracker) ID() uuid.UUID { return t.id }

// Auth returns the session's identity client.
func (t *Tracker) Auth() *auth.Client { return t.auth }

// Observe registers fn for change notifications.
func (t *Tracker) Observe(fn Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.observers = append(t.observers, fn)
}

// LastActive returns the time of the last user-driven operation.
func (t *Tracker) LastActive() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActive
}

// Mount loads the questions for the current subject, then (re)attaches the
// auth listener. The listener immediately receives the current session, which
// records the user and refreshes their statistics. Mounting again releases the
// previous listener first. A question fetch failure is returned but does not
// prevent the auth attachment.
func (t *Tracker) Mount(ctx context.Context) error {
	t.mountMu.Lock()
	defer t.mountMu.Unlock()

	loadErr := t.load(ctx)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	prev := t.sub
	t.sub = nil
	t.mu.Unlock()
	prev.Unsubscribe()

	sub := t.auth.OnAuthStateChange(t.handleAuth)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		sub.Unsubscribe()
		return ErrClosed
	}
	t.sub = sub
	t.mu.Unlock()

	return loadErr
}

// SetSubject changes the filter and remounts. The subject is kept even when the
// fetch fails.
func (t *Tracker) SetSubject(ctx context.Context, subject string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.subject = question.NormalizeSubject(subject)
	t.lastActive = time.Now()
	t.mu.Unlock()

	return t.Mount(ctx)
}

func (t *Tracker) load(ctx context.Context) error {
	t.mu.Lock()
	t.loading = true
	subject := t.subject
	t.mu.Unlock()

	qs, err := t.questions.Fetch(ctx, subject)

	t.mu.Lock()
	t.loading = false
	switch {
	case err != nil:
		t.mu.Unlock()
		t.logger.Error().Err(err).Str("subject", subject).Msg("fetch questions failed")
		t.publish(ChangeState, "")
		return fmt.Errorf("fetch questions: %w", err)
	case subject != t.subject:
		t.mu.Unlock()
		t.logger.Debug().Str("subject", subject).Msg("discarding questions for superseded subject")
		return nil
	}
	t.state = t.state.Loaded(qs)
	t.mu.Unlock()

	t.publish(ChangeState, "")
	return nil
}

// SelectAnswer records key as the chosen option. After the result is revealed
// it is a no-op.
func (t *Tracker) SelectAnswer(key string) (View, error) {
	t.mu.Lock()
	q, ok := t.state.Current()
	if !ok {
		t.mu.Unlock()
		return View{}, ErrNoQuestions
	}
	if !t.state.Revealed && !q.HasOption(key) {
		t.mu.Unlock()
		return View{}, ErrInvalidOption
	}
	t.state = t.state.Select(key)
	t.lastActive = time.Now()
	t.mu.Unlock()

	return t.publish(ChangeState, ""), nil
}

// SubmitAnswer reveals the result for the selected option. The Result is nil
// when the call was a no-op. For a signed-in user the answer is queued for
// persistence; the local counters never wait on it.
func (t *Tracker) SubmitAnswer() (View, *Result, error) {
	t.mu.Lock()
	if _, ok := t.state.Current(); !ok {
		t.mu.Unlock()
		return View{}, nil, ErrNoQuestions
	}
	next, res := t.state.Submit()
	t.state = next
	t.lastActive = time.Now()
	if res != nil {
		metrics.AnswersSubmitted.WithLabelValues(metrics.Result(res.Correct)).Inc()
		if t.user != nil {
			t.enqueueLocked(persistJob{
				userID: t.user.ID,
				answer: &stats.AnswerRecord{
					UserID:     t.user.ID,
					QuestionID: res.QuestionID,
					Subject:    res.Subject,
					Correct:    res.Correct,
				},
			})
		}
	}
	t.mu.Unlock()

	if res == nil {
		return t.View(), nil, nil
	}
	return t.publish(ChangeState, ""), res, nil
}

// Advance moves to the neighbouring question.
func (t *Tracker) Advance(dir Direction) View {
	t.mu.Lock()
	t.state = t.state.Advance(dir)
	t.lastActive = time.Now()
	t.mu.Unlock()

	return t.publish(ChangeState, "")
}

// Reset restarts the session on the loaded questions.
func (t *Tracker) Reset() View {
	t.mu.Lock()
	t.state = t.state.Reset()
	t.lastActive = time.Now()
	t.mu.Unlock()

	return t.publish(ChangeState, "")
}

// State returns a copy of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// View returns the current presentational snapshot.
func (t *Tracker) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.viewLocked()
}

// Close detaches the auth listener, then drains and stops the persistence
// worker. Queued writes still complete. Safe to call more than once.
func (t *Tracker) Close() {
	t.mountMu.Lock()
	defer t.mountMu.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		<-t.done
		return
	}
	t.closed = true
	sub := t.sub
	t.sub = nil
	t.observers = nil
	close(t.jobs)
	t.mu.Unlock()

	sub.Unsubscribe()
	<-t.done
}

func (t *Tracker) handleAuth(ev auth.Event) {
	t.mu.Lock()
	if ev.Session != nil {
		u := ev.Session.User
		if t.user == nil || t.user.ID != u.ID {
			t.snapshot = nil
		}
		t.user = &u
		t.enqueueLocked(persistJob{userID: u.ID})
	} else {
		t.user = nil
		t.snapshot = nil
	}
	t.mu.Unlock()

	t.publish(ChangeAuth, ev.Type)
}

// caller holds t.mu
func (t *Tracker) enqueueLocked(job persistJob) {
	if t.closed {
		return
	}
	select {
	case t.jobs <- job:
	default:
		metrics.PersistenceFailures.WithLabelValues(metrics.StageQueue).Inc()
		t.logger.Warn().Str("user_id", job.userID.String()).Bool("answer", job.answer != nil).Msg("persistence queue full, dropping job")
	}
}

func (t *Tracker) runWorker() {
	defer close(t.done)
	for job := range t.jobs {
		t.process(job)
	}
}

// process writes the answer (if any) and refreshes the statistics. Each step
// is attempted once; failures are logged and swallowed.
func (t *Tracker) process(job persistJob) {
	ctx, cancel := context.WithTimeout(context.Background(), t.opts.PersistTimeout)
	defer cancel()

	logger := t.logger.With().Str("user_id", job.userID.String()).Logger()

	if job.answer != nil {
		if err := t.stats.RecordAnswer(ctx, *job.answer); err != nil {
			metrics.PersistenceFailures.WithLabelValues(metrics.StageUpsert).Inc()
			logger.Error().Err(err).Int64("question_id", job.answer.QuestionID).Msg("save answer failed")
			return
		}
	}

	snap, err := t.stats.Refresh(ctx, job.userID)
	if err != nil && !errors.Is(err, stats.ErrNoHistory) {
		metrics.PersistenceFailures.WithLabelValues(metrics.StageStats).Inc()
		logger.Error().Err(err).Msg("fetch user stats failed")
		return
	}

	t.mu.Lock()
	if t.user == nil || t.user.ID != job.userID {
		t.mu.Unlock()
		logger.Debug().Msg("discarding stats for signed-out user")
		return
	}
	if err != nil {
		t.snapshot = nil
	} else {
		t.snapshot = &snap
	}
	t.mu.Unlock()

	t.publish(ChangeStats, "")
}

// applySnapshot adopts a snapshot published for the signed-in user. Snapshots
// with fewer answers than the current one are stale and ignored.
func (t *Tracker) applySnapshot(snap stats.Snapshot) {
	t.mu.Lock()
	if t.closed || t.user == nil || t.user.ID != snap.UserID {
		t.mu.Unlock()
		return
	}
	if cur := t.snapshot; cur != nil && (snap.TotalAnswered < cur.TotalAnswered || sameCounts(*cur, snap)) {
		t.mu.Unlock()
		return
	}
	t.snapshot = &snap
	t.mu.Unlock()

	t.publish(ChangeStats, "")
}

func sameCounts(a, b stats.Snapshot) bool {
	return a.TotalAnswered == b.TotalAnswered &&
		a.TotalCorrect == b.TotalCorrect &&
		a.CurrentStreak == b.CurrentStreak &&
		a.LongestStreak == b.LongestStreak
}

func (t *Tracker) publish(kind ChangeKind, event auth.EventType) View {
	t.mu.Lock()
	view := t.viewLocked()
	observers := append([]Observer(nil), t.observers...)
	t.mu.Unlock()

	change := Change{Kind: kind, Event: event, View: view}
	for _, fn := range observers {
		fn(change)
	}
	return view
}
