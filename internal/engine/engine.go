// Package engine drives sync passes and the note commands built on them.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/dinosync/internal/daily"
	"github.com/starford/dinosync/internal/models"
	"github.com/starford/dinosync/internal/notify"
	"github.com/starford/dinosync/internal/pathing"
	"github.com/starford/dinosync/internal/reconcile"
	"github.com/starford/dinosync/internal/remote"
	"github.com/starford/dinosync/internal/sse"
	"github.com/starford/dinosync/internal/state"
	"github.com/starford/dinosync/internal/vault"
)

// Phase is the sync state machine position.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseFetching    Phase = "fetching"
	PhaseReconciling Phase = "reconciling"
	PhasePersisting  Phase = "persisting"
)

// Notice dismissal delays.
const (
	successHide = 4 * time.Second
	errorHide   = 10 * time.Second
	noteHide    = 6 * time.Second
)

// Remote is the note service API.
type Remote interface {
	FetchNotes(ctx context.Context, template, lastSyncTime string) ([]models.DayBucket, error)
	CreateNote(ctx context.Context, in remote.NoteInput) (string, error)
	UpdateNote(ctx context.Context, noteID string, in remote.NoteInput) error
}

// RemoteFactory returns a Remote authenticated with token.
type RemoteFactory func(token string) Remote

// Publisher receives sync events. *sse.Broker implements it.
type Publisher interface {
	Publish(event sse.Event)
	PublishNoteEvent(kind, path string)
}

// RunRecorder stores sync history. *state.DB implements it.
type RunRecorder interface {
	RecordRun(ctx context.Context, r state.Run) (int64, error)
}

// Engine owns the sync state: the settings snapshot, the identity map and
// the syncing flag. One Engine exists per vault.
type Engine struct {
	store      vault.Provider
	cache      *vault.Cache
	state      *state.Store
	remoteFor  RemoteFactory
	resolver   *pathing.Resolver
	reconciler *reconcile.Reconciler
	daily      *daily.Aggregator
	logger     *slog.Logger

	notifier notify.Notifier
	events   Publisher
	runs     RunRecorder
	token    string
	interval time.Duration
	now      func() time.Time

	syncing atomic.Bool

	mu     sync.Mutex
	phase  Phase
	ids    map[string]string
	last   *models.SyncSummary
	lastAt time.Time
	errMsg string
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets where user-facing notices go.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithEvents publishes sync progress to p.
func WithEvents(p Publisher) Option {
	return func(e *Engine) { e.events = p }
}

// WithRuns records every pass in r.
func WithRuns(r RunRecorder) Option {
	return func(e *Engine) { e.runs = r }
}

// WithToken overrides the API token from settings.
func WithToken(token string) Option {
	return func(e *Engine) { e.token = token }
}

// WithInterval overrides the auto-sync interval from settings.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over the given vault, persisted store and remote.
func New(store vault.Provider, cache *vault.Cache, st *state.Store, remoteFor RemoteFactory, host daily.HostConfig, logger *slog.Logger, opts ...Option) *Engine {
	resolver := pathing.NewResolver(store, cache, logger)
	e := &Engine{
		store:      store,
		cache:      cache,
		state:      st,
		remoteFor:  remoteFor,
		resolver:   resolver,
		reconciler: reconcile.New(store, cache, resolver, logger),
		daily:      daily.NewAggregator(store, host, logger),
		logger:     logger,
		notifier:   notify.NewLogger(logger),
		now:        time.Now,
		phase:      PhaseIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status is a snapshot of the engine.
type Status struct {
	Phase        Phase               `json:"phase"`
	Syncing      bool                `json:"syncing"`
	TrackedNotes int                 `json:"tracked_notes"`
	LastSummary  *models.SyncSummary `json:"last_summary,omitempty"`
	LastFinished *time.Time          `json:"last_finished,omitempty"`
	LastError    string              `json:"last_error,omitempty"`
}

// Status returns the current phase and the result of the last pass.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		Phase:        e.phase,
		Syncing:      e.syncing.Load(),
		TrackedNotes: len(e.ids),
		LastError:    e.errMsg,
	}
	if e.last != nil {
		s := *e.last
		st.LastSummary = &s
	}
	if !e.lastAt.IsZero() {
		t := e.lastAt
		st.LastFinished = &t
	}
	return st
}

// Syncing reports whether a pass is running.
func (e *Engine) Syncing() bool {
	return e.syncing.Load()
}

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
	e.publish(sse.TypePhase, map[string]string{"phase": string(p)})
}

func (e *Engine) publish(typ string, data any) {
	if e.events != nil {
		e.events.Publish(sse.Event{Type: typ, Data: data})
	}
}

func (e *Engine) publishNote(kind, path string) {
	if e.events != nil {
		e.events.PublishNoteEvent(kind, path)
	}
}
