package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/metrics"
	"github.com/roach88/alignsync/internal/remote"
	"github.com/roach88/alignsync/internal/store"
)

// DefaultResetDelay is how long a FAILED progress stays visible before the
// coordinator reports IDLE again.
const DefaultResetDelay = 5 * time.Second

// Stores resolves a project id to its store.
type Stores interface {
	Get(ctx context.Context, projectID string) (*store.Store, error)
}

// Workspace is the externally tracked "current project" and its link view.
type Workspace interface {
	CurrentProject() string
	IsInitialized() bool
	ResetLinkView()
	Bind(projectID string)
	MarkPreferencesUninitialized()

	// OnReinitialized registers fn to run once, from any goroutine, after
	// the workspace finished loading the bound project.
	OnReinitialized(fn func())
}

// CorpusContainer supplies fully hydrated corpora when the project's own
// store does not hold them.
type CorpusContainer interface {
	Corpora(ctx context.Context, projectID string) ([]domain.Corpus, error)
}

// Publisher reflects project records into the externally visible project
// list.
type Publisher interface {
	Publish(p domain.Project)
}

// Progress is one observable step of a sync run.
type Progress struct {
	ProjectID       string `json:"project_id"`
	RunID           string `json:"run_id"`
	State           State  `json:"state"`
	Message         string `json:"message,omitempty"`
	NameUnavailable bool   `json:"name_unavailable,omitempty"`
	Err             error  `json:"-"`
}

// Coordinator runs syncs. At most one run per project is in flight; runs
// for different projects are independent.
//
// Thread-safety model:
//   - Sync(): safe from any goroutine, blocks until the run ends
//   - Cancel(), Subscribe(), Running(): safe from any goroutine
type Coordinator struct {
	stores     Stores
	remote     remote.Client
	auth       remote.Authorizer
	workspace  Workspace
	corpora    CorpusContainer
	publisher  Publisher
	clock      Clock
	runIDs     RunIDGenerator
	resetDelay time.Duration

	mu      sync.Mutex
	running map[string]*run
	subs    map[int]chan Progress
	nextSub int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithAuthorizer sets the permission refresher used by the first stage.
func WithAuthorizer(a remote.Authorizer) Option {
	return func(c *Coordinator) { c.auth = a }
}

// WithWorkspace sets the workspace SWITCH_TO_PROJECT binds.
func WithWorkspace(ws Workspace) Option {
	return func(c *Coordinator) { c.workspace = ws }
}

// WithCorpusContainer sets the fallback corpus source.
func WithCorpusContainer(cc CorpusContainer) Option {
	return func(c *Coordinator) { c.corpora = cc }
}

// WithPublisher sets where updated and rolled-back projects are published.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithClock overrides the wall clock.
func WithClock(clock Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithRunIDs overrides run id generation.
func WithRunIDs(gen RunIDGenerator) Option {
	return func(c *Coordinator) { c.runIDs = gen }
}

// WithResetDelay sets how long FAILED is shown before IDLE. Zero or less
// resets immediately.
func WithResetDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.resetDelay = d }
}

// New creates a Coordinator.
func New(stores Stores, client remote.Client, opts ...Option) *Coordinator {
	c := &Coordinator{
		stores:     stores,
		remote:     client,
		clock:      SystemClock{},
		runIDs:     UUIDv7Generator{},
		resetDelay: DefaultResetDelay,
		running:    make(map[string]*run),
		subs:       make(map[int]chan Progress),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run is the state of one sync invocation.
type run struct {
	id        string
	projectID string
	ctx       context.Context
	cancel    context.CancelFunc
	queue     *transitionQueue

	store         *store.Store
	snapshot      domain.Project // as loaded before the first stage
	project       domain.Project // working copy
	startLocation domain.Location

	stage           State
	err             *SyncError
	panicked        bool
	nameUnavailable bool
	serverTime      time.Time
	serverUpdatedAt time.Time
}

func (r *run) log() *slog.Logger {
	return slog.With("run", r.id, "project", r.projectID)
}

// Sync runs one project through every stage and blocks until the run is
// over. It returns nil on SUCCESS and a *SyncError otherwise.
func (c *Coordinator) Sync(ctx context.Context, projectID string) error {
	if projectID == "" {
		return newSyncError(CodeStageFailed, "", StateIdle, "project id is required", nil)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		id:        c.runIDs.Generate(),
		projectID: projectID,
		ctx:       runCtx,
		cancel:    cancel,
		queue:     newTransitionQueue(),
	}

	c.mu.Lock()
	if _, busy := c.running[projectID]; busy {
		c.mu.Unlock()
		cancel()
		return newSyncError(CodeSyncInProgress, projectID, StateIdle, "a sync for this project is already running", nil)
	}
	c.running[projectID] = r
	c.mu.Unlock()

	defer func() {
		r.queue.Close()
		cancel()
		c.mu.Lock()
		delete(c.running, projectID)
		c.mu.Unlock()
	}()

	r.log().Info("sync starting")

	s, err := c.stores.Get(runCtx, projectID)
	if err == nil {
		r.store = s
		r.snapshot, err = s.GetProject(runCtx)
	}
	if err != nil {
		serr := newSyncError(CodeStageFailed, projectID, StateIdle, "sync failed", fmt.Errorf("load project: %w", err))
		metrics.SyncRunsTotal.WithLabelValues(StateFailed.String()).Inc()
		c.emit(r, StateFailed, serr.Message, serr)
		c.scheduleReset(r)
		return serr
	}
	r.project = r.snapshot
	r.startLocation = r.snapshot.Location

	r.queue.Enqueue(transition{next: StateRefreshingPermissions})
	return c.loop(r)
}

// Cancel aborts the in-flight run for projectID. It reports whether a run
// was found.
func (c *Coordinator) Cancel(projectID string) bool {
	c.mu.Lock()
	r, ok := c.running[projectID]
	c.mu.Unlock()
	if ok {
		r.cancel()
	}
	return ok
}

// Running reports whether a run for projectID is in flight.
func (c *Coordinator) Running(projectID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.running[projectID]
	return ok
}

// Subscribe returns a channel of progress events for every run and a
// function that unsubscribes and closes it. Events are dropped for a
// subscriber that falls too far behind.
func (c *Coordinator) Subscribe() (<-chan Progress, func()) {
	ch := make(chan Progress, 128)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
}

// loop drains the run's queue, one stage at a time, until a terminal state.
//
// CRITICAL: Must be the only goroutine executing stages for r.
func (c *Coordinator) loop(r *run) error {
	for {
		t, ok := r.queue.TryDequeue()
		if !ok {
			select {
			case <-r.ctx.Done():
				// Canceled while suspended.
				r.queue.Enqueue(transition{next: StateCanceled})
			case <-r.queue.Wait():
			}
			continue
		}

		next := t.next
		if !next.Terminal() && r.ctx.Err() != nil {
			next = StateCanceled
		}
		if next.Terminal() {
			return c.finish(r, next)
		}

		after := c.execute(r, next)
		if after != stateSuspended {
			r.queue.Enqueue(transition{next: after})
		}
	}
}

// execute runs one stage and returns the state to move to. Panics and
// errors become FAILED (or CANCELED once the run's context is done).
func (c *Coordinator) execute(r *run, stage State) (next State) {
	r.stage = stage
	c.emit(r, stage, "", nil)
	r.log().Debug("sync stage", "stage", stage)

	defer func() {
		if v := recover(); v != nil {
			r.log().Error("sync stage panicked", "stage", stage, "panic", v, "stack", string(debug.Stack()))
			metrics.SyncStagesTotal.WithLabelValues(stage.String(), metrics.Fail).Inc()
			r.panicked = true
			r.err = newSyncError(CodePanic, r.projectID, stage, "sync failed", fmt.Errorf("panic: %v", v))
			next = StateFailed
		}
	}()

	next, err := c.stageFunc(stage)(r.ctx, r)
	metrics.SyncStagesTotal.WithLabelValues(stage.String(), metrics.Status(err)).Inc()
	if err == nil {
		return next
	}
	if r.ctx.Err() != nil {
		return StateCanceled
	}

	var serr *SyncError
	if !errors.As(err, &serr) {
		serr = newSyncError(CodeStageFailed, r.projectID, stage, "sync failed", err)
	}
	r.err = serr
	r.log().Error("sync stage failed", "stage", stage, "code", serr.Code, "error", err)
	return StateFailed
}

// stageFunc maps a non-terminal state to its stage.
func (c *Coordinator) stageFunc(s State) func(context.Context, *run) (State, error) {
	switch s {
	case StateRefreshingPermissions:
		return c.refreshPermissions
	case StateSwitchToProject:
		return c.switchToProject
	case StateSyncingProject:
		return c.syncProject
	case StateSyncingCorpora:
		return c.syncCorpora
	case StateSyncingAlignments:
		return c.syncAlignments
	case StateUpdatingProject:
		return c.updateProject
	}
	return func(context.Context, *run) (State, error) {
		return 0, fmt.Errorf("no stage for state %s", s)
	}
}

// finish handles a terminal state and returns Sync's result.
func (c *Coordinator) finish(r *run, state State) error {
	metrics.SyncRunsTotal.WithLabelValues(state.String()).Inc()

	switch state {
	case StateSuccess:
		r.log().Info("sync complete")
		c.emit(r, StateSuccess, "sync complete", nil)
		c.emit(r, StateIdle, "", nil)
		return nil

	case StateCanceled:
		r.cancel()
		c.rollback(r)
		err := newSyncError(CodeAborted, r.projectID, r.stage, "sync canceled", context.Canceled)
		r.log().Info("sync canceled", "stage", r.stage)
		c.emit(r, StateCanceled, err.Message, err)
		c.emit(r, StateIdle, "", nil)
		return err

	default:
		r.cancel()
		c.rollback(r)
		err := r.err
		if err == nil {
			err = newSyncError(CodeStageFailed, r.projectID, r.stage, "sync failed", nil)
		}
		c.emit(r, StateFailed, err.Message, err)
		c.scheduleReset(r)
		return err
	}
}

// rollback restores the pre-sync project record of a LOCAL project and
// republishes it. After a panic the stored record is republished even when
// nothing was restored.
func (c *Coordinator) rollback(r *run) {
	ctx := context.WithoutCancel(r.ctx)

	if r.startLocation == domain.LocationLocal {
		if err := r.store.SaveProject(ctx, r.snapshot); err != nil {
			r.log().Error("restore project snapshot failed", "error", err)
		} else {
			r.log().Info("project snapshot restored", "location", r.snapshot.Location)
		}
		c.publish(r.snapshot)
		return
	}
	if r.panicked {
		p, err := r.store.GetProject(ctx)
		if err != nil {
			r.log().Error("reload project after panic failed", "error", err)
			p = r.snapshot
		}
		c.publish(p)
	}
}

// scheduleReset reports IDLE after the reset delay unless a new run for the
// project has started by then.
func (c *Coordinator) scheduleReset(r *run) {
	reset := func() {
		c.mu.Lock()
		cur, busy := c.running[r.projectID]
		c.mu.Unlock()
		if !busy || cur == r {
			c.emit(r, StateIdle, "", nil)
		}
	}
	if c.resetDelay <= 0 {
		reset()
		return
	}
	time.AfterFunc(c.resetDelay, reset)
}

func (c *Coordinator) emit(r *run, state State, msg string, err error) {
	p := Progress{
		ProjectID:       r.projectID,
		RunID:           r.id,
		State:           state,
		Message:         msg,
		NameUnavailable: r.nameUnavailable,
		Err:             err,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- p:
		default:
			slog.Warn("progress subscriber is full, dropping event", "run", r.id, "state", state)
		}
	}
}

func (c *Coordinator) publish(p domain.Project) {
	if c.publisher != nil {
		c.publisher.Publish(p)
	}
}
