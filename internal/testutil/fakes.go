package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/remote"
)

// Remote method names accepted by FakeRemote.FailOn, PanicOn and BlockOn.
const (
	MethodCreateProject      = "CreateProject"
	MethodUpdateProject      = "UpdateProject"
	MethodDeleteProject      = "DeleteProject"
	MethodUploadTokens       = "UploadTokens"
	MethodPullLinks          = "PullLinks"
	MethodPushLinkMutations  = "PushLinkMutations"
	MethodRefreshPermissions = "RefreshPermissions"
)

// FakeRemote is an in-memory remote.Client and remote.Authorizer that
// records every call.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeRemote struct {
	mu       sync.Mutex
	calls    []string
	errs     map[string]error
	panics   map[string]any
	blocks   map[string]func(ctx context.Context)
	links    []domain.Link
	response remote.ProjectResponse

	created  []remote.ProjectPayload
	updated  []remote.ProjectPayload
	uploaded map[string][]domain.Token
	pushed   []domain.JournalEntry
}

// NewFakeRemote creates a FakeRemote whose project calls answer with resp.
func NewFakeRemote(resp remote.ProjectResponse) *FakeRemote {
	return &FakeRemote{
		errs:     make(map[string]error),
		panics:   make(map[string]any),
		blocks:   make(map[string]func(ctx context.Context)),
		uploaded: make(map[string][]domain.Token),
		response: resp,
	}
}

// FailOn makes every call to method return err.
func (f *FakeRemote) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

// PanicOn makes every call to method panic with v.
func (f *FakeRemote) PanicOn(method string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics[method] = v
}

// BlockOn runs fn with the call's context before method returns.
func (f *FakeRemote) BlockOn(method string, fn func(ctx context.Context)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[method] = fn
}

// SetLinks sets what PullLinks returns.
func (f *FakeRemote) SetLinks(links []domain.Link) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = slices.Clone(links)
}

func (f *FakeRemote) call(ctx context.Context, method string) error {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	err := f.errs[method]
	v, panics := f.panics[method]
	block := f.blocks[method]
	f.mu.Unlock()

	if block != nil {
		block(ctx)
	}
	if panics {
		panic(v)
	}
	if err == nil {
		err = ctx.Err()
	}
	return err
}

func (f *FakeRemote) CreateProject(ctx context.Context, p remote.ProjectPayload) (remote.ProjectResponse, error) {
	if err := f.call(ctx, MethodCreateProject); err != nil {
		return remote.ProjectResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, p)
	resp := f.response
	resp.ID = p.ID
	return resp, nil
}

func (f *FakeRemote) UpdateProject(ctx context.Context, p remote.ProjectPayload) (remote.ProjectResponse, error) {
	if err := f.call(ctx, MethodUpdateProject); err != nil {
		return remote.ProjectResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, p)
	resp := f.response
	resp.ID = p.ID
	return resp, nil
}

func (f *FakeRemote) DeleteProject(ctx context.Context, _ string) error {
	return f.call(ctx, MethodDeleteProject)
}

func (f *FakeRemote) UploadTokens(ctx context.Context, _ string, corpus domain.Corpus, tokens []domain.Token) error {
	if err := f.call(ctx, MethodUploadTokens); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[corpus.ID] = slices.Clone(tokens)
	return nil
}

func (f *FakeRemote) PullLinks(ctx context.Context, _ string) ([]domain.Link, error) {
	if err := f.call(ctx, MethodPullLinks); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.links), nil
}

func (f *FakeRemote) PushLinkMutations(ctx context.Context, _ string, entries []domain.JournalEntry) error {
	if err := f.call(ctx, MethodPushLinkMutations); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, entries...)
	return nil
}

func (f *FakeRemote) RefreshPermissions(ctx context.Context) error {
	return f.call(ctx, MethodRefreshPermissions)
}

// Calls returns the method names called so far, in order.
func (f *FakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Created returns the payloads of successful CreateProject calls.
func (f *FakeRemote) Created() []remote.ProjectPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.created)
}

// Updated returns the payloads of successful UpdateProject calls.
func (f *FakeRemote) Updated() []remote.ProjectPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.updated)
}

// Uploaded returns the tokens uploaded for a corpus.
func (f *FakeRemote) Uploaded(corpusID string) []domain.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.uploaded[corpusID])
}

// Pushed returns every acknowledged journal entry, in push order.
func (f *FakeRemote) Pushed() []domain.JournalEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.pushed)
}

// FakeWorkspace records how a sync binds the workspace and lets the test
// decide when reinitialization finishes.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeWorkspace struct {
	mu          sync.Mutex
	current     string
	initialized bool
	viewResets  int
	prefResets  int
	pending     []func()
}

// NewFakeWorkspace creates a workspace bound to current.
func NewFakeWorkspace(current string, initialized bool) *FakeWorkspace {
	return &FakeWorkspace{current: current, initialized: initialized}
}

func (w *FakeWorkspace) CurrentProject() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *FakeWorkspace) IsInitialized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.initialized
}

func (w *FakeWorkspace) ResetLinkView() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.viewResets++
}

func (w *FakeWorkspace) Bind(projectID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = projectID
	w.initialized = false
}

func (w *FakeWorkspace) MarkPreferencesUninitialized() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prefResets++
}

func (w *FakeWorkspace) OnReinitialized(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, fn)
}

// Waiting returns how many callbacks wait for Reinitialize.
func (w *FakeWorkspace) Waiting() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Reinitialize marks the workspace loaded and fires pending callbacks.
func (w *FakeWorkspace) Reinitialize() {
	w.mu.Lock()
	w.initialized = true
	fns := w.pending
	w.pending = nil
	w.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Resets returns how often the link view and the preferences were reset.
func (w *FakeWorkspace) Resets() (view, prefs int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewResets, w.prefResets
}

// FakeCorpusContainer serves fixed corpora per project.
type FakeCorpusContainer struct {
	mu      sync.Mutex
	corpora map[string][]domain.Corpus
	err     error
}

// NewFakeCorpusContainer creates an empty container.
func NewFakeCorpusContainer() *FakeCorpusContainer {
	return &FakeCorpusContainer{corpora: make(map[string][]domain.Corpus)}
}

// Put sets the corpora served for projectID.
func (c *FakeCorpusContainer) Put(projectID string, corpora ...domain.Corpus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.corpora[projectID] = corpora
}

// Fail makes Corpora return err.
func (c *FakeCorpusContainer) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *FakeCorpusContainer) Corpora(_ context.Context, projectID string) ([]domain.Corpus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return slices.Clone(c.corpora[projectID]), nil
}

// RecordingPublisher keeps every published project.
type RecordingPublisher struct {
	mu        sync.Mutex
	published []domain.Project
}

func (p *RecordingPublisher) Publish(project domain.Project) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, project)
}

// Published returns the projects published so far, in order.
func (p *RecordingPublisher) Published() []domain.Project {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.published)
}
