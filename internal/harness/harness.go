package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/engine"
	"github.com/roach88/alignsync/internal/remote"
	"github.com/roach88/alignsync/internal/store"
	"github.com/roach88/alignsync/internal/testutil"
)

var (
	// scenarioStart is the fixed clock of every scenario.
	scenarioStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// serverTime is what the fake remote reports.
	serverTime = time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
)

// collectTimeout bounds how long Run waits for the trailing IDLE.
const collectTimeout = 5 * time.Second

// singleStore serves one project store to the coordinator.
type singleStore struct {
	id    string
	store *store.Store
}

func (s singleStore) Get(_ context.Context, projectID string) (*store.Store, error) {
	if projectID != s.id {
		return nil, fmt.Errorf("no store for project %q", projectID)
	}
	return s.store, nil
}

// Run executes a scenario in a fresh database under dir and returns the
// result with assertions evaluated.
//
// Execution flow:
// 1. Seed the project, corpora and links
// 2. Configure the fake remote
// 3. Sync once and collect progress until IDLE
// 4. Read back the store and evaluate assertions
func Run(ctx context.Context, scenario *Scenario, dir string) (*Result, error) {
	clock := testutil.NewFixedClock(scenarioStart)
	n := 0
	st, err := store.Open(filepath.Join(dir, scenario.Project.ID+".db"),
		store.WithClock(clock.Now),
		store.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("entry-%03d", n)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	container := testutil.NewFakeCorpusContainer()
	if err := seed(ctx, st, container, scenario); err != nil {
		return nil, fmt.Errorf("failed to seed scenario: %w", err)
	}

	rem := testutil.NewFakeRemote(remote.ProjectResponse{UpdatedAt: serverTime, ServerTime: serverTime})
	for method, kind := range scenario.Remote.Fail {
		rem.FailOn(method, fmt.Errorf("%s: %w", method, remoteErrors[kind]))
	}
	pulled := make([]domain.Link, len(scenario.Remote.Pull))
	for i, l := range scenario.Remote.Pull {
		pulled[i] = l.Link()
	}
	rem.SetLinks(pulled)

	coord := engine.New(singleStore{id: scenario.Project.ID, store: st}, rem,
		engine.WithAuthorizer(rem),
		engine.WithCorpusContainer(container),
		engine.WithClock(clock),
		engine.WithRunIDs(testutil.NewFixedRunIDGenerator(scenario.RunID)),
		engine.WithResetDelay(0),
	)
	events, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	result := NewResult()
	syncErr := coord.Sync(ctx, scenario.Project.ID)
	result.ErrorCode = string(engine.CodeOf(syncErr))
	if syncErr != nil && result.ErrorCode == "" {
		result.ErrorCode = "UNKNOWN"
	}
	if err := collect(events, result); err != nil {
		return nil, err
	}
	result.RemoteCalls = append(result.RemoteCalls, rem.Calls()...)

	if err := readBack(ctx, st, result); err != nil {
		return nil, err
	}

	if result.ErrorCode != scenario.Expect.Error {
		result.AddError(fmt.Sprintf("expected error %q, got %q (%v)", scenario.Expect.Error, result.ErrorCode, syncErr))
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// seed writes the scenario's starting state.
func seed(ctx context.Context, st *store.Store, container *testutil.FakeCorpusContainer, s *Scenario) error {
	loc, err := domain.ParseLocation(s.Project.Location)
	if err != nil {
		return err
	}
	name := s.Project.Name
	if name == "" {
		name = s.Name
	}
	if err := st.SaveProject(ctx, domain.Project{ID: s.Project.ID, Name: name, Location: loc}); err != nil {
		return err
	}

	switch s.Corpora {
	case CorporaStore:
		for _, c := range Corpora() {
			if err := st.SaveCorpus(ctx, c); err != nil {
				return err
			}
			if err := st.InsertTokens(ctx, c.Words); err != nil {
				return err
			}
		}
	case CorporaContainer:
		container.Put(s.Project.ID, Corpora()...)
	}

	if len(s.Links) > 0 {
		links := make([]domain.Link, len(s.Links))
		for i, l := range s.Links {
			links[i] = l.Link()
		}
		if err := st.InsertLinks(ctx, links); err != nil {
			return err
		}
	}
	return nil
}

// Corpora returns the corpus pair every scenario seeds: the first word of
// Matthew on each side.
func Corpora() []domain.Corpus {
	return []domain.Corpus{
		{
			ID: "grc-corpus", Side: domain.SideSources, Name: "SBLGNT", LanguageID: "grc",
			Words: []domain.Token{{ID: "40001001001", CorpusID: "grc-corpus", Side: domain.SideSources, Text: "Βίβλος", NormalizedText: "βίβλος"}},
		},
		{
			ID: "eng-corpus", Side: domain.SideTargets, Name: "ENG", LanguageID: "eng",
			Words: []domain.Token{{ID: "40001001001", CorpusID: "eng-corpus", Side: domain.SideTargets, Text: "book", NormalizedText: "book"}},
		},
	}
}

// collect drains progress up to and including IDLE.
func collect(events <-chan engine.Progress, result *Result) error {
	timeout := time.After(collectTimeout)
	for {
		select {
		case p, ok := <-events:
			if !ok {
				return fmt.Errorf("progress stream closed after %d events", len(result.Trace))
			}
			result.Trace = append(result.Trace, TraceEvent{State: p.State.String(), Message: p.Message})
			if p.State == engine.StateIdle {
				return nil
			}
		case <-timeout:
			return fmt.Errorf("no IDLE progress after %d events", len(result.Trace))
		}
	}
}

// readBack records the store state after the run.
func readBack(ctx context.Context, st *store.Store, result *Result) error {
	p, err := st.GetProject(ctx)
	if err != nil {
		return fmt.Errorf("failed to read project: %w", err)
	}
	result.Project = p

	result.Journal, err = st.CountJournal(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to count journal: %w", err)
	}

	links, err := st.FindLinksBetweenIDs(ctx, "0", "~")
	if err != nil {
		return fmt.Errorf("failed to read links: %w", err)
	}
	for _, l := range links {
		result.Links = append(result.Links, l.ID)
	}
	slices.Sort(result.Links)
	return nil
}
