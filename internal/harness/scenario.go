package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/remote"
)

// Scenario defines one sync run and what it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// RunID is the fixed run id. Defaults to "test-run".
	RunID string `yaml:"run_id,omitempty"`

	Project ProjectSetup `yaml:"project"`

	// Corpora says where the corpora come from: "store" seeds the project
	// database, "container" serves them from the corpus container only and
	// "none" leaves both empty.
	Corpora string `yaml:"corpora"`

	// Links are inserted before the run. Projects that journal record them.
	Links []LinkStep `yaml:"links,omitempty"`

	Remote RemoteSetup `yaml:"remote,omitempty"`

	Expect ExpectClause `yaml:"expect,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// ProjectSetup is the stored project record before the run.
type ProjectSetup struct {
	ID       string `yaml:"id,omitempty"`
	Name     string `yaml:"name,omitempty"`
	Location string `yaml:"location"`
}

// LinkStep is one link of the scenario.
type LinkStep struct {
	ID      string   `yaml:"id"`
	Sources []string `yaml:"sources"`
	Targets []string `yaml:"targets"`
}

// Link converts the step to a domain link.
func (l LinkStep) Link() domain.Link {
	sources := l.Sources
	if sources == nil {
		sources = []string{}
	}
	targets := l.Targets
	if targets == nil {
		targets = []string{}
	}
	return domain.Link{ID: l.ID, Sources: sources, Targets: targets}
}

// RemoteSetup configures the fake remote service.
type RemoteSetup struct {
	// Fail maps a remote method name to the error kind it returns.
	Fail map[string]string `yaml:"fail,omitempty"`

	// Pull is the remote link set.
	Pull []LinkStep `yaml:"pull,omitempty"`
}

// ExpectClause is the expected outcome of Sync.
type ExpectClause struct {
	// Error is the expected error code. Empty means Sync succeeds.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final store.
type Assertion struct {
	Type string `yaml:"type"`

	// States is the exact progress stream (states).
	States []string `yaml:"states,omitempty"`

	// Method is a remote method name (remote_count).
	Method string `yaml:"method,omitempty"`

	// Methods is the expected relative call order (remote_order).
	Methods []string `yaml:"methods,omitempty"`

	// Count is the expected number (remote_count, journal_count).
	Count int `yaml:"count,omitempty"`

	// Expect holds expected project fields (final_project).
	Expect map[string]any `yaml:"expect,omitempty"`

	// IDs are the expected link ids (links).
	IDs []string `yaml:"ids,omitempty"`
}

// Assertion type constants.
const (
	AssertStates       = "states"
	AssertRemoteOrder  = "remote_order"
	AssertRemoteCount  = "remote_count"
	AssertFinalProject = "final_project"
	AssertJournalCount = "journal_count"
	AssertLinks        = "links"
)

// Corpora sources.
const (
	CorporaStore     = "store"
	CorporaContainer = "container"
	CorporaNone      = "none"
)

// remoteErrors maps scenario error kinds to remote sentinels.
var remoteErrors = map[string]error{
	"permission_denied": remote.ErrPermissionDenied,
	"conflict":          remote.ErrConflict,
	"not_found":         remote.ErrNotFound,
	"unavailable":       remote.ErrUnavailable,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Project.ID == "" {
		scenario.Project.ID = "p1"
	}
	if scenario.Corpora == "" {
		scenario.Corpora = CorporaStore
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := domain.ParseLocation(s.Project.Location); err != nil {
		return fmt.Errorf("project.location: %w", err)
	}

	switch s.Corpora {
	case CorporaStore, CorporaContainer, CorporaNone:
	default:
		return fmt.Errorf("corpora: unknown source %q", s.Corpora)
	}

	for i, l := range s.Links {
		if l.ID == "" {
			return fmt.Errorf("links[%d]: id is required", i)
		}
	}
	for method, kind := range s.Remote.Fail {
		if _, ok := remoteErrors[kind]; !ok {
			return fmt.Errorf("remote.fail.%s: unknown error kind %q", method, kind)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStates:
		if len(a.States) == 0 {
			return fmt.Errorf("assertions[%d]: states list is required for states", index)
		}
	case AssertRemoteOrder:
		if len(a.Methods) == 0 {
			return fmt.Errorf("assertions[%d]: methods list is required for remote_order", index)
		}
	case AssertRemoteCount:
		if a.Method == "" {
			return fmt.Errorf("assertions[%d]: method is required for remote_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for remote_count", index)
		}
	case AssertFinalProject:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_project", index)
		}
	case AssertJournalCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for journal_count", index)
		}
	case AssertLinks:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
