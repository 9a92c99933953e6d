package harness

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			if event.Message != "" {
				fmt.Fprintf(&buf, "  [%d] %s (%s)\n", i+1, event.State, event.Message)
			} else {
				fmt.Fprintf(&buf, "  [%d] %s\n", i+1, event.State)
			}
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertStates:
		return assertStates(result, a)
	case AssertRemoteOrder:
		return assertRemoteOrder(result, a)
	case AssertRemoteCount:
		return assertRemoteCount(result, a)
	case AssertFinalProject:
		return assertFinalProject(result, a)
	case AssertJournalCount:
		if result.Journal != a.Count {
			return &AssertionError{
				Type:     AssertJournalCount,
				Expected: fmt.Sprintf("%d pending journal entries", a.Count),
				Actual:   fmt.Sprintf("%d", result.Journal),
			}
		}
		return nil
	case AssertLinks:
		ids := slices.Clone(a.IDs)
		slices.Sort(ids)
		if !slices.Equal(ids, result.Links) {
			return &AssertionError{
				Type:     AssertLinks,
				Expected: fmt.Sprintf("links %v", ids),
				Actual:   fmt.Sprintf("links %v", result.Links),
			}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertStates checks the progress stream state by state.
func assertStates(result *Result, a Assertion) error {
	got := result.States()
	if slices.Equal(got, a.States) {
		return nil
	}
	return &AssertionError{
		Type:     AssertStates,
		Expected: strings.Join(a.States, " -> "),
		Actual:   strings.Join(got, " -> "),
		Trace:    result.Trace,
	}
}

// assertRemoteOrder checks that methods were called in the given order.
// Intervening calls are allowed.
func assertRemoteOrder(result *Result, a Assertion) error {
	next := 0
	for _, call := range result.RemoteCalls {
		if next < len(a.Methods) && call == a.Methods[next] {
			next++
		}
	}
	if next == len(a.Methods) {
		return nil
	}
	return &AssertionError{
		Type:     AssertRemoteOrder,
		Expected: fmt.Sprintf("calls in order: %v", a.Methods),
		Actual:   fmt.Sprintf("%v (missing %s)", result.RemoteCalls, a.Methods[next]),
		Trace:    result.Trace,
	}
}

// assertRemoteCount checks that a method was called exactly Count times.
func assertRemoteCount(result *Result, a Assertion) error {
	count := 0
	for _, call := range result.RemoteCalls {
		if call == a.Method {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRemoteCount,
		Expected: fmt.Sprintf("%s called %d time(s)", a.Method, a.Count),
		Actual:   fmt.Sprintf("called %d time(s)", count),
		Trace:    result.Trace,
	}
}

// projectFields exposes the project fields final_project can check.
func projectFields(result *Result) map[string]any {
	p := result.Project
	return map[string]any{
		"id":              p.ID,
		"name":            p.Name,
		"location":        string(p.Location),
		"state":           string(p.State),
		"corpora_changed": p.CorporaChanged,
		"synced":          !p.LastSyncTime.IsZero(),
		"last_sync_time":  formatTime(p.LastSyncTime),
		"server_time":     formatTime(p.LastSyncServerTime),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// assertFinalProject compares expected fields against the stored project.
// Only the listed fields are checked.
func assertFinalProject(result *Result, a Assertion) error {
	fields := projectFields(result)

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		got, ok := fields[k]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalProject,
				Expected: fmt.Sprintf("known project field %q", k),
				Actual:   "no such field",
			}
		}
		want := a.Expect[k]
		if t, isTime := want.(time.Time); isTime {
			want = formatTime(t)
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return &AssertionError{
				Type:     AssertFinalProject,
				Expected: fmt.Sprintf("%s = %v", k, want),
				Actual:   fmt.Sprintf("%s = %v", k, got),
			}
		}
	}
	return nil
}
