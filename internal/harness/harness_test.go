package harness

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)

	for _, path := range paths {
		t.Run(strings.TrimSuffix(filepath.Base(path), ".yaml"), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(context.Background(), scenario, t.TempDir())
			require.NoError(t, err)
			if !result.Pass {
				t.Fatalf("scenario failed:\n%s", strings.Join(result.Errors, "\n"))
			}
		})
	}
}

func TestRun_Golden(t *testing.T) {
	for _, name := range []string{
		"local_project_syncs",
		"permission_denied_rolls_back",
		"synced_project_pulls",
	} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata/scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/local_project_syncs.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), scenario, t.TempDir())
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario, t.TempDir())
	require.NoError(t, err)

	a, err := MarshalSnapshot(Snapshot(scenario, first))
	require.NoError(t, err)
	b, err := MarshalSnapshot(Snapshot(scenario, second))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_expectation
description: "expects success but the remote refuses"
project: { location: LOCAL }
remote:
  fail: { CreateProject: permission_denied }
assertions:
  - type: journal_count
    count: 0
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario, t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "PERMISSION_DENIED", result.ErrorCode)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], `expected error ""`)
}

func TestRun_DatabaseIsScopedToDir(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/name_unavailable.yaml")
	require.NoError(t, err)

	dir := t.TempDir()
	_, err = Run(context.Background(), scenario, dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "p1.db"))
	assert.NoError(t, err)
}
