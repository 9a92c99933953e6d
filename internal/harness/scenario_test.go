package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/permission_denied_rolls_back.yaml")
	require.NoError(t, err)

	assert.Equal(t, "permission_denied_rolls_back", s.Name)
	assert.Equal(t, "run-denied", s.RunID)
	assert.Equal(t, "p1", s.Project.ID, "project id defaults to p1")
	assert.Equal(t, "LOCAL", s.Project.Location)
	assert.Equal(t, CorporaStore, s.Corpora)
	require.Len(t, s.Links, 1)
	assert.Equal(t, []string{"40001001001"}, s.Links[0].Sources)
	assert.Equal(t, "permission_denied", s.Remote.Fail["CreateProject"])
	assert.Equal(t, "PERMISSION_DENIED", s.Expect.Error)
	require.Len(t, s.Assertions, 4)
	assert.Equal(t, AssertStates, s.Assertions[0].Type)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_AllTestdataParse(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			assert.NoError(t, err)
		})
	}
}

func TestParseScenario_Invalid(t *testing.T) {
	base := `
name: s
description: d
project: { location: LOCAL }
`
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown_field",
			yaml:    base + "assertion: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing_name",
			yaml:    "description: d\nproject: { location: LOCAL }\nassertions: [{ type: links }]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing_description",
			yaml:    "name: s\nproject: { location: LOCAL }\nassertions: [{ type: links }]\n",
			wantErr: "description is required",
		},
		{
			name:    "bad_location",
			yaml:    "name: s\ndescription: d\nproject: { location: MOON }\nassertions: [{ type: links }]\n",
			wantErr: "project.location",
		},
		{
			name:    "bad_corpora",
			yaml:    base + "corpora: somewhere\nassertions: [{ type: links }]\n",
			wantErr: "unknown source",
		},
		{
			name:    "bad_error_kind",
			yaml:    base + "remote: { fail: { CreateProject: teapot } }\nassertions: [{ type: links }]\n",
			wantErr: "unknown error kind",
		},
		{
			name:    "link_without_id",
			yaml:    base + "links: [{ sources: [\"40001001001\"] }]\nassertions: [{ type: links }]\n",
			wantErr: "links[0]: id is required",
		},
		{
			name:    "no_assertions",
			yaml:    base,
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown_assertion",
			yaml:    base + "assertions: [{ type: vibes }]\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "states_without_list",
			yaml:    base + "assertions: [{ type: states }]\n",
			wantErr: "states list is required",
		},
		{
			name:    "remote_count_without_method",
			yaml:    base + "assertions: [{ type: remote_count, count: 1 }]\n",
			wantErr: "method is required",
		},
		{
			name:    "final_project_without_expect",
			yaml:    base + "assertions: [{ type: final_project }]\n",
			wantErr: "expect is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	doc := "name: s\ndescription: d\nproject: { id: p7, location: REMOTE }\ncorpora: none\nassertions: [{ type: journal_count }]\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "p7", s.Project.ID)
	assert.Equal(t, CorporaNone, s.Corpora)
}
