package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSide_Opposite(t *testing.T) {
	assert.Equal(t, SideTargets, SideSources.Opposite())
	assert.Equal(t, SideSources, SideTargets.Opposite())
}

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"sources", SideSources, false},
		{"Source", SideSources, false},
		{" targets ", SideTargets, false},
		{"target", SideTargets, false},
		{"both", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSide(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPosition_Compare(t *testing.T) {
	base := Position{Book: 40, Chapter: 1, Verse: 2, Word: 3, Part: 0}

	assert.Equal(t, 0, base.Compare(base))
	assert.Equal(t, -1, base.Compare(Position{Book: 40, Chapter: 1, Verse: 2, Word: 3, Part: 1}))
	assert.Equal(t, 1, base.Compare(Position{Book: 40, Chapter: 1, Verse: 1, Word: 999}))
	assert.Equal(t, -1, base.Compare(Position{Book: 41}))
	assert.True(t, base.SameWord(Position{Book: 40, Chapter: 1, Verse: 2, Word: 3, Part: 2}))
	assert.False(t, base.SameWord(Position{Book: 40, Chapter: 1, Verse: 2, Word: 4}))
}

func TestLink_JSONFieldNaming(t *testing.T) {
	data, err := json.Marshal(Link{ID: "L1", Sources: []string{"40001001001"}, Targets: []string{}, SourcesText: "βίβλος"})
	require.NoError(t, err)

	assert.Contains(t, string(data), `"sources_text"`)
	assert.NotContains(t, string(data), `"targets_text"`)
	assert.NotContains(t, string(data), `"sourcesText"`)
}

func TestProject_Journaled(t *testing.T) {
	assert.True(t, Project{Location: LocationLocal}.Journaled())
	assert.True(t, Project{Location: LocationSynced}.Journaled())
	assert.False(t, Project{Location: LocationRemote}.Journaled())
}

func TestNormalizeText_ComposesToNFC(t *testing.T) {
	// alpha + combining acute composes to U+03AC.
	assert.Equal(t, "\u03ac", NormalizeText(" \u03b1\u0301 "))
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("SYNCED")
	require.NoError(t, err)
	assert.Equal(t, LocationSynced, loc)

	_, err = ParseLocation("synced")
	assert.Error(t, err)
}
