package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrderSet() OrderSet {
	return NewOrderSet(map[Field]string{
		FieldFrequency:      "frequency",
		FieldNormalizedText: "normalized_text COLLATE BINARY",
	}, Sort{Field: FieldFrequency, Direction: Desc}, "normalized_text COLLATE BINARY ASC")
}

func TestCompile_DefaultSort(t *testing.T) {
	clause, err := testOrderSet().Compile(Sort{})
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY frequency DESC, normalized_text COLLATE BINARY ASC", clause)
}

func TestCompile_AllowedField(t *testing.T) {
	clause, err := testOrderSet().Compile(Sort{Field: FieldNormalizedText})
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY normalized_text COLLATE BINARY ASC, normalized_text COLLATE BINARY ASC", clause)
}

func TestCompile_RejectsUnknownField(t *testing.T) {
	// Injection attempt must never appear in SQL.
	_, err := testOrderSet().Compile(Sort{Field: "frequency; DROP TABLE links"})
	assert.ErrorIs(t, err, ErrUnknownSortField)

	_, err = testOrderSet().Compile(Sort{Field: FieldSourcesText})
	assert.ErrorIs(t, err, ErrUnknownSortField)
}

func TestCompile_RejectsBadDirection(t *testing.T) {
	_, err := testOrderSet().Compile(Sort{Field: FieldFrequency, Direction: "SIDEWAYS"})
	assert.ErrorIs(t, err, ErrInvalidSortDirection)
}

func TestCompile_LowerCaseDirection(t *testing.T) {
	clause, err := testOrderSet().Compile(Sort{Field: FieldFrequency, Direction: "asc"})
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY frequency ASC, normalized_text COLLATE BINARY ASC", clause)
}

func TestCompile_TiebreakWithDirectionNotDuplicated(t *testing.T) {
	set := NewOrderSet(map[Field]string{FieldID: "id COLLATE BINARY"},
		Sort{Field: FieldID, Direction: Asc}, "id COLLATE BINARY ASC")

	clause, err := set.Compile(Sort{Field: FieldID, Direction: Desc})
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY id COLLATE BINARY DESC", clause)

	clause, err = set.Compile(Sort{})
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY id COLLATE BINARY ASC", clause)
}

func TestCompile_TiebreakNotDuplicated(t *testing.T) {
	set := NewOrderSet(map[Field]string{FieldID: "link_id"}, Sort{Field: FieldID}, "link_id")
	clause, err := set.Compile(Sort{})
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY link_id ASC", clause)
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		in      string
		want    Sort
		wantErr bool
	}{
		{"", Sort{}, false},
		{"frequency", Sort{Field: FieldFrequency, Direction: Asc}, false},
		{"Frequency:desc", Sort{Field: FieldFrequency, Direction: Desc}, false},
		{"sources_text:ASC", Sort{Field: FieldSourcesText, Direction: Asc}, false},
		{"frequency:up", Sort{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSort(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSortDirection)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", Placeholders(0))
	assert.Equal(t, "?", Placeholders(1))
	assert.Equal(t, "?, ?, ?", Placeholders(3))
	assert.Equal(t, []any{"a", "b"}, Args([]string{"a", "b"}))
}

func TestFields_Sorted(t *testing.T) {
	assert.Equal(t, []Field{FieldFrequency, FieldNormalizedText}, testOrderSet().Fields())
}
