package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/querysql"
)

// seedPivot builds two verses where "λόγος" aligns to "word" twice and to
// "Word" once, and one "θεός" stays unaligned.
func seedPivot(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	seedTokens(t, s,
		tok(domain.SideSources, "43001001001", "λόγος"),
		tok(domain.SideSources, "43001001002", "λόγος"),
		tok(domain.SideSources, "43001001003", "θεός"),
		tok(domain.SideSources, "43001014001", "λόγος"),
		tok(domain.SideTargets, "43001001001", "word"),
		tok(domain.SideTargets, "43001001002", "Word"),
		tok(domain.SideTargets, "43001014001", "word"),
	)
	require.NoError(t, s.InsertLinks(context.Background(), []domain.Link{
		{ID: "L1", Sources: []string{"43001001001"}, Targets: []string{"43001001001"}},
		{ID: "L2", Sources: []string{"43001001002"}, Targets: []string{"43001001002"}},
		{ID: "L3", Sources: []string{"43001014001"}, Targets: []string{"43001014001"}},
	}))
	return s
}

func TestCorporaGetPivotWords(t *testing.T) {
	s := seedPivot(t)
	ctx := context.Background()

	words, err := s.CorporaGetPivotWords(ctx, domain.SideSources, PivotAll, querysql.Sort{})
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, PivotWord{NormalizedText: "λόγος", LanguageID: "grc", Frequency: 3}, words[0])
	assert.Equal(t, PivotWord{NormalizedText: "θεός", LanguageID: "grc", Frequency: 1}, words[1])

	aligned, err := s.CorporaGetPivotWords(ctx, domain.SideSources, PivotAligned, querysql.Sort{})
	require.NoError(t, err)
	require.Len(t, aligned, 1)
	assert.Equal(t, "λόγος", aligned[0].NormalizedText)
}

func TestCorporaGetPivotWords_SortByText(t *testing.T) {
	s := seedPivot(t)

	words, err := s.CorporaGetPivotWords(context.Background(), domain.SideTargets, PivotAll,
		querysql.Sort{Field: querysql.FieldNormalizedText, Direction: querysql.Asc})
	require.NoError(t, err)
	require.Len(t, words, 2)
	// Binary collation: upper case sorts first.
	assert.Equal(t, "Word", words[0].NormalizedText)
	assert.Equal(t, "word", words[1].NormalizedText)
}

func TestCorporaGetPivotWords_UnknownSortField(t *testing.T) {
	s := seedPivot(t)

	_, err := s.CorporaGetPivotWords(context.Background(), domain.SideSources, PivotAll,
		querysql.Sort{Field: "language_id; DROP TABLE links"})
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err), "expected invalid argument, got %v", err)
	assert.Equal(t, 3, countRows(t, s, `SELECT COUNT(*) FROM links`))
}

func TestCorporaGetPivotWords_SortDirection(t *testing.T) {
	s := seedPivot(t)
	ctx := context.Background()

	words, err := s.CorporaGetPivotWords(ctx, domain.SideSources, PivotAll,
		querysql.Sort{Field: querysql.FieldFrequency, Direction: "asc"})
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "θεός", words[0].NormalizedText)

	_, err = s.CorporaGetPivotWords(ctx, domain.SideSources, PivotAll,
		querysql.Sort{Field: querysql.FieldFrequency, Direction: "sideways"})
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err), "expected invalid argument, got %v", err)
	assert.False(t, IsIoFailure(err))
}

func TestCorporaGetPivotWords_UnknownFilter(t *testing.T) {
	s := seedPivot(t)

	_, err := s.CorporaGetPivotWords(context.Background(), domain.SideSources, PivotFilter("some"), querysql.Sort{})
	assert.True(t, IsInvalidArgument(err), "expected invalid argument, got %v", err)
}

func TestCorporaGetAlignedWordsByPivotWord(t *testing.T) {
	s := seedPivot(t)

	pairs, err := s.CorporaGetAlignedWordsByPivotWord(context.Background(), domain.SideSources, "λόγος", querysql.Sort{})
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, AlignedWord{
		SourcesText: "λόγος", TargetsText: "word",
		SourceLanguage: "grc", TargetLanguage: "eng", Frequency: 2,
	}, pairs[0])
	assert.Equal(t, "Word", pairs[1].TargetsText)
	assert.Equal(t, 1, pairs[1].Frequency)
}

func TestCorporaGetAlignedWordsByPivotWord_SkipsOneSidedLinks(t *testing.T) {
	s := seedPivot(t)
	ctx := context.Background()
	require.NoError(t, s.InsertLinks(ctx, []domain.Link{{ID: "L4", Sources: []string{"43001001003"}}}))

	pairs, err := s.CorporaGetAlignedWordsByPivotWord(ctx, domain.SideSources, "θεός", querysql.Sort{})
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestCorporaGetLinksByAlignedWord(t *testing.T) {
	s := seedPivot(t)

	links, err := s.CorporaGetLinksByAlignedWord(context.Background(), "λόγος", "word",
		querysql.Sort{Field: querysql.FieldID, Direction: querysql.Desc})
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "L3", links[0].ID)
	assert.Equal(t, "L1", links[1].ID)
	assert.Equal(t, []string{"43001014001"}, links[0].Targets)
}

func TestCorporaGetLinksByAlignedWord_EmptyPair(t *testing.T) {
	s := seedPivot(t)

	links, err := s.CorporaGetLinksByAlignedWord(context.Background(), "", "", querysql.Sort{})
	require.NoError(t, err)
	assert.NotNil(t, links)
	assert.Empty(t, links)
}
