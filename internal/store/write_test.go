package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/alignsync/internal/domain"
)

func TestInsertLinks_LegacyPrefixStripped(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.InsertLinks(ctx, []domain.Link{
		{ID: "L1", Sources: []string{"o40001001001"}, Targets: []string{"n27008016031"}},
	})
	require.NoError(t, err)

	links, err := s.FindLinksByIDs(ctx, []string{"L1"})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, []string{"40001001001"}, links[0].Sources)
	assert.Equal(t, []string{"27008016031"}, links[0].Targets)
}

func TestInsertLinks_DuplicateIsConflict(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	link := domain.Link{ID: "L1", Sources: []string{"40001001001"}, Targets: []string{"27008016031"}}
	require.NoError(t, s.InsertLinks(ctx, []domain.Link{link}))

	err := s.InsertLinks(ctx, []domain.Link{
		{ID: "L2", Sources: []string{"40001001002"}},
		link,
	})
	require.Error(t, err)
	assert.True(t, IsConflict(err), "expected conflict, got %v", err)

	// Whole batch rolled back.
	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM links WHERE id = 'L2'`))
	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM links__source_words WHERE link_id = 'L2'`))
}

func TestInsertLinks_InvalidTokenID(t *testing.T) {
	s := createTestStore(t)

	err := s.InsertLinks(context.Background(), []domain.Link{{ID: "L1", Sources: []string{"not-a-token"}}})
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err), "expected invalid argument, got %v", err)
	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM links`))
}

func TestInsertLinks_MissingIDIsInvalid(t *testing.T) {
	s := createTestStore(t)

	err := s.InsertLinks(context.Background(), []domain.Link{{Sources: []string{"40001001001"}}})
	assert.True(t, IsInvalidArgument(err), "expected invalid argument, got %v", err)
}

func TestInsertLinks_DuplicateTokenInOneLink(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertLinks(ctx, []domain.Link{
		{ID: "L1", Sources: []string{"40001001001", "o40001001001"}},
	}))
	link, err := s.GetLink(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, []string{"40001001001"}, link.Sources)
	assert.Equal(t, []string{}, link.Targets)
}

func TestSaveLinks_RewritesMembership(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLinks(ctx, []domain.Link{
		{ID: "L1", Sources: []string{"40001001001", "40001001002"}, Targets: []string{"27008016031"}},
	}))
	require.NoError(t, s.SaveLinks(ctx, []domain.Link{
		{ID: "L1", Sources: []string{"40001001003"}, Targets: []string{}},
	}))

	link, err := s.GetLink(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, []string{"40001001003"}, link.Sources)
	assert.Equal(t, []string{}, link.Targets)
	assert.Equal(t, 1, countRows(t, s, `SELECT COUNT(*) FROM links__source_words WHERE link_id = 'L1'`))
	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM links__target_words WHERE link_id = 'L1'`))
}

func TestSaveLinks_Idempotent(t *testing.T) {
	s := createProjectStore(t, domain.LocationLocal)
	ctx := context.Background()
	seedTokens(t, s,
		tok(domain.SideSources, "40001001001", "βίβλος"),
		tok(domain.SideTargets, "27008016031", "book"),
	)

	link := domain.Link{ID: "L1", Sources: []string{"40001001001"}, Targets: []string{"27008016031"}}
	require.NoError(t, s.SaveLinks(ctx, []domain.Link{link}))
	once := snapshotLinks(t, s)
	journalOnce := countRows(t, s, `SELECT COUNT(*) FROM journal_entries`)

	require.NoError(t, s.SaveLinks(ctx, []domain.Link{link}))
	assert.Equal(t, once, snapshotLinks(t, s))
	assert.Equal(t, journalOnce, countRows(t, s, `SELECT COUNT(*) FROM journal_entries`))
}

func TestInsertThenDelete_LeavesNoJoinRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertLinks(ctx, []domain.Link{
		{ID: "L1", Sources: []string{"40001001001", "40001001002"}, Targets: []string{"27008016031"}},
	}))
	require.NoError(t, s.DeleteLinksByIDs(ctx, []string{"L1"}))

	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM links__source_words WHERE link_id = 'L1'`))
	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM links__target_words WHERE link_id = 'L1'`))
	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM links WHERE id = 'L1'`))
}

func TestDeleteLinksByIDs_EmptyIsNoop(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.DeleteLinksByIDs(context.Background(), nil))
}

func TestDeleteAllLinks(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertLinks(ctx, []domain.Link{
		{ID: "L1", Sources: []string{"40001001001"}},
		{ID: "L2", Targets: []string{"27008016031"}},
	}))
	require.NoError(t, s.DeleteAllLinks(ctx))

	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM links`))
	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM links__source_words`))
	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM links__target_words`))
}

func TestWrites_JournaledWhenLocal(t *testing.T) {
	s := createProjectStore(t, domain.LocationLocal)
	ctx := context.Background()

	require.NoError(t, s.InsertLinks(ctx, []domain.Link{{ID: "L1", Sources: []string{"40001001001"}}}))
	require.NoError(t, s.SaveLinks(ctx, []domain.Link{{ID: "L1", Sources: []string{"40001001002"}}}))
	require.NoError(t, s.SaveLinks(ctx, []domain.Link{{ID: "L2", Targets: []string{"27008016031"}}}))
	require.NoError(t, s.DeleteLinksByIDs(ctx, []string{"L1", "missing"}))

	entries, err := s.DrainJournal(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, domain.OpCreate, entries[0].Operation)
	assert.Equal(t, domain.OpUpdate, entries[1].Operation)
	assert.Equal(t, []string{"40001001002"}, entries[1].Link.Sources)
	assert.Equal(t, domain.OpCreate, entries[2].Operation)
	assert.Equal(t, "L2", entries[2].LinkID)
	assert.Equal(t, domain.OpDelete, entries[3].Operation)
	assert.Nil(t, entries[3].Link)
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i].Seq, entries[i-1].Seq)
	}
}

func TestWrites_NotJournaledWhenRemote(t *testing.T) {
	s := createProjectStore(t, domain.LocationRemote)
	ctx := context.Background()

	require.NoError(t, s.InsertLinks(ctx, []domain.Link{{ID: "L1", Sources: []string{"40001001001"}}}))
	require.NoError(t, s.DeleteAllLinks(ctx))

	n, err := s.CountJournal(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReplaceLinks_NotJournaled(t *testing.T) {
	s := createProjectStore(t, domain.LocationSynced)
	ctx := context.Background()

	require.NoError(t, s.InsertLinks(ctx, []domain.Link{{ID: "old", Sources: []string{"40001001001"}}}))
	before, err := s.CountJournal(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, s.ReplaceLinks(ctx, []domain.Link{
		{ID: "R1", Sources: []string{"40001001002"}, Targets: []string{"27008016031"}},
	}))

	after, err := s.CountJournal(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	links, err := s.FindLinksBetweenIDs(ctx, "A", "z")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "R1", links[0].ID)
}

// snapshotLinks dumps every link row and join row for equality checks.
func snapshotLinks(t *testing.T, s *Store) []string {
	t.Helper()
	var out []string
	for _, q := range []string{
		`SELECT id || '|' || sources_text || '|' || targets_text FROM links ORDER BY id`,
		`SELECT link_id || '|' || word_id FROM links__source_words ORDER BY link_id, word_id`,
		`SELECT link_id || '|' || word_id FROM links__target_words ORDER BY link_id, word_id`,
	} {
		rows, err := selectStrings(context.Background(), s.db, q)
		require.NoError(t, err)
		out = append(out, rows...)
		out = append(out, "--")
	}
	return out
}
