package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/alignsync/internal/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore opens a fresh database in a temp dir with a fixed clock and
// sequential journal ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	n := 0
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("entry-%03d", n)
		}),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createProjectStore is createTestStore with a project record at loc.
func createProjectStore(t *testing.T, loc domain.Location) *Store {
	t.Helper()
	s := createTestStore(t)
	require.NoError(t, s.SaveProject(context.Background(), domain.Project{
		ID: "p1", Name: "Project One", Location: loc,
	}))
	return s
}

// tok builds a token with its normalized text equal to text.
func tok(side domain.Side, id, text string) domain.Token {
	return domain.Token{ID: id, CorpusID: string(side) + "-corpus", Side: side, Text: text, NormalizedText: text, LanguageID: langFor(side)}
}

func langFor(side domain.Side) string {
	if side == domain.SideSources {
		return "grc"
	}
	return "eng"
}

func seedTokens(t *testing.T, s *Store, tokens ...domain.Token) {
	t.Helper()
	require.NoError(t, s.InsertTokens(context.Background(), tokens))
}

func countRows(t *testing.T, s *Store, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(query, args...).Scan(&n))
	return n
}
