package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if _, err := s1.db.Exec(`INSERT INTO links (id) VALUES ('L1')`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	var count int
	if err := s2.db.QueryRow("SELECT COUNT(*) FROM links").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("links count = %d, want 1", count)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{
		"project", "language", "corpora", "words_or_parts",
		"links", "links__source_words", "links__target_words", "journal_entries",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPing(t *testing.T) {
	s := createTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}
}

// Pragma tests

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.want); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestMigrations_SetUserVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
	if !slices.Contains(getTableIndexes(t, s.db, "links"), "idx_links_text_pair") {
		t.Error("links table missing index idx_links_text_pair")
	}
}

// Schema tests

func TestSchema_WordsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "words_or_parts")
	expected := []string{
		"side", "id", "corpus_id", "text", "normalized_text", "gloss", "after_text", "language_id",
		"position_book", "position_chapter", "position_verse", "position_word", "position_part",
	}
	for _, col := range expected {
		if !slices.Contains(columns, col) {
			t.Errorf("words_or_parts table missing column %q", col)
		}
	}

	indexes := getTableIndexes(t, s.db, "words_or_parts")
	for _, idx := range []string{"idx_words_position", "idx_words_corpus", "idx_words_normalized"} {
		if !slices.Contains(indexes, idx) {
			t.Errorf("words_or_parts table missing index %q", idx)
		}
	}
}

func TestSchema_JoinTablesAreSeparate(t *testing.T) {
	s := createTestStore(t)

	for _, table := range []string{sourceJoinTable, targetJoinTable} {
		columns := getTableColumns(t, s.db, table)
		if len(columns) != 2 || !slices.Contains(columns, "link_id") || !slices.Contains(columns, "word_id") {
			t.Errorf("%s columns = %v, want [link_id word_id]", table, columns)
		}
	}
}

// Constraint tests

func TestConstraint_JoinRowsCascade(t *testing.T) {
	s := createTestStore(t)

	if _, err := s.db.Exec(`INSERT INTO links (id) VALUES ('L1')`); err != nil {
		t.Fatalf("insert link: %v", err)
	}
	if _, err := s.db.Exec(`INSERT INTO links__source_words (link_id, word_id) VALUES ('L1', '40001001001')`); err != nil {
		t.Fatalf("insert join row: %v", err)
	}
	if _, err := s.db.Exec(`DELETE FROM links WHERE id = 'L1'`); err != nil {
		t.Fatalf("delete link: %v", err)
	}
	if n := countRows(t, s, `SELECT COUNT(*) FROM links__source_words`); n != 0 {
		t.Errorf("join rows after delete = %d, want 0", n)
	}
}

func TestConstraint_JoinRowNeedsLink(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO links__target_words (link_id, word_id) VALUES ('missing', '40001001001')`)
	if err == nil {
		t.Error("expected foreign key violation, got nil")
	}
}

func TestChunk(t *testing.T) {
	got := chunk([]string{"a", "b", "c", "d", "e"}, 2)
	if len(got) != 3 || len(got[2]) != 1 || got[2][0] != "e" {
		t.Errorf("chunk() = %v", got)
	}
	if chunk(nil, 2) != nil {
		t.Error("chunk(nil) should be nil")
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
