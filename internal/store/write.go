package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/querysql"
	"github.com/roach88/alignsync/internal/tokenid"
)

type writeMode int

const (
	modeInsert writeMode = iota // duplicate id is a Conflict
	modeSave                    // upsert
)

// InsertLinks inserts new links with their full join membership.
// Any id that already exists fails the whole batch with a Conflict error.
//
// Link text is recomputed and, when the project is journaled, one create
// entry per link is appended, all in the same transaction.
func (s *Store) InsertLinks(ctx context.Context, links []domain.Link) (err error) {
	const op = "insert links"
	defer func() { observe(op, err) }()
	if len(links) == 0 {
		return nil
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		return s.writeLinks(ctx, tx, links, modeInsert, true)
	})
	if err != nil {
		return fail(op, err, "ids", linkIDs(links))
	}
	return nil
}

// SaveLinks upserts links, rewriting each link's join membership in full.
//
// Saving a link whose membership is unchanged is a no-op, so repeating a
// save leaves the store (journal included) exactly as one save would.
func (s *Store) SaveLinks(ctx context.Context, links []domain.Link) (err error) {
	const op = "save links"
	defer func() { observe(op, err) }()
	if len(links) == 0 {
		return nil
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		return s.writeLinks(ctx, tx, links, modeSave, true)
	})
	if err != nil {
		return fail(op, err, "ids", linkIDs(links))
	}
	return nil
}

// ReplaceLinks replaces every link with an authoritative set pulled from the
// remote service. Nothing is journaled.
func (s *Store) ReplaceLinks(ctx context.Context, links []domain.Link) (err error) {
	const op = "replace links"
	defer func() { observe(op, err) }()

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM links`); err != nil {
			return fmt.Errorf("clear links: %w", err)
		}
		return s.writeLinks(ctx, tx, links, modeInsert, false)
	})
	if err != nil {
		return fail(op, err, "count", len(links))
	}
	return nil
}

// DeleteLinksByIDs removes links; their join rows cascade. Ids that do not
// exist are ignored and are not journaled.
func (s *Store) DeleteLinksByIDs(ctx context.Context, ids []string) (err error) {
	const op = "delete links"
	defer func() { observe(op, err) }()
	if len(ids) == 0 {
		return nil
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var existing []string
		for _, part := range chunk(uniqueSorted(ids), maxParams) {
			found, err := selectStrings(ctx, tx,
				`SELECT id FROM links WHERE id IN (`+querysql.Placeholders(len(part))+`) ORDER BY id`,
				querysql.Args(part)...)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM links WHERE id IN (`+querysql.Placeholders(len(part))+`)`,
				querysql.Args(part)...); err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			existing = append(existing, found...)
		}
		return s.journalDeletes(ctx, tx, existing)
	})
	if err != nil {
		return fail(op, err, "ids", ids)
	}
	return nil
}

// DeleteAllLinks removes every link in the project.
func (s *Store) DeleteAllLinks(ctx context.Context) (err error) {
	const op = "delete all links"
	defer func() { observe(op, err) }()

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := selectStrings(ctx, tx, `SELECT id FROM links ORDER BY id`)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM links`); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		return s.journalDeletes(ctx, tx, existing)
	})
	if err != nil {
		return fail(op, err)
	}
	return nil
}

// writeLinks is the shared insert/save path. Callers own the transaction.
func (s *Store) writeLinks(ctx context.Context, tx *sql.Tx, links []domain.Link, mode writeMode, journal bool) error {
	projectID, journaled, err := journalTarget(ctx, tx)
	if err != nil {
		return err
	}
	journaled = journaled && journal

	var (
		touched []string
		entries []domain.JournalEntry
	)
	for _, l := range links {
		if l.ID == "" {
			return &Error{Kind: KindInvalidArgument, Op: "write link", Err: errors.New("link id is required")}
		}
		sources, err := cleanTokenIDs(l.Sources)
		if err != nil {
			return fmt.Errorf("link %s sources: %w", l.ID, err)
		}
		targets, err := cleanTokenIDs(l.Targets)
		if err != nil {
			return fmt.Errorf("link %s targets: %w", l.ID, err)
		}

		operation := domain.OpCreate
		switch mode {
		case modeInsert:
			if _, err := tx.ExecContext(ctx, `INSERT INTO links (id) VALUES (?)`, l.ID); err != nil {
				return fmt.Errorf("insert link %s: %w", l.ID, err)
			}
		case modeSave:
			curSources, curTargets, exists, err := readMembership(ctx, tx, l.ID)
			if err != nil {
				return err
			}
			if exists {
				if slices.Equal(curSources, sortedCopy(sources)) && slices.Equal(curTargets, sortedCopy(targets)) {
					continue
				}
				operation = domain.OpUpdate
			} else if _, err := tx.ExecContext(ctx, `INSERT INTO links (id) VALUES (?)`, l.ID); err != nil {
				return fmt.Errorf("insert link %s: %w", l.ID, err)
			}
		}

		if err := replaceMembership(ctx, tx, l.ID, sources, targets); err != nil {
			return err
		}
		touched = append(touched, l.ID)

		if journaled {
			entries = append(entries, domain.JournalEntry{
				ProjectID: projectID,
				Operation: operation,
				LinkID:    l.ID,
				Link:      &domain.Link{ID: l.ID, Sources: sources, Targets: targets},
			})
		}
	}

	if err := updateLinkText(ctx, tx, touched); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := s.appendJournal(ctx, tx, e); err != nil {
			return err
		}
	}
	return nil
}

// replaceMembership rewrites both join tables for one link.
func replaceMembership(ctx context.Context, tx *sql.Tx, linkID string, sources, targets []string) error {
	for _, side := range []struct {
		table string
		ids   []string
	}{
		{sourceJoinTable, sources},
		{targetJoinTable, targets},
	} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+side.table+` WHERE link_id = ?`, linkID); err != nil {
			return fmt.Errorf("clear %s for %s: %w", side.table, linkID, err)
		}
		for _, wordID := range side.ids {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO `+side.table+` (link_id, word_id) VALUES (?, ?)`,
				linkID, wordID); err != nil {
				return fmt.Errorf("insert %s row for %s: %w", side.table, linkID, err)
			}
		}
	}
	return nil
}

// readMembership returns a link's current token ids, sorted.
func readMembership(ctx context.Context, q queryer, linkID string) (sources, targets []string, exists bool, err error) {
	var one int
	err = q.QueryRowContext(ctx, `SELECT 1 FROM links WHERE id = ?`, linkID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("read link %s: %w", linkID, err)
	}
	sources, err = selectStrings(ctx, q,
		`SELECT word_id FROM `+sourceJoinTable+` WHERE link_id = ? ORDER BY word_id`, linkID)
	if err != nil {
		return nil, nil, false, err
	}
	targets, err = selectStrings(ctx, q,
		`SELECT word_id FROM `+targetJoinTable+` WHERE link_id = ? ORDER BY word_id`, linkID)
	if err != nil {
		return nil, nil, false, err
	}
	return sources, targets, true, nil
}

// journalTarget reports the project id and whether its edits are journaled.
// A store without a project row journals nothing.
func journalTarget(ctx context.Context, q queryer) (string, bool, error) {
	var id, location string
	err := q.QueryRowContext(ctx, `SELECT id, location FROM project ORDER BY id LIMIT 1`).Scan(&id, &location)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read project: %w", err)
	}
	return id, domain.Project{Location: domain.Location(location)}.Journaled(), nil
}

// journalDeletes appends one delete entry per removed link.
func (s *Store) journalDeletes(ctx context.Context, tx *sql.Tx, ids []string) error {
	projectID, journaled, err := journalTarget(ctx, tx)
	if err != nil || !journaled {
		return err
	}
	for _, id := range ids {
		if _, err := s.appendJournal(ctx, tx, domain.JournalEntry{
			ProjectID: projectID,
			Operation: domain.OpDelete,
			LinkID:    id,
		}); err != nil {
			return err
		}
	}
	return nil
}

// cleanTokenIDs strips legacy prefixes, validates and de-duplicates ids,
// keeping first-seen order.
func cleanTokenIDs(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, raw := range ids {
		id := tokenid.Normalize(raw)
		if _, err := tokenid.Decode(id); err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// selectStrings runs a single-column query.
func selectStrings(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

func linkIDs(links []domain.Link) []string {
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.ID
	}
	return ids
}

func sortedCopy(ids []string) []string {
	out := slices.Clone(ids)
	sort.Strings(out)
	return out
}

func uniqueSorted(ids []string) []string {
	out := sortedCopy(ids)
	return slices.Compact(out)
}
