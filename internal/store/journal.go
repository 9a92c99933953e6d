package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/metrics"
	"github.com/roach88/alignsync/internal/querysql"
)

// AppendJournal records a pending mutation. Missing ids and timestamps are
// filled in; the stored entry, including its sequence number, is returned.
func (s *Store) AppendJournal(ctx context.Context, e domain.JournalEntry) (stored domain.JournalEntry, err error) {
	const op = "append journal"
	defer func() { observe(op, err) }()

	if e.ProjectID == "" || e.LinkID == "" {
		return domain.JournalEntry{}, &Error{Kind: KindInvalidArgument, Op: op,
			Err: fmt.Errorf("entry needs a project and a link id")}
	}
	stored, err = s.appendJournal(ctx, s.db, e)
	if err != nil {
		return domain.JournalEntry{}, fail(op, err, "project", e.ProjectID, "link", e.LinkID)
	}
	return stored, nil
}

// appendJournal writes one entry through q, so write paths can journal in
// their own transaction.
func (s *Store) appendJournal(ctx context.Context, q queryer, e domain.JournalEntry) (domain.JournalEntry, error) {
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	payload, err := marshalLink(e.Link)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO journal_entries (id, project_id, operation, link_id, payload, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.ProjectID, string(e.Operation), e.LinkID, payload, e.Timestamp.UnixMilli())
	if err != nil {
		return domain.JournalEntry{}, fmt.Errorf("insert journal entry: %w", err)
	}
	if e.Seq, err = res.LastInsertId(); err != nil {
		return domain.JournalEntry{}, fmt.Errorf("journal seq: %w", err)
	}
	metrics.JournalAppendedTotal.WithLabelValues(string(e.Operation)).Inc()
	return e, nil
}

// DrainJournal returns every pending entry for a project in append order.
// Entries stay in place until DeleteJournalByIDs acknowledges them.
func (s *Store) DrainJournal(ctx context.Context, projectID string) (entries []domain.JournalEntry, err error) {
	const op = "drain journal"
	defer func() { observe(op, err) }()

	if projectID == "" {
		return []domain.JournalEntry{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, project_id, operation, link_id, payload, timestamp
		FROM journal_entries
		WHERE project_id = ?
		ORDER BY seq ASC
	`, projectID)
	if err != nil {
		return nil, fail(op, err, "project", projectID)
	}
	defer rows.Close()

	entries = []domain.JournalEntry{}
	for rows.Next() {
		e, scanErr := scanJournalEntry(rows)
		if scanErr != nil {
			return nil, fail(op, scanErr, "project", projectID)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fail(op, err, "project", projectID)
	}
	return entries, nil
}

// DeleteJournalByIDs acknowledges entries. Unknown ids are ignored.
func (s *Store) DeleteJournalByIDs(ctx context.Context, ids []string) (err error) {
	const op = "delete journal entries"
	defer func() { observe(op, err) }()

	ids = uniqueSorted(nonEmpty(ids))
	if len(ids) == 0 {
		return nil
	}
	var deleted int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		for _, part := range chunk(ids, maxParams) {
			res, err := tx.ExecContext(ctx,
				`DELETE FROM journal_entries WHERE id IN (`+querysql.Placeholders(len(part))+`)`,
				querysql.Args(part)...)
			if err != nil {
				return fmt.Errorf("delete journal entries: %w", err)
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
		return nil
	})
	if err != nil {
		return fail(op, err, "ids", ids)
	}
	metrics.JournalAcknowledgedTotal.Add(float64(deleted))
	return nil
}

// CountJournal returns the number of pending entries for a project.
func (s *Store) CountJournal(ctx context.Context, projectID string) (n int, err error) {
	const op = "count journal"
	defer func() { observe(op, err) }()

	if err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM journal_entries WHERE project_id = ?`, projectID).Scan(&n); err != nil {
		return 0, fail(op, err, "project", projectID)
	}
	return n, nil
}

func scanJournalEntry(rows *sql.Rows) (domain.JournalEntry, error) {
	var (
		e         domain.JournalEntry
		operation string
		payload   sql.NullString
		ts        sql.NullInt64
	)
	if err := rows.Scan(&e.Seq, &e.ID, &e.ProjectID, &operation, &e.LinkID, &payload, &ts); err != nil {
		return domain.JournalEntry{}, fmt.Errorf("scan journal entry: %w", err)
	}
	e.Operation = domain.Operation(operation)
	e.Timestamp = unmarshalTime(ts)
	link, err := unmarshalLink(payload)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	e.Link = link
	return e, nil
}
