package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/alignsync/internal/domain"
)

// GetProject returns the store's project record, or NotFound when the
// database has not been bound to a project yet.
func (s *Store) GetProject(ctx context.Context) (p domain.Project, err error) {
	const op = "get project"
	defer func() { observe(op, err) }()

	var (
		location, state                      string
		corporaChanged                       bool
		lastSync, lastServer, serverUpd, upd sql.NullInt64
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT id, name, location, state, corpora_changed,
		       last_sync_time, last_sync_server_time, server_updated_at, updated_at
		FROM project ORDER BY id LIMIT 1
	`).Scan(&p.ID, &p.Name, &location, &state, &corporaChanged, &lastSync, &lastServer, &serverUpd, &upd)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Project{}, notFound(op, "no project record in %s", s.path)
	}
	if err != nil {
		return domain.Project{}, fail(op, err)
	}

	if p.Location, err = domain.ParseLocation(location); err != nil {
		return domain.Project{}, fail(op, err)
	}
	p.State = domain.ProjectState(state)
	p.CorporaChanged = corporaChanged
	p.LastSyncTime = unmarshalTime(lastSync)
	p.LastSyncServerTime = unmarshalTime(lastServer)
	p.ServerUpdatedAt = unmarshalTime(serverUpd)
	p.UpdatedAt = unmarshalTime(upd)
	return p, nil
}

// SaveProject writes the project record. A store holds exactly one project;
// saving a different id fails with Conflict and leaves the record intact.
func (s *Store) SaveProject(ctx context.Context, p domain.Project) (err error) {
	const op = "save project"
	defer func() { observe(op, err) }()

	if p.ID == "" {
		return &Error{Kind: KindInvalidArgument, Op: op, Err: errors.New("project id is required")}
	}
	if _, perr := domain.ParseLocation(string(p.Location)); perr != nil {
		return &Error{Kind: KindInvalidArgument, Op: op, Err: perr}
	}
	if p.State == "" {
		p.State = domain.ProjectStateDraft
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var other string
		err := tx.QueryRowContext(ctx, `SELECT id FROM project WHERE id <> ? LIMIT 1`, p.ID).Scan(&other)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("check project id: %w", err)
		default:
			return fmt.Errorf("%w: store holds %q", ErrProjectMismatch, other)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO project (id, name, location, state, corpora_changed,
				last_sync_time, last_sync_server_time, server_updated_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				location = excluded.location,
				state = excluded.state,
				corpora_changed = excluded.corpora_changed,
				last_sync_time = excluded.last_sync_time,
				last_sync_server_time = excluded.last_sync_server_time,
				server_updated_at = excluded.server_updated_at,
				updated_at = excluded.updated_at
		`, p.ID, p.Name, string(p.Location), string(p.State), p.CorporaChanged,
			marshalTime(p.LastSyncTime), marshalTime(p.LastSyncServerTime),
			marshalTime(p.ServerUpdatedAt), marshalTime(p.UpdatedAt))
		if err != nil {
			return fmt.Errorf("upsert project: %w", err)
		}
		return nil
	})
	if err != nil {
		return fail(op, err, "project", p.ID)
	}
	return nil
}
