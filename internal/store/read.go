package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/querysql"
	"github.com/roach88/alignsync/internal/tokenid"
)

const (
	sourceJoinTable = "links__source_words"
	targetJoinTable = "links__target_words"
)

// joinTable maps a side to its join table. Only these two constants ever
// reach SQL.
func joinTable(side domain.Side) string {
	if side == domain.SideTargets {
		return targetJoinTable
	}
	return sourceJoinTable
}

// groupedLinksQuery unions the link rows with per-side aggregated join rows.
// %[1]s is an internal predicate on the link id column.
//
// CRITICAL: rows must arrive ordered by link_id; collectLinks starts a new
// link whenever the id changes.
const groupedLinksQuery = `
	SELECT id AS link_id, '' AS side, NULL AS words, sources_text, targets_text
	FROM links WHERE id %[1]s
	UNION ALL
	SELECT link_id, 'sources', group_concat(word_id, ','), NULL, NULL
	FROM links__source_words WHERE link_id %[1]s GROUP BY link_id
	UNION ALL
	SELECT link_id, 'targets', group_concat(word_id, ','), NULL, NULL
	FROM links__target_words WHERE link_id %[1]s GROUP BY link_id
	ORDER BY link_id, side
`

// FindLinksByIDs returns the links with the given ids, sorted by id.
// Unknown ids are omitted. Token ids within a link come back in position
// order.
//
// A single id is served by point queries; several ids use one grouped
// aggregation per join table.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) FindLinksByIDs(ctx context.Context, ids []string) (links []domain.Link, err error) {
	const op = "find links by ids"
	defer func() { observe(op, err) }()

	ids = uniqueSorted(nonEmpty(ids))
	switch len(ids) {
	case 0:
		return []domain.Link{}, nil
	case 1:
		links, err = s.findLinkPoint(ctx, ids[0])
	default:
		links = []domain.Link{}
		for _, part := range chunk(ids, maxParams) {
			pred := "IN (" + querysql.Placeholders(len(part)) + ")"
			args := querysql.Args(part)
			found, qerr := s.queryGroupedLinks(ctx, pred, repeatArgs(args, 3))
			if qerr != nil {
				err = qerr
				break
			}
			links = append(links, found...)
		}
	}
	if err != nil {
		return nil, fail(op, err, "ids", ids)
	}
	return links, nil
}

// GetLink returns one link or a NotFound error.
func (s *Store) GetLink(ctx context.Context, id string) (domain.Link, error) {
	links, err := s.FindLinksByIDs(ctx, []string{id})
	if err != nil {
		return domain.Link{}, err
	}
	if len(links) == 0 {
		return domain.Link{}, notFound("get link", "link %q", id)
	}
	return links[0], nil
}

// FindLinksBetweenIDs returns links whose id is in [fromID, toID], compared
// lexically.
func (s *Store) FindLinksBetweenIDs(ctx context.Context, fromID, toID string) (links []domain.Link, err error) {
	const op = "find links between ids"
	defer func() { observe(op, err) }()

	if fromID == "" || toID == "" || fromID > toID {
		return []domain.Link{}, nil
	}
	links, err = s.queryGroupedLinks(ctx, "BETWEEN ? AND ?", repeatArgs([]any{fromID, toID}, 3))
	if err != nil {
		return nil, fail(op, err, "from", fromID, "to", toID)
	}
	return links, nil
}

// FindLinksByWordID returns every link containing the token on side, each
// with its full token sets. A link with nothing on the opposite side has an
// empty list there.
func (s *Store) FindLinksByWordID(ctx context.Context, side domain.Side, tokenID string) (links []domain.Link, err error) {
	const op = "find links by word id"
	defer func() { observe(op, err) }()

	tokenID = tokenid.Normalize(tokenID)
	if !side.Valid() || tokenID == "" {
		return []domain.Link{}, nil
	}
	ids, err := selectStrings(ctx, s.db,
		`SELECT link_id FROM `+joinTable(side)+` WHERE word_id = ? ORDER BY link_id`, tokenID)
	if err != nil {
		return nil, fail(op, err, "side", side, "token", tokenID)
	}
	return s.FindLinksByIDs(ctx, ids)
}

// FindLinksByBCV returns the links with at least one side token in the
// given verse, ordered by link id. The verse is matched as an id range on
// the join table, so links to tokens not ingested yet are found too.
func (s *Store) FindLinksByBCV(ctx context.Context, side domain.Side, book, chapter, verse int) (links []domain.Link, err error) {
	const op = "find links by bcv"
	defer func() { observe(op, err) }()

	lo, hi, ok := tokenid.VerseRange(book, chapter, verse)
	if !side.Valid() || !ok {
		return []domain.Link{}, nil
	}
	ids, err := selectStrings(ctx, s.db, `
		SELECT DISTINCT link_id FROM `+joinTable(side)+`
		WHERE word_id >= ? AND word_id < ?
		ORDER BY link_id
	`, lo, hi)
	if err != nil {
		return nil, fail(op, err, "side", side, "book", book, "chapter", chapter, "verse", verse)
	}
	return s.FindLinksByIDs(ctx, ids)
}

// findLinkPoint loads one link with a point query per join table.
func (s *Store) findLinkPoint(ctx context.Context, id string) ([]domain.Link, error) {
	link := domain.Link{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT sources_text, targets_text FROM links WHERE id = ?`, id,
	).Scan(&link.SourcesText, &link.TargetsText)
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.Link{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query link: %w", err)
	}

	if link.Sources, err = selectStrings(ctx, s.db,
		`SELECT word_id FROM `+sourceJoinTable+` WHERE link_id = ? ORDER BY word_id`, id); err != nil {
		return nil, err
	}
	if link.Targets, err = selectStrings(ctx, s.db,
		`SELECT word_id FROM `+targetJoinTable+` WHERE link_id = ? ORDER BY word_id`, id); err != nil {
		return nil, err
	}
	return []domain.Link{link}, nil
}

// queryGroupedLinks runs groupedLinksQuery with an internal predicate.
func (s *Store) queryGroupedLinks(ctx context.Context, pred string, args []any) ([]domain.Link, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(groupedLinksQuery, pred), args...)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()
	return collectLinks(rows)
}

// collectLinks rebuilds links from rows ordered by link id. Each row is
// either the link row itself (side "") or one side's aggregated word ids.
func collectLinks(rows *sql.Rows) ([]domain.Link, error) {
	links := []domain.Link{}
	for rows.Next() {
		var (
			linkID, side string
			words        sql.NullString
			srcText      sql.NullString
			tgtText      sql.NullString
		)
		if err := rows.Scan(&linkID, &side, &words, &srcText, &tgtText); err != nil {
			return nil, fmt.Errorf("scan link row: %w", err)
		}

		if len(links) == 0 || links[len(links)-1].ID != linkID {
			links = append(links, domain.Link{ID: linkID, Sources: []string{}, Targets: []string{}})
		}
		cur := &links[len(links)-1]

		switch domain.Side(side) {
		case domain.SideSources:
			cur.Sources = append(cur.Sources, splitWords(words)...)
		case domain.SideTargets:
			cur.Targets = append(cur.Targets, splitWords(words)...)
		default:
			cur.SourcesText = srcText.String
			cur.TargetsText = tgtText.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate link rows: %w", err)
	}

	for i := range links {
		sort.Strings(links[i].Sources)
		sort.Strings(links[i].Targets)
	}
	return links, nil
}

func splitWords(v sql.NullString) []string {
	if !v.Valid || v.String == "" {
		return nil
	}
	return strings.Split(v.String, ",")
}

func repeatArgs(args []any, n int) []any {
	out := make([]any, 0, len(args)*n)
	for i := 0; i < n; i++ {
		out = append(out, args...)
	}
	return out
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
