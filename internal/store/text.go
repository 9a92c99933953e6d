package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/querysql"
)

// UpdateLinkText recomputes sources_text and targets_text for the given links.
func (s *Store) UpdateLinkText(ctx context.Context, ids []string) (err error) {
	const op = "update link text"
	defer func() { observe(op, err) }()

	ids = uniqueSorted(nonEmpty(ids))
	if len(ids) == 0 {
		return nil
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		return updateLinkText(ctx, tx, ids)
	})
	if err != nil {
		return fail(op, err, "ids", ids)
	}
	return nil
}

// UpdateAllLinkText recomputes the denormalized text of every link.
func (s *Store) UpdateAllLinkText(ctx context.Context) (err error) {
	const op = "update all link text"
	defer func() { observe(op, err) }()

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		ids, err := selectStrings(ctx, tx, `SELECT id FROM links ORDER BY id`)
		if err != nil {
			return err
		}
		return updateLinkText(ctx, tx, ids)
	})
	if err != nil {
		return fail(op, err)
	}
	return nil
}

// updateLinkText rewrites the text columns of ids inside q's transaction.
func updateLinkText(ctx context.Context, q queryer, ids []string) error {
	for _, part := range chunk(ids, maxParams) {
		sources, err := linkTexts(ctx, q, domain.SideSources, part)
		if err != nil {
			return err
		}
		targets, err := linkTexts(ctx, q, domain.SideTargets, part)
		if err != nil {
			return err
		}
		for _, id := range part {
			if _, err := q.ExecContext(ctx,
				`UPDATE links SET sources_text = ?, targets_text = ? WHERE id = ?`,
				sources[id], targets[id], id); err != nil {
				return fmt.Errorf("update text for %s: %w", id, err)
			}
		}
	}
	return nil
}

// textPart is one token's contribution to a link's text.
type textPart struct {
	pos  domain.Position
	text string
}

// linkTexts derives the text of one side for each link in ids. Links with
// no contributing tokens are absent from the map.
func linkTexts(ctx context.Context, q queryer, side domain.Side, ids []string) (map[string]string, error) {
	args := append([]any{string(side)}, querysql.Args(ids)...)
	rows, err := q.QueryContext(ctx, `
		SELECT j.link_id, w.position_book, w.position_chapter, w.position_verse,
		       w.position_word, w.position_part, w.normalized_text
		FROM `+joinTable(side)+` j
		JOIN words_or_parts w ON w.side = ? AND w.id = j.word_id
		WHERE j.link_id IN (`+querysql.Placeholders(len(ids))+`)
		  AND w.normalized_text IS NOT NULL AND w.normalized_text <> ''
		ORDER BY j.link_id, w.position_book, w.position_chapter, w.position_verse,
		         w.position_word, w.position_part
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s text: %w", side, err)
	}
	defer rows.Close()

	out := make(map[string]string, len(ids))
	var (
		current string
		parts   []textPart
	)
	flush := func() {
		if current != "" {
			out[current] = composeText(parts)
		}
		parts = parts[:0]
	}
	for rows.Next() {
		var (
			linkID string
			p      textPart
		)
		if err := rows.Scan(&linkID, &p.pos.Book, &p.pos.Chapter, &p.pos.Verse,
			&p.pos.Word, &p.pos.Part, &p.text); err != nil {
			return nil, fmt.Errorf("scan %s text: %w", side, err)
		}
		if linkID != current {
			flush()
			current = linkID
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s text: %w", side, err)
	}
	flush()
	return out, nil
}

// composeText joins position-ordered parts: parts of one word are
// concatenated, words are separated by a single space.
func composeText(parts []textPart) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 && !p.pos.SameWord(parts[i-1].pos) {
			b.WriteByte(' ')
		}
		b.WriteString(p.text)
	}
	return b.String()
}
