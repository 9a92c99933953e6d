package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/querysql"
	"github.com/roach88/alignsync/internal/tokenid"
)

const tokenColumns = `side, id, corpus_id, text, normalized_text, gloss, after_text, language_id,
	position_book, position_chapter, position_verse, position_word, position_part`

// InsertTokens bulk-inserts corpus tokens. Tokens are immutable: an id that
// already exists on the same side is left untouched. Links that already
// reference an inserted token get their text recomputed in the same
// transaction.
//
// Positions are derived from the token id; NormalizedText is stored in NFC.
func (s *Store) InsertTokens(ctx context.Context, tokens []domain.Token) (err error) {
	const op = "insert tokens"
	defer func() { observe(op, err) }()
	if len(tokens) == 0 {
		return nil
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertTokens(ctx, tx, tokens); err != nil {
			return err
		}
		ids, err := linksReferencing(ctx, tx, tokens)
		if err != nil {
			return err
		}
		return updateLinkText(ctx, tx, ids)
	})
	if err != nil {
		return fail(op, err, "count", len(tokens))
	}
	return nil
}

// linksReferencing returns the ids of links whose join rows point at any of
// tokens, sorted and unique.
func linksReferencing(ctx context.Context, q queryer, tokens []domain.Token) ([]string, error) {
	bySide := make(map[domain.Side][]string, 2)
	for _, t := range tokens {
		bySide[t.Side] = append(bySide[t.Side], tokenid.Normalize(t.ID))
	}
	var links []string
	for _, side := range []domain.Side{domain.SideSources, domain.SideTargets} {
		for _, part := range chunk(uniqueSorted(bySide[side]), maxParams) {
			ids, err := selectStrings(ctx, q,
				`SELECT DISTINCT link_id FROM `+joinTable(side)+
					` WHERE word_id IN (`+querysql.Placeholders(len(part))+`)`,
				querysql.Args(part)...)
			if err != nil {
				return nil, err
			}
			links = append(links, ids...)
		}
	}
	return uniqueSorted(links), nil
}

// ReplaceCorpusTokens replaces every token of a corpus, recomputes link text
// and flags the project's corpora as changed, in one transaction.
func (s *Store) ReplaceCorpusTokens(ctx context.Context, corpusID string, tokens []domain.Token) (err error) {
	const op = "replace corpus tokens"
	defer func() { observe(op, err) }()
	if corpusID == "" {
		return &Error{Kind: KindInvalidArgument, Op: op, Err: errors.New("corpus id is required")}
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM words_or_parts WHERE corpus_id = ?`, corpusID); err != nil {
			return fmt.Errorf("clear corpus: %w", err)
		}
		owned := make([]domain.Token, len(tokens))
		for i, t := range tokens {
			t.CorpusID = corpusID
			owned[i] = t
		}
		if err := insertTokens(ctx, tx, owned); err != nil {
			return err
		}
		ids, err := selectStrings(ctx, tx, `SELECT id FROM links ORDER BY id`)
		if err != nil {
			return err
		}
		if err := updateLinkText(ctx, tx, ids); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE project SET corpora_changed = 1`); err != nil {
			return fmt.Errorf("flag corpora changed: %w", err)
		}
		return nil
	})
	if err != nil {
		return fail(op, err, "corpus", corpusID, "count", len(tokens))
	}
	return nil
}

func insertTokens(ctx context.Context, tx *sql.Tx, tokens []domain.Token) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO words_or_parts (`+tokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(side, id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare token insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tokens {
		if !t.Side.Valid() {
			return &Error{Kind: KindInvalidArgument, Op: "insert token", Err: fmt.Errorf("token %q has side %q", t.ID, t.Side)}
		}
		id := tokenid.Normalize(t.ID)
		pos, err := tokenid.Decode(id)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			string(t.Side), id, t.CorpusID, t.Text, nullIfEmpty(domain.NormalizeText(t.NormalizedText)),
			t.Gloss, t.After, t.LanguageID,
			pos.Book, pos.Chapter, pos.Verse, pos.Word, pos.Part,
		); err != nil {
			return fmt.Errorf("insert token %s: %w", id, err)
		}
	}
	return nil
}

// FindWordsByBCV returns the tokens of one verse on a side in position order.
func (s *Store) FindWordsByBCV(ctx context.Context, side domain.Side, book, chapter, verse int) (tokens []domain.Token, err error) {
	const op = "find words by bcv"
	defer func() { observe(op, err) }()

	lo, hi, ok := tokenid.VerseRange(book, chapter, verse)
	if !side.Valid() || !ok {
		return []domain.Token{}, nil
	}
	tokens, err = s.queryTokens(ctx, `
		SELECT `+tokenColumns+` FROM words_or_parts
		WHERE side = ? AND id >= ? AND id < ?
		ORDER BY position_book, position_chapter, position_verse, position_word, position_part
	`, string(side), lo, hi)
	if err != nil {
		return nil, fail(op, err, "side", side, "book", book, "chapter", chapter, "verse", verse)
	}
	return tokens, nil
}

// GetAllWordsByCorpus pages through a corpus in position order. A limit of
// zero or less returns everything from offset on.
func (s *Store) GetAllWordsByCorpus(ctx context.Context, side domain.Side, corpusID string, limit, offset int) (tokens []domain.Token, err error) {
	const op = "get all words by corpus"
	defer func() { observe(op, err) }()

	if !side.Valid() || corpusID == "" {
		return []domain.Token{}, nil
	}
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	tokens, err = s.queryTokens(ctx, `
		SELECT `+tokenColumns+` FROM words_or_parts
		WHERE side = ? AND corpus_id = ?
		ORDER BY position_book, position_chapter, position_verse, position_word, position_part
		LIMIT ? OFFSET ?
	`, string(side), corpusID, limit, offset)
	if err != nil {
		return nil, fail(op, err, "side", side, "corpus", corpusID, "limit", limit, "offset", offset)
	}
	return tokens, nil
}

// CountTokens returns the number of tokens stored for a corpus.
func (s *Store) CountTokens(ctx context.Context, corpusID string) (n int, err error) {
	const op = "count tokens"
	defer func() { observe(op, err) }()

	if err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM words_or_parts WHERE corpus_id = ?`, corpusID).Scan(&n); err != nil {
		return 0, fail(op, err, "corpus", corpusID)
	}
	return n, nil
}

func (s *Store) queryTokens(ctx context.Context, query string, args ...any) ([]domain.Token, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	tokens := []domain.Token{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return tokens, nil
}

func scanToken(rows *sql.Rows) (domain.Token, error) {
	var (
		t          domain.Token
		side       string
		normalized sql.NullString
	)
	if err := rows.Scan(&side, &t.ID, &t.CorpusID, &t.Text, &normalized, &t.Gloss, &t.After, &t.LanguageID,
		&t.Position.Book, &t.Position.Chapter, &t.Position.Verse, &t.Position.Word, &t.Position.Part); err != nil {
		return domain.Token{}, fmt.Errorf("scan token: %w", err)
	}
	t.Side = domain.Side(side)
	t.NormalizedText = normalized.String
	return t, nil
}
