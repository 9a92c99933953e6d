package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/querysql"
)

// SaveCorpus upserts corpus metadata.
func (s *Store) SaveCorpus(ctx context.Context, c domain.Corpus) (err error) {
	const op = "save corpus"
	defer func() { observe(op, err) }()

	if c.ID == "" || !c.Side.Valid() {
		return &Error{Kind: KindInvalidArgument, Op: op, Err: fmt.Errorf("corpus %q needs an id and a side", c.ID)}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO corpora (id, side, name, full_name, file_name, language_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			side = excluded.side,
			name = excluded.name,
			full_name = excluded.full_name,
			file_name = excluded.file_name,
			language_id = excluded.language_id
	`, c.ID, string(c.Side), c.Name, c.FullName, c.FileName, c.LanguageID)
	if err != nil {
		return fail(op, err, "corpus", c.ID)
	}
	return nil
}

// GetAllCorpora returns every corpus with its language joined in, ordered
// by side then id.
func (s *Store) GetAllCorpora(ctx context.Context) (corpora []domain.Corpus, err error) {
	const op = "get all corpora"
	defer func() { observe(op, err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.side, c.name, c.full_name, c.file_name, c.language_id,
		       l.code, l.text_direction, l.font_family
		FROM corpora c
		LEFT JOIN language l ON l.code = c.language_id
		ORDER BY c.side, c.id COLLATE BINARY
	`)
	if err != nil {
		return nil, fail(op, err)
	}
	defer rows.Close()

	corpora = []domain.Corpus{}
	for rows.Next() {
		var (
			c                     domain.Corpus
			side                  string
			code, dir, fontFamily sql.NullString
		)
		if err = rows.Scan(&c.ID, &side, &c.Name, &c.FullName, &c.FileName, &c.LanguageID,
			&code, &dir, &fontFamily); err != nil {
			return nil, fail(op, fmt.Errorf("scan corpus: %w", err))
		}
		c.Side = domain.Side(side)
		if code.Valid {
			c.Language = &domain.Language{Code: code.String, TextDirection: dir.String, FontFamily: fontFamily.String}
		}
		corpora = append(corpora, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fail(op, err)
	}
	return corpora, nil
}

// SaveLanguage upserts language display metadata.
func (s *Store) SaveLanguage(ctx context.Context, l domain.Language) (err error) {
	const op = "save language"
	defer func() { observe(op, err) }()

	if l.Code == "" {
		return &Error{Kind: KindInvalidArgument, Op: op, Err: errors.New("language code is required")}
	}
	dir := l.TextDirection
	if dir == "" {
		dir = "ltr"
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO language (code, text_direction, font_family) VALUES (?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			text_direction = excluded.text_direction,
			font_family = excluded.font_family
	`, l.Code, dir, l.FontFamily)
	if err != nil {
		return fail(op, err, "code", l.Code)
	}
	return nil
}

// LanguageFindByIDs returns the languages with the given codes, by code.
func (s *Store) LanguageFindByIDs(ctx context.Context, codes []string) (langs []domain.Language, err error) {
	const op = "find languages by ids"
	defer func() { observe(op, err) }()

	codes = uniqueSorted(nonEmpty(codes))
	langs = []domain.Language{}
	for _, part := range chunk(codes, maxParams) {
		found, qerr := s.queryLanguages(ctx,
			`SELECT code, text_direction, font_family FROM language
			 WHERE code IN (`+querysql.Placeholders(len(part))+`) ORDER BY code COLLATE BINARY`,
			querysql.Args(part)...)
		if qerr != nil {
			return nil, fail(op, qerr, "codes", codes)
		}
		langs = append(langs, found...)
	}
	return langs, nil
}

// LanguageGetAll returns every known language, by code.
func (s *Store) LanguageGetAll(ctx context.Context) (langs []domain.Language, err error) {
	const op = "get all languages"
	defer func() { observe(op, err) }()

	langs, err = s.queryLanguages(ctx,
		`SELECT code, text_direction, font_family FROM language ORDER BY code COLLATE BINARY`)
	if err != nil {
		return nil, fail(op, err)
	}
	return langs, nil
}

func (s *Store) queryLanguages(ctx context.Context, query string, args ...any) ([]domain.Language, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query languages: %w", err)
	}
	defer rows.Close()

	langs := []domain.Language{}
	for rows.Next() {
		var l domain.Language
		if err := rows.Scan(&l.Code, &l.TextDirection, &l.FontFamily); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		langs = append(langs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate languages: %w", err)
	}
	return langs, nil
}
