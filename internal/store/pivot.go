package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/querysql"
)

// PivotFilter restricts which tokens feed the pivot word table.
type PivotFilter string

const (
	// PivotAll counts every token on the side.
	PivotAll PivotFilter = "all"
	// PivotAligned counts only tokens that belong to at least one link.
	PivotAligned PivotFilter = "aligned"
)

// PivotWord is one row of the pivot frequency table.
type PivotWord struct {
	NormalizedText string `json:"normalized_text"`
	LanguageID     string `json:"language_id"`
	Frequency      int    `json:"frequency"`
}

// AlignedWord is a distinct denormalized text pair that a pivot word
// participates in.
type AlignedWord struct {
	SourcesText    string `json:"sources_text"`
	TargetsText    string `json:"targets_text"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
	Frequency      int    `json:"frequency"`
}

// Sortable columns per query. Caller sort text only selects among these.
var (
	pivotWordOrder = querysql.NewOrderSet(map[querysql.Field]string{
		querysql.FieldFrequency:      "frequency",
		querysql.FieldNormalizedText: "normalized_text COLLATE BINARY",
	}, querysql.Sort{Field: querysql.FieldFrequency, Direction: querysql.Desc},
		"normalized_text COLLATE BINARY ASC, language_id COLLATE BINARY ASC")

	alignedWordOrder = querysql.NewOrderSet(map[querysql.Field]string{
		querysql.FieldFrequency:   "frequency",
		querysql.FieldSourcesText: "sources_text COLLATE BINARY",
		querysql.FieldTargetsText: "targets_text COLLATE BINARY",
	}, querysql.Sort{Field: querysql.FieldFrequency, Direction: querysql.Desc},
		"sources_text COLLATE BINARY ASC, targets_text COLLATE BINARY ASC")

	alignedLinkOrder = querysql.NewOrderSet(map[querysql.Field]string{
		querysql.FieldID: "id COLLATE BINARY",
	}, querysql.Sort{Field: querysql.FieldID, Direction: querysql.Asc},
		"id COLLATE BINARY ASC")
)

// textColumn maps a side to its denormalized text column.
func textColumn(side domain.Side) string {
	if side == domain.SideTargets {
		return "targets_text"
	}
	return "sources_text"
}

// CorporaGetPivotWords returns the frequency of each normalized text on a
// side. Tokens without normalized text are not counted.
func (s *Store) CorporaGetPivotWords(ctx context.Context, side domain.Side, filter PivotFilter, sort querysql.Sort) (words []PivotWord, err error) {
	const op = "get pivot words"
	defer func() { observe(op, err) }()

	if !side.Valid() {
		return []PivotWord{}, nil
	}
	orderBy, err := pivotWordOrder.Compile(sort)
	if err != nil {
		return nil, fail(op, err, "sort", sort)
	}

	restrict := ""
	switch filter {
	case "", PivotAll:
	case PivotAligned:
		restrict = ` AND EXISTS (SELECT 1 FROM ` + joinTable(side) + ` j WHERE j.word_id = w.id)`
	default:
		return nil, &Error{Kind: KindInvalidArgument, Op: op, Err: fmt.Errorf("unknown pivot filter %q", filter)}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT w.normalized_text AS normalized_text, w.language_id AS language_id, COUNT(*) AS frequency
		FROM words_or_parts w
		WHERE w.side = ? AND w.normalized_text IS NOT NULL AND w.normalized_text <> ''`+restrict+`
		GROUP BY w.normalized_text, w.language_id
		`+orderBy, string(side))
	if err != nil {
		return nil, fail(op, err, "side", side, "filter", filter)
	}
	defer rows.Close()

	words = []PivotWord{}
	for rows.Next() {
		var w PivotWord
		if err = rows.Scan(&w.NormalizedText, &w.LanguageID, &w.Frequency); err != nil {
			return nil, fail(op, fmt.Errorf("scan pivot word: %w", err))
		}
		words = append(words, w)
	}
	if err = rows.Err(); err != nil {
		return nil, fail(op, err)
	}
	return words, nil
}

// CorporaGetAlignedWordsByPivotWord returns the distinct (sources_text,
// targets_text) pairs of links that contain a token on side with the given
// normalized text. Links with nothing on the opposite side are skipped.
func (s *Store) CorporaGetAlignedWordsByPivotWord(ctx context.Context, side domain.Side, normalizedText string, sort querysql.Sort) (pairs []AlignedWord, err error) {
	const op = "get aligned words by pivot word"
	defer func() { observe(op, err) }()

	normalizedText = domain.NormalizeText(normalizedText)
	if !side.Valid() || normalizedText == "" {
		return []AlignedWord{}, nil
	}
	orderBy, err := alignedWordOrder.Compile(sort)
	if err != nil {
		return nil, fail(op, err, "sort", sort)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.sources_text AS sources_text, l.targets_text AS targets_text,
		       MIN(sw.language_id), MIN(tw.language_id),
		       COUNT(DISTINCT l.id) AS frequency
		FROM links l
		LEFT JOIN links__source_words sj ON sj.link_id = l.id
		LEFT JOIN words_or_parts sw ON sw.side = 'sources' AND sw.id = sj.word_id
		LEFT JOIN links__target_words tj ON tj.link_id = l.id
		LEFT JOIN words_or_parts tw ON tw.side = 'targets' AND tw.id = tj.word_id
		WHERE l.id IN (
			SELECT j.link_id FROM `+joinTable(side)+` j
			JOIN words_or_parts w ON w.side = ? AND w.id = j.word_id
			WHERE w.normalized_text = ?
		)
		  AND l.`+textColumn(side.Opposite())+` <> ''
		GROUP BY l.sources_text, l.targets_text
		`+orderBy, string(side), normalizedText)
	if err != nil {
		return nil, fail(op, err, "side", side, "text", normalizedText)
	}
	defer rows.Close()

	pairs = []AlignedWord{}
	for rows.Next() {
		var (
			a        AlignedWord
			src, tgt sql.NullString
		)
		if err = rows.Scan(&a.SourcesText, &a.TargetsText, &src, &tgt, &a.Frequency); err != nil {
			return nil, fail(op, fmt.Errorf("scan aligned word: %w", err))
		}
		a.SourceLanguage, a.TargetLanguage = src.String, tgt.String
		pairs = append(pairs, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fail(op, err)
	}
	return pairs, nil
}

// CorporaGetLinksByAlignedWord returns the links whose denormalized text
// pair matches exactly, in the requested id order.
func (s *Store) CorporaGetLinksByAlignedWord(ctx context.Context, sourcesText, targetsText string, sort querysql.Sort) (links []domain.Link, err error) {
	const op = "get links by aligned word"
	defer func() { observe(op, err) }()

	if sourcesText == "" && targetsText == "" {
		return []domain.Link{}, nil
	}
	orderBy, err := alignedLinkOrder.Compile(sort)
	if err != nil {
		return nil, fail(op, err, "sort", sort)
	}

	ids, err := selectStrings(ctx, s.db,
		`SELECT id FROM links WHERE sources_text = ? AND targets_text = ? `+orderBy,
		sourcesText, targetsText)
	if err != nil {
		return nil, fail(op, err, "sources_text", sourcesText, "targets_text", targetsText)
	}

	found, err := s.FindLinksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Link, len(found))
	for _, l := range found {
		byID[l.ID] = l
	}
	links = make([]domain.Link, 0, len(ids))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			links = append(links, l)
		}
	}
	return links, nil
}
