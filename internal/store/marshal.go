package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/alignsync/internal/domain"
)

// marshalLink converts a journaled link to JSON TEXT for storage.
// HTML escaping is disabled so token text round-trips byte for byte.
func marshalLink(link *domain.Link) (sql.NullString, error) {
	if link == nil {
		return sql.NullString{}, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(link); err != nil {
		return sql.NullString{}, fmt.Errorf("marshal link: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return sql.NullString{String: strings.TrimSpace(buf.String()), Valid: true}, nil
}

// unmarshalLink parses a journal payload. A NULL payload yields nil.
func unmarshalLink(data sql.NullString) (*domain.Link, error) {
	if !data.Valid || data.String == "" {
		return nil, nil
	}
	var link domain.Link
	if err := json.Unmarshal([]byte(data.String), &link); err != nil {
		return nil, fmt.Errorf("unmarshal link: %w", err)
	}
	if link.Sources == nil {
		link.Sources = []string{}
	}
	if link.Targets == nil {
		link.Targets = []string{}
	}
	return &link, nil
}

// marshalTime stores a timestamp as Unix milliseconds; zero is NULL.
func marshalTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

// unmarshalTime is the inverse of marshalTime.
func unmarshalTime(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

// nullIfEmpty maps "" to NULL for nullable text columns.
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
