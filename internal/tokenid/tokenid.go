// Package tokenid encodes and decodes positional token identifiers.
//
// A token id is BBCCCVVVWWW (book, chapter, verse, word) followed by an
// optional single part digit. Older data carries a one-letter "o"/"n" prefix
// which is stripped on input and never produced on output.
package tokenid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/alignsync/internal/domain"
)

// ErrInvalidIdentifier is returned for ids that do not decode to a position.
var ErrInvalidIdentifier = errors.New("invalid token identifier")

const (
	wordLen = 11
	partLen = 12
)

// Ref is a token id tagged with the side it belongs to.
type Ref struct {
	Side domain.Side
	ID   string
}

// String renders the ref as "side:id".
func (r Ref) String() string {
	return string(r.Side) + ":" + r.ID
}

// ParseRef parses "side:id", normalizing the id.
func ParseRef(s string) (Ref, error) {
	sideText, id, ok := strings.Cut(s, ":")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q has no side tag", ErrInvalidIdentifier, s)
	}
	side, err := domain.ParseSide(sideText)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}
	id = Normalize(id)
	if _, err := Decode(id); err != nil {
		return Ref{}, err
	}
	return Ref{Side: side, ID: id}, nil
}

// Normalize strips a single leading legacy "o"/"n" prefix, in either case.
func Normalize(id string) string {
	if id == "" {
		return id
	}
	switch id[0] {
	case 'o', 'O', 'n', 'N':
		return id[1:]
	}
	return id
}

// Encode builds the tagged id for a position. Part 0 yields the 11-digit
// word form; parts 1-9 append the part digit.
func Encode(side domain.Side, book, chapter, verse, word, part int) (Ref, error) {
	if !side.Valid() {
		return Ref{}, fmt.Errorf("%w: unknown side %q", ErrInvalidIdentifier, side)
	}
	switch {
	case book < 1 || book > 99,
		chapter < 0 || chapter > 999,
		verse < 0 || verse > 999,
		word < 0 || word > 999,
		part < 0 || part > 9:
		return Ref{}, fmt.Errorf("%w: position %d/%d/%d/%d/%d out of range",
			ErrInvalidIdentifier, book, chapter, verse, word, part)
	}
	id := fmt.Sprintf("%02d%03d%03d%03d", book, chapter, verse, word)
	if part > 0 {
		id += strconv.Itoa(part)
	}
	return Ref{Side: side, ID: id}, nil
}

// Decode parses an id, legacy prefix allowed, into its position.
func Decode(id string) (domain.Position, error) {
	raw := Normalize(id)
	if len(raw) != wordLen && len(raw) != partLen {
		return domain.Position{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return domain.Position{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
		}
	}
	pos := domain.Position{
		Book:    atoi(raw[0:2]),
		Chapter: atoi(raw[2:5]),
		Verse:   atoi(raw[5:8]),
		Word:    atoi(raw[8:11]),
	}
	if len(raw) == partLen {
		pos.Part = atoi(raw[11:12])
	}
	if pos.Book == 0 {
		return domain.Position{}, fmt.Errorf("%w: %q has book 0", ErrInvalidIdentifier, id)
	}
	return pos, nil
}

// VerseRange returns the half-open id range [lo, hi) covering every token
// of a verse. Ids of both lengths fall inside it under byte ordering, since
// ':' sorts directly after '9'. ok is false when the verse cannot be encoded.
func VerseRange(book, chapter, verse int) (lo, hi string, ok bool) {
	if book < 1 || book > 99 || chapter < 0 || chapter > 999 || verse < 0 || verse > 999 {
		return "", "", false
	}
	lo = fmt.Sprintf("%02d%03d%03d", book, chapter, verse)
	return lo, lo + ":", true
}

// atoi parses a string already known to be all digits.
func atoi(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}
