package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Side identifies which text of an alignment a token belongs to.
type Side string

const (
	SideSources Side = "sources"
	SideTargets Side = "targets"
)

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == SideSources || s == SideTargets
}

// Opposite returns the other side of the alignment.
func (s Side) Opposite() Side {
	if s == SideSources {
		return SideTargets
	}
	return SideSources
}

// ParseSide accepts "sources"/"targets" and the short forms "source"/"target".
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sources", "source":
		return SideSources, nil
	case "targets", "target":
		return SideTargets, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// Position is the book/chapter/verse/word/part address of a token.
type Position struct {
	Book    int `json:"book"`
	Chapter int `json:"chapter"`
	Verse   int `json:"verse"`
	Word    int `json:"word"`
	Part    int `json:"part"`
}

// Compare orders positions lexicographically on (book, chapter, verse, word, part).
func (p Position) Compare(o Position) int {
	for _, d := range [...]int{
		p.Book - o.Book,
		p.Chapter - o.Chapter,
		p.Verse - o.Verse,
		p.Word - o.Word,
		p.Part - o.Part,
	} {
		if d < 0 {
			return -1
		}
		if d > 0 {
			return 1
		}
	}
	return 0
}

// SameWord reports whether p and o address parts of the same word.
func (p Position) SameWord(o Position) bool {
	return p.Book == o.Book && p.Chapter == o.Chapter && p.Verse == o.Verse && p.Word == o.Word
}

// Token is a word or word part of a corpus.
//
// NormalizedText is empty when the token has no normalized form; such tokens
// are skipped when link text is derived.
type Token struct {
	ID             string   `json:"id"`
	CorpusID       string   `json:"corpus_id"`
	Side           Side     `json:"side"`
	Text           string   `json:"text"`
	NormalizedText string   `json:"normalized_text,omitempty"`
	Gloss          string   `json:"gloss,omitempty"`
	After          string   `json:"after,omitempty"`
	LanguageID     string   `json:"language_id,omitempty"`
	Position       Position `json:"position"`
}

// Link aligns a set of source tokens with a set of target tokens.
type Link struct {
	ID          string   `json:"id"`
	Sources     []string `json:"sources"`
	Targets     []string `json:"targets"`
	SourcesText string   `json:"sources_text,omitempty"`
	TargetsText string   `json:"targets_text,omitempty"`
}

// TokenIDs returns the link's token ids on the given side.
func (l Link) TokenIDs(side Side) []string {
	if side == SideTargets {
		return l.Targets
	}
	return l.Sources
}

// Language describes how text in a language is displayed.
type Language struct {
	Code          string `json:"code"`
	TextDirection string `json:"text_direction"`
	FontFamily    string `json:"font_family,omitempty"`
}

// Corpus is one text on one side of a project.
type Corpus struct {
	ID         string    `json:"id"`
	Side       Side      `json:"side"`
	Name       string    `json:"name"`
	FullName   string    `json:"full_name,omitempty"`
	FileName   string    `json:"file_name,omitempty"`
	LanguageID string    `json:"language_id"`
	Language   *Language `json:"language,omitempty"`

	// Words is populated only when a corpus is hydrated for upload.
	Words []Token `json:"-"`
}

// NormalizeText returns s in Unicode NFC form with surrounding space trimmed.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
