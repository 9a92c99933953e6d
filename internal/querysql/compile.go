package querysql

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownSortField is returned when a caller asks to sort by a field the
// query does not expose.
var ErrUnknownSortField = errors.New("unknown sort field")

// ErrInvalidSortDirection is returned for a direction other than ASC or DESC.
var ErrInvalidSortDirection = errors.New("invalid sort direction")

// Field names a sortable result column as callers see it.
type Field string

const (
	FieldID             Field = "id"
	FieldFrequency      Field = "frequency"
	FieldNormalizedText Field = "normalized_text"
	FieldSourcesText    Field = "sources_text"
	FieldTargetsText    Field = "targets_text"
)

// Direction is ASC or DESC.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Sort is a caller's requested ordering. The zero value means "default".
type Sort struct {
	Field     Field
	Direction Direction
}

// ParseSort reads "field" or "field:asc|desc". Field names are not checked
// here; an OrderSet decides what is allowed.
func ParseSort(s string) (Sort, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Sort{}, nil
	}
	field, dir, _ := strings.Cut(s, ":")
	out := Sort{Field: Field(strings.ToLower(strings.TrimSpace(field))), Direction: Asc}
	switch strings.ToUpper(strings.TrimSpace(dir)) {
	case "", "ASC":
	case "DESC":
		out.Direction = Desc
	default:
		return Sort{}, fmt.Errorf("%w %q", ErrInvalidSortDirection, dir)
	}
	return out, nil
}

// OrderSet is the allow-list of sortable columns for one query.
//
// CRITICAL: column expressions come only from the map given at construction;
// caller text never reaches the generated SQL.
type OrderSet struct {
	columns  map[Field]string
	def      Sort
	tiebreak string
}

// NewOrderSet creates an allow-list. def is applied when the caller passes a
// zero Sort; tiebreak is appended to every ORDER BY for deterministic results.
func NewOrderSet(columns map[Field]string, def Sort, tiebreak string) OrderSet {
	cols := make(map[Field]string, len(columns))
	for k, v := range columns {
		cols[k] = v
	}
	return OrderSet{columns: cols, def: def, tiebreak: tiebreak}
}

// Fields lists the allowed sort fields in name order.
func (o OrderSet) Fields() []Field {
	out := make([]Field, 0, len(o.columns))
	for f := range o.columns {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Compile returns the ORDER BY clause for s.
//
// MANDATORY: Every clause ends with the tiebreak key.
func (o OrderSet) Compile(s Sort) (string, error) {
	if s.Field == "" {
		s = o.def
	}
	col, ok := o.columns[s.Field]
	if !ok {
		return "", fmt.Errorf("%w: %q (allowed: %v)", ErrUnknownSortField, s.Field, o.Fields())
	}
	dir := Direction(strings.ToUpper(strings.TrimSpace(string(s.Direction))))
	switch dir {
	case "":
		dir = Asc
	case Asc, Desc:
	default:
		return "", fmt.Errorf("%w %q", ErrInvalidSortDirection, s.Direction)
	}

	clause := "ORDER BY " + col + " " + string(dir)
	if o.tiebreak != "" && tiebreakColumn(o.tiebreak) != col {
		clause += ", " + o.tiebreak
	}
	return clause, nil
}

// tiebreakColumn strips the direction from a single-key tiebreak.
func tiebreakColumn(tiebreak string) string {
	if strings.Contains(tiebreak, ",") {
		return tiebreak
	}
	for _, suffix := range []string{" " + string(Asc), " " + string(Desc)} {
		if trimmed, ok := strings.CutSuffix(tiebreak, suffix); ok {
			return trimmed
		}
	}
	return tiebreak
}

// Placeholders returns "?, ?, ?" with n markers.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Args converts a string slice to query parameters.
func Args(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
