package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/alignsync/internal/metrics"
	"github.com/roach88/alignsync/internal/querysql"
	"github.com/roach88/alignsync/internal/tokenid"
)

// ErrProjectMismatch is returned when a store bound to one project is asked
// to save another.
var ErrProjectMismatch = errors.New("project id mismatch")

// Kind categorizes store failures.
type Kind int

const (
	// KindIoFailure is an underlying storage failure.
	KindIoFailure Kind = iota
	// KindNotFound means a required row does not exist.
	KindNotFound
	// KindConflict is a constraint violation, e.g. a duplicate link id.
	KindConflict
	// KindInvalidArgument is a malformed request (bad sort field, bad token id).
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindInvalidArgument:
		return "INVALID_ARGUMENT"
	default:
		return "IO_FAILURE"
	}
}

// Error is returned by every Store operation that fails.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if err is a store NotFound error.
func IsNotFound(err error) bool { return kindOf(err) == KindNotFound && isStoreError(err) }

// IsConflict returns true if err is a store Conflict error.
func IsConflict(err error) bool { return kindOf(err) == KindConflict && isStoreError(err) }

// IsInvalidArgument returns true if err is a store InvalidArgument error.
func IsInvalidArgument(err error) bool {
	return kindOf(err) == KindInvalidArgument && isStoreError(err)
}

// IsIoFailure returns true if err is a store IoFailure error.
func IsIoFailure(err error) bool { return kindOf(err) == KindIoFailure && isStoreError(err) }

func isStoreError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

func kindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindIoFailure
}

// classify maps a raw error to a Kind.
func classify(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, sql.ErrNoRows) {
		return KindNotFound
	}
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
		return KindConflict
	}
	if errors.Is(err, ErrProjectMismatch) {
		return KindConflict
	}
	if errors.Is(err, querysql.ErrUnknownSortField) ||
		errors.Is(err, querysql.ErrInvalidSortDirection) ||
		errors.Is(err, tokenid.ErrInvalidIdentifier) {
		return KindInvalidArgument
	}
	return KindIoFailure
}

// fail logs a failed operation with its arguments and returns it as an *Error.
func fail(op string, err error, args ...any) error {
	kind := classify(err)
	attrs := append([]any{"op", op, "kind", kind.String()}, args...)
	attrs = append(attrs, "error", err)
	if kind == KindNotFound {
		slog.Debug("store operation found nothing", attrs...)
	} else {
		slog.Error("store operation failed", attrs...)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// observe records an operation outcome.
func observe(op string, err error) {
	metrics.StoreOpsTotal.WithLabelValues(op, metrics.Status(err)).Inc()
}

// notFound builds a NotFound error without a database round trip.
func notFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf(format, args...)}
}
