package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure classes reported by the service. Every Client error wraps exactly
// one of these.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("not found")
	ErrUnavailable      = errors.New("remote unavailable")
)

// IsPermissionDenied returns true if err is a 403 from the service.
func IsPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }

// IsConflict returns true if err is a 409 from the service.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound returns true if err is a 404 from the service.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// statusError maps a non-2xx response to its failure class.
func statusError(method, path string, code int) error {
	var class error
	switch code {
	case http.StatusForbidden:
		class = ErrPermissionDenied
	case http.StatusConflict:
		class = ErrConflict
	case http.StatusNotFound:
		class = ErrNotFound
	default:
		class = ErrUnavailable
	}
	return fmt.Errorf("%s %s: %w (status %d)", method, path, class, code)
}
