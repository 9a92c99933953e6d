package engine

import (
	"errors"
	"fmt"
)

// SyncError is returned by Sync when a run does not succeed.
//
// Fatal stage failures, cancellation and the in-flight guard all surface as
// a SyncError so callers can branch on Code.
type SyncError struct {
	// Code identifies the error category.
	Code SyncErrorCode

	// Message is the user-facing description.
	Message string

	// ProjectID identifies the project being synced.
	ProjectID string

	// Stage is where the run stopped.
	Stage State

	// Err is the underlying cause, if any.
	Err error
}

// SyncErrorCode categorizes sync failures.
type SyncErrorCode string

const (
	// CodePermissionDenied: the remote service rejected the project upsert.
	CodePermissionDenied SyncErrorCode = "PERMISSION_DENIED"

	// CodeNameUnavailable: another remote project already has this name.
	CodeNameUnavailable SyncErrorCode = "NAME_UNAVAILABLE"

	// CodeCorporaIncomplete: neither the store nor the corpus container
	// holds a full set of corpora.
	CodeCorporaIncomplete SyncErrorCode = "CORPORA_INCOMPLETE"

	// CodeSyncInProgress: a run for the same project has not finished.
	CodeSyncInProgress SyncErrorCode = "SYNC_IN_PROGRESS"

	// CodeAborted: the run was canceled.
	CodeAborted SyncErrorCode = "ABORTED"

	// CodeStageFailed: any other fatal stage failure.
	CodeStageFailed SyncErrorCode = "STAGE_FAILED"

	// CodePanic: a stage panicked.
	CodePanic SyncErrorCode = "PANIC"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s: %s (project=%s, stage=%s)", e.Code, e.Message, e.ProjectID, e.Stage)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// CodeOf returns the SyncErrorCode of err, or "" if err is not a SyncError.
func CodeOf(err error) SyncErrorCode {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsPermissionDenied returns true if the run failed on authorization.
func IsPermissionDenied(err error) bool { return CodeOf(err) == CodePermissionDenied }

// IsNameUnavailable returns true if the run failed on a duplicate name.
func IsNameUnavailable(err error) bool { return CodeOf(err) == CodeNameUnavailable }

// IsInProgress returns true if err came from the in-flight guard.
func IsInProgress(err error) bool { return CodeOf(err) == CodeSyncInProgress }

// IsAborted returns true if the run was canceled.
func IsAborted(err error) bool { return CodeOf(err) == CodeAborted }

func newSyncError(code SyncErrorCode, projectID string, stage State, msg string, cause error) *SyncError {
	return &SyncError{Code: code, Message: msg, ProjectID: projectID, Stage: stage, Err: cause}
}
