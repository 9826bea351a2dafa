package order

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound means an event referenced a user with no live session.
// The transport should offer to restart the flow.
var ErrSessionNotFound = errors.New("session not found")

// Validation failure reasons for file uploads.
const (
	ReasonFormat = "format"
	ReasonSize   = "size"
)

// ValidationError rejects a single user input. The session stays unchanged.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s", e.Field)
}

// InvalidTransitionError means the event is not applicable at the current step,
// e.g. a confirm sent outside of confirmation.
type InvalidTransitionError struct {
	Step Step
	Kind EventKind
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("event %s not allowed at step %s", e.Kind, e.Step)
}

// UploadError wraps a failed file upload to the backend. Retryable.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("upload file: %v", e.Err) }
func (e *UploadError) Unwrap() error { return e.Err }

// SubmissionError wraps a failed order creation call. The session is kept at
// confirmation so the user can retry without re-entering data.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string { return fmt.Sprintf("create order: %v", e.Err) }
func (e *SubmissionError) Unwrap() error { return e.Err }
