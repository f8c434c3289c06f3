package core

import (
	"errors"
	"fmt"
)

// ValidationError is a malformed request: missing locator, unsupported
// extension, source_type/locator mismatch. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError means the referenced resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// AccessDeniedError means the resource exists but belongs to another user.
// Kept distinct from NotFoundError even though transports may collapse them.
type AccessDeniedError struct {
	Resource string
	ID       string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied to %s %s", e.Resource, e.ID)
}

// ConflictError signals an operation that is illegal in the document's
// current state, e.g. reprocessing while a run is in flight.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// ExtractionError is a format-specific extraction failure. Its message is
// recorded verbatim into Document.error_message.
type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed (%s): %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NewExtractionError wraps err with the format it occurred in.
func NewExtractionError(format string, err error) *ExtractionError {
	return &ExtractionError{Format: format, Err: err}
}

// Extractionf builds an ExtractionError from a formatted message.
func Extractionf(format, msg string, args ...any) *ExtractionError {
	return &ExtractionError{Format: format, Err: fmt.Errorf(msg, args...)}
}

// EmbeddingError is a failure talking to the embedding provider.
// Transient failures (rate limits, timeouts) may be retried by the caller;
// permanent ones (dimension mismatch, bad request) must not be.
type EmbeddingError struct {
	Transient bool
	Err       error
}

func (e *EmbeddingError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("embedding provider error (%s): %v", kind, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable embedding failure.
func IsTransient(err error) bool {
	var ee *EmbeddingError
	return errors.As(err, &ee) && ee.Transient
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
