// internal/infrastructure/commerce/errors.go
package commerce

import (
	"fmt"
)

// ErrAuthRequired reports a request the service rejected for missing or
// invalid credentials. By the time a caller sees it the client has
// already signalled the session layer, which redirects to login, so
// components treat it as a handled redirect, not a failure. The
// AuthRequired marker lets them detect it without importing this
// package.
var ErrAuthRequired = authRequiredError{}

type authRequiredError struct{}

func (authRequiredError) Error() string { return "authentication required" }

// AuthRequired marks the error for callers that only know the behavior
func (authRequiredError) AuthRequired() bool { return true }

// ValidationError is a structured rejection of the request input:
// invalid product or size, insufficient stock, malformed shipping field.
// Fields carries the service's field-keyed messages verbatim; always
// recoverable by the user editing input and resubmitting.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if msg, ok := e.Fields["detail"]; ok {
		return fmt.Sprintf("validation failed: %s", msg)
	}
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// FieldErrors exposes the field-keyed detail for per-field display
func (e *ValidationError) FieldErrors() map[string]string {
	return e.Fields
}

// NotFoundError reports a referenced entity that no longer exists.
// Presentation renders an empty/placeholder state, not a failure.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// NotFound marks the error for callers that only know the behavior
func (e *NotFoundError) NotFound() bool {
	return true
}

// NetworkError is a transport failure or a non-2xx response without
// structured detail. Surfaced as a generic message; recoverable by
// manual retry.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
