package argilla

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the Argilla API.
// Prefer the predicates (IsNotFound, IsUnauthorized, ...) over asserting
// on this type.
type APIError struct {
	operation  string
	statusCode int
	detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.operation, e.statusCode, e.detail)
}

func newAPIError(operation string, statusCode int, detail string) *APIError {
	return &APIError{operation: operation, statusCode: statusCode, detail: detail}
}

// StatusCode returns the HTTP status code from the response.
func (e *APIError) StatusCode() int { return e.statusCode }

// Detail returns the server's error detail.
func (e *APIError) Detail() string { return e.detail }

// Operation returns a short description of the API call that failed.
func (e *APIError) Operation() string { return e.operation }

// IsNotFound reports whether err is an API error with HTTP 404 status.
func IsNotFound(err error) bool { return HasStatusCode(err, http.StatusNotFound) }

// IsUnauthorized reports whether err is an API error with HTTP 401 status.
func IsUnauthorized(err error) bool { return HasStatusCode(err, http.StatusUnauthorized) }

// IsForbidden reports whether err is an API error with HTTP 403 status.
func IsForbidden(err error) bool { return HasStatusCode(err, http.StatusForbidden) }

// IsConflict reports whether err is an API error with HTTP 409 status.
// Argilla answers 409 when a dataset, field or question name is taken.
func IsConflict(err error) bool { return HasStatusCode(err, http.StatusConflict) }

// HasStatusCode reports whether err is an API error whose HTTP status code matches.
func HasStatusCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode == code
}
