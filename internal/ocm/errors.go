package ocm

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError represents an error response from the cluster management API.
// Callers should prefer the predicate functions (IsNotFound, IsUnauthorized,
// etc.) over asserting on this type directly.
type APIError struct {
	operation  string
	statusCode int
	code       string
	reason     string
}

func (e *APIError) Error() string {
	if e.code != "" {
		return fmt.Sprintf("%s: HTTP %d: [%s] %s", e.operation, e.statusCode, e.code, e.reason)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.operation, e.statusCode, e.reason)
}

func newAPIError(operation string, statusCode int, code, reason string) *APIError {
	return &APIError{operation: operation, statusCode: statusCode, code: code, reason: reason}
}

// StatusCode returns the HTTP status code from the response.
func (e *APIError) StatusCode() int { return e.statusCode }

// Code returns the API error code, e.g. "CLUSTERS-MGMT-404".
func (e *APIError) Code() string { return e.code }

// Reason returns the human-readable error message.
func (e *APIError) Reason() string { return e.reason }

// Operation returns a short description of the API call that failed.
func (e *APIError) Operation() string { return e.operation }

// IsNotFound reports whether err is an API error with HTTP 404 status.
func IsNotFound(err error) bool { return HasStatusCode(err, http.StatusNotFound) }

// IsUnauthorized reports whether err is an API error with HTTP 401 status.
func IsUnauthorized(err error) bool { return HasStatusCode(err, http.StatusUnauthorized) }

// IsForbidden reports whether err is an API error with HTTP 403 status.
func IsForbidden(err error) bool { return HasStatusCode(err, http.StatusForbidden) }

// HasStatusCode reports whether err is an API error whose HTTP status code matches.
func HasStatusCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode == code
}
