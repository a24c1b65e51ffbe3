package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// NetworkError is a transport or connectivity failure: no HTTP response was
// received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a response outside the 2xx range, or one that could not be
// decoded.
type ServerError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: server returned %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Message)
}

// ValidationError rejects input before any request is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotFoundError reports that a mutation target no longer exists server-side.
type NotFoundError struct {
	Op string
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: task %d not found", e.Op, e.ID)
}

// IsTransient reports whether err is worth one more attempt: transport
// failures that were not caused by the caller giving up, and 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return srvErr.StatusCode >= http.StatusInternalServerError
	}
	return false
}
