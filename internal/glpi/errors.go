package glpi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// The client reports exactly three error kinds so callers can map failures
// onto transport responses without inspecting messages:
//
//   - AuthError: upstream rejected credentials (401/403) at any step.
//   - NetworkError: connection-level failure or timeout; Timeout
//     distinguishes "too slow" from "unreachable".
//   - SearchError: upstream reachable and authenticated but returned an
//     error status for the query.

// AuthError indicates the upstream rejected the session or app credentials.
type AuthError struct {
	Op         string
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("glpi %s: authentication rejected (status=%d)", e.Op, e.StatusCode)
}

// NetworkError indicates the upstream could not be reached or timed out.
type NetworkError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("glpi %s: upstream timeout: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("glpi %s: network failure: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SearchError indicates the upstream returned an error status for a query.
type SearchError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("glpi %s: upstream error (status=%d)", e.Op, e.StatusCode)
}

// IsUpstreamError reports whether err is one of the three classified
// upstream failure kinds. Handlers use this to pick the 502 path and the
// cache layer uses it to decide whether a stale entry may be served.
func IsUpstreamError(err error) bool {
	var authErr *AuthError
	var netErr *NetworkError
	var searchErr *SearchError
	return errors.As(err, &authErr) || errors.As(err, &netErr) || errors.As(err, &searchErr)
}

// ErrorKind returns a short label for the error used as a metric dimension.
func ErrorKind(err error) string {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		if netErr.Timeout {
			return "timeout"
		}
		return "network"
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return "auth"
	}
	var searchErr *SearchError
	if errors.As(err, &searchErr) {
		return "search"
	}
	return "internal"
}

// classifyTransportError wraps a transport-level error from http.Client.Do.
func classifyTransportError(op string, err error) error {
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())
	return &NetworkError{Op: op, Timeout: timeout, Err: err}
}

// classifyStatus maps a non-2xx response to an error; 401/403 become
// AuthError, everything else a SearchError carrying the status and body.
func classifyStatus(op string, statusCode int, body string) error {
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return &AuthError{Op: op, StatusCode: statusCode}
	}
	return &SearchError{Op: op, StatusCode: statusCode, Body: body}
}
