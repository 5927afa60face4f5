package bookingapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory classifies a gateway failure so callers can pick an
// appropriate user-facing message without inspecting status codes.
type ErrorCategory string

const (
	ErrorBadRequest        ErrorCategory = "bad_request"
	ErrorAuth              ErrorCategory = "auth"
	ErrorForbidden         ErrorCategory = "forbidden"
	ErrorNotFound          ErrorCategory = "not_found"
	ErrorConflict          ErrorCategory = "conflict"
	ErrorServerUnavailable ErrorCategory = "server_unavailable"
	ErrorTimeout           ErrorCategory = "timeout"
	ErrorNetwork           ErrorCategory = "network"
	ErrorUnknown           ErrorCategory = "unknown"
)

// GatewayError is returned for any failed call to the scheduling provider.
type GatewayError struct {
	Category   ErrorCategory
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("bookingapi: %s (status %d): %s", e.Category, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("bookingapi: %s: %s", e.Category, e.Message)
}

// CategoryOf extracts the error category, or ErrorUnknown for foreign errors.
func CategoryOf(err error) ErrorCategory {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Category
	}
	return ErrorUnknown
}

func categorizeStatus(code int) ErrorCategory {
	switch {
	case code == http.StatusBadRequest:
		return ErrorBadRequest
	case code == http.StatusUnauthorized:
		return ErrorAuth
	case code == http.StatusForbidden:
		return ErrorForbidden
	case code == http.StatusNotFound:
		return ErrorNotFound
	case code == http.StatusConflict:
		return ErrorConflict
	case code >= 500:
		return ErrorServerUnavailable
	default:
		return ErrorUnknown
	}
}

func categorizeTransport(err error) ErrorCategory {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrorTimeout
	}
	return ErrorNetwork
}
