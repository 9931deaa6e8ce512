package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// APIError represents a non-2xx response from the progress API
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	ErrorCode  string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.ErrorCode, e.Message)
}

// ErrorClass groups remote failures for the sync log
type ErrorClass string

const (
	// ErrorClassNetwork covers unreachable hosts, timeouts and cancelled calls
	ErrorClassNetwork ErrorClass = "network"
	// ErrorClassAuth covers 401 and 403 responses
	ErrorClassAuth ErrorClass = "auth"
	// ErrorClassServer covers 5xx responses
	ErrorClassServer ErrorClass = "server"
	// ErrorClassClient covers other rejections, which will not succeed on retry
	ErrorClassClient ErrorClass = "client"
	// ErrorClassUnknown is everything else
	ErrorClassUnknown ErrorClass = "unknown"
)

// Classify maps err to an error class. A nil error has no class.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return ErrorClassAuth
		case apiErr.StatusCode >= 500:
			return ErrorClassServer
		default:
			return ErrorClassClient
		}
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return ErrorClassNetwork
	}

	return ErrorClassUnknown
}

// IsRetryable reports whether err is likely transient
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusRequestTimeout || apiErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
	}

	switch Classify(err) {
	case ErrorClassNetwork, ErrorClassServer:
		return true
	}
	return false
}
