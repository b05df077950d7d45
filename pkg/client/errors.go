package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrAuthFailed is returned when the registry rejects the API key.
	// The scheduler treats it as fatal for the whole run.
	ErrAuthFailed = errors.New("registry authentication rejected")
)

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassRateLimited represents HTTP 429 responses.
	ErrorClassRateLimited ErrorClass = "rate_limited"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassClient represents 4xx client errors other than rate limits.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassMalformed represents responses that cannot be parsed.
	ErrorClassMalformed ErrorClass = "malformed"

	// ErrorClassNetwork represents connection-level errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError is a classified registry fetch failure.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("registry %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Classify returns the error class of a fetch failure. Errors that did not
// come from the client are treated as network-level.
func Classify(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ErrorClassNetwork
}

// IsTransient reports whether an error class is worth retrying.
func IsTransient(class ErrorClass) bool {
	switch class {
	case ErrorClassRateLimited:
		// The window reopens; retry after backoff.
		return true
	case ErrorClassServer:
		return true
	case ErrorClassNetwork:
		return true
	case ErrorClassClient:
		// 4xx responses won't change on retry.
		return false
	case ErrorClassMalformed:
		// A body that didn't parse once won't parse next time.
		return false
	default:
		return false
	}
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(code int) ErrorClass {
	switch {
	case code == 429:
		return ErrorClassRateLimited
	case code >= 400 && code < 500:
		return ErrorClassClient
	case code >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
