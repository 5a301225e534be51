package client

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures and cancelled requests.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents response bodies that are not the expected JSON.
	ErrorClassDecode ErrorClass = "decode"
)

// ErrUnexpectedStatus is wrapped by APIError for any non-2xx response.
var ErrUnexpectedStatus = errors.New("unexpected status")

// APIError describes a failed upstream request.
type APIError struct {
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Body       string // leading bytes of a non-2xx response body
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s error (status %d) for %s: %s: %v: %q",
			e.ErrorClass, e.StatusCode, e.URL, e.Message, e.Err, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error (status %d) for %s: %s: %v",
			e.ErrorClass, e.StatusCode, e.URL, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (status %d) for %s: %s",
		e.ErrorClass, e.StatusCode, e.URL, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusCode returns the upstream status carried by err, or 0 when err does not
// wrap an APIError or no response was received.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ResponseBody returns the response body snippet carried by err, or "" when
// err does not wrap an APIError for a non-2xx response.
func ResponseBody(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return ""
}

// classifyStatus maps a response status to an ErrorClass.
// Successful statuses return the empty class.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	case statusCode < 200 || statusCode >= 300:
		// 1xx and 3xx that were not followed
		return ErrorClassClient
	default:
		return ""
	}
}
