package api

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a structured error returned by the HTTP API.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Status > 0 {
		return fmt.Sprintf("api error: %d", e.Status)
	}
	return "api error"
}

// IsClientError reports whether the server refused the request itself
// rather than failing to process it.
func (e *APIError) IsClientError() bool {
	return e != nil && e.Status >= 400 && e.Status < 500
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}
