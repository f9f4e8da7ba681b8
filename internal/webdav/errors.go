package webdav

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a WebDAV-specific error with its HTTP status code.
type Error struct {
	StatusCode int
	Message    string
	Path       string
	Method     string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Path != "" && e.Method != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("WebDAV error: %d %s", e.StatusCode, e.Message)
}

// Temporary returns true if the error might be resolved by retrying
func (e *Error) Temporary() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// NotFound returns true if the error indicates a missing resource
func (e *Error) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// NewError creates an Error for the given status code and request context
func NewError(statusCode int, path, method string) *Error {
	message := http.StatusText(statusCode)
	if message == "" {
		message = "unknown error"
	}
	return &Error{
		StatusCode: statusCode,
		Message:    message,
		Path:       path,
		Method:     method,
	}
}

// AsError unwraps err into an *Error if it carries one
func AsError(err error) (*Error, bool) {
	var davErr *Error
	if errors.As(err, &davErr) {
		return davErr, true
	}
	return nil, false
}

// IsTemporary reports whether err is a retryable WebDAV or transport
// failure. Plain transport errors (no status code) count as temporary.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	if davErr, ok := AsError(err); ok {
		return davErr.Temporary()
	}
	return true
}
