package grader

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the grading backend.
type APIError struct {
	StatusCode int
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("grading backend error (%d) on %s", e.StatusCode, e.Path)
	}
	return fmt.Sprintf("grading backend error (%d): %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a backend 401, i.e. the session token
// is missing, expired or invalid.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func hasStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// newAPIError builds an APIError from a response body. The backend answers
// with either {"message": ...} or {"error": ...}; both are honoured.
func newAPIError(status int, path string, body []byte) *APIError {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Message != "" && payload.Error != "":
			msg = payload.Error + ": " + payload.Message
		case payload.Message != "":
			msg = payload.Message
		default:
			msg = payload.Error
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	return &APIError{StatusCode: status, Path: path, Message: msg}
}
