package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoQuestions is returned by LoadExam when the backend serves an exam
// without questions.
var ErrNoQuestions = errors.New("exam has no questions")

// ErrEmptyResponse is returned when a call that must produce a body did not.
var ErrEmptyResponse = errors.New("empty response from backend")

// AuthError is returned when the backend rejects the request with 401. By
// the time it is returned the local session has already been cleared.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return "unauthorized: " + e.Message
}

// StatusError is any other non-2xx response.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// IsAuth reports whether err is (or wraps) an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// StatusCode returns the HTTP status of a StatusError in err's chain, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	if IsAuth(err) {
		return 401
	}
	return 0
}

const maxErrorText = 512

// errorMessage extracts the human-readable message from an error body. The
// backend answers with {"error": ...}, {"message": ...} or plain text.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "<") {
		return ""
	}
	if len(text) > maxErrorText {
		text = text[:maxErrorText]
	}
	return text
}
