// Package remote describes failures reported by the external services
// storyloom talks to: speech synthesis, story generation and illustration.
package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Error is a non-OK response from a collaborator service.
type Error struct {
	Service    string // e.g. "murf", "story", "pollinations"
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s returned %d", e.Service, e.StatusCode)
}

// RateLimited reports whether the service rejected the call with HTTP 429.
func (e *Error) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// New creates an Error with an explicit message.
func New(service string, statusCode int, message string) *Error {
	return &Error{Service: service, StatusCode: statusCode, Message: message}
}

// IsRateLimited checks whether err wraps a 429 from any collaborator.
func IsRateLimited(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.RateLimited()
}

// StatusCode extracts the HTTP status from err, or 0 when err is not a
// remote error.
func StatusCode(err error) int {
	var re *Error
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}

// errorBody is the `{"error": "..."}` envelope used by the edge functions.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// FromResponse builds an Error from a non-OK response. The message comes
// from a JSON error envelope when one is present, otherwise from the raw
// body, otherwise it is synthesized from the status code. The caller still
// owns resp.Body.
func FromResponse(service string, resp *http.Response) *Error {
	e := &Error{Service: service, StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return e
	}

	var env errorBody
	if json.Unmarshal(body, &env) == nil {
		switch {
		case env.Error != "":
			e.Message = env.Error
			return e
		case env.Message != "":
			e.Message = env.Message
			return e
		}
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), "json") {
		if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
			e.Message = fmt.Sprintf("%s returned %d: %s", service, resp.StatusCode, text)
		}
	}
	return e
}
