package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error is a failed remote call. Status is zero when no response was received.
type Error struct {
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = FallbackMessage(e.Status)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the transport error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the text shown to users for err: the server supplied
// message for *Error values and the generic fallback for anything else.
func UserMessage(err error) string {
	var re *Error
	if errors.As(err, &re) {
		if re.Message != "" {
			return re.Message
		}
		return FallbackMessage(re.Status)
	}
	return FallbackMessage(0)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var re *Error
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

// ExtractMessage picks the user-facing message out of an error body:
// "message", then "error", then FallbackMessage(status).
func ExtractMessage(body []byte, status int) string {
	var env struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if s := stringField(env.Message); s != "" {
			return s
		}
		if s := stringField(env.Error); s != "" {
			return s
		}
	}
	return FallbackMessage(status)
}

// FallbackMessage is the generic failure text.
func FallbackMessage(status int) string {
	if status > 0 {
		return fmt.Sprintf("request failed (HTTP %d)", status)
	}
	return "request failed"
}

// stringField accepts a JSON string, or an object carrying a "message" string
// (some endpoints nest the error as {"error":{"message":"..."}}).
func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return strings.TrimSpace(nested.Message)
	}
	return ""
}
