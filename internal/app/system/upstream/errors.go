package upstream

import (
	"errors"
	"fmt"
)

// Fixed messages shown for transport failures. The underlying error is
// logged, never shown.
const (
	MsgLoadFailed   = "Failed to load data."
	MsgUpdateFailed = "Failed to update."
)

// ErrNotSent marks failures that happen before the request leaves the
// process: missing crypto config, payload encoding, request building.
var ErrNotSent = errors.New("upstream: request not sent")

// Sent reports whether a Post that returned err reached the network.
func Sent(err error) bool {
	return !errors.Is(err, ErrNotSent)
}

// TransportError is a network, HTTP or decoding failure.
type TransportError struct {
	Script     string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Script, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AppError is a response whose status was not ok/success. Message is the
// server's message field, shown to the operator verbatim.
type AppError struct {
	Script  string
	Status  string
	Message string
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream %s: status %q", e.Script, e.Status)
	}
	return fmt.Sprintf("upstream %s: %s", e.Script, e.Message)
}

// UserMessage returns the text an operator should see for err. Transport
// failures map to fallback; application failures carry the server message.
func UserMessage(err error, fallback string) string {
	var app *AppError
	if errors.As(err, &app) {
		if app.Message != "" {
			return app.Message
		}
		return "Request was not accepted (status " + quoteStatus(app.Status) + ")."
	}
	return fallback
}

func quoteStatus(s string) string {
	if s == "" {
		return "empty"
	}
	return `"` + s + `"`
}
