// Package models contains data types and constants for the local chat endpoint.
package models

import (
	"fmt"
	"strings"
)

// Defaults for the chat endpoint
const (
	DefaultEndpoint = "http://127.0.0.1:8000/api/chat"
	DefaultModel    = "llama3.1"

	// ErrorReply is the single user-visible outcome of any failed exchange
	ErrorReply = "Error connecting to server."
)

// Header names used on chat requests
const (
	HeaderRequestID   = "X-Request-Id"
	HeaderContentType = "Content-Type"
	HeaderAccept      = "Accept"

	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Mode selects the request body and how the response is consumed
type Mode string

const (
	// ModePrompt sends {prompt, model} and expects {response}
	ModePrompt Mode = "prompt"
	// ModeHistory sends {messages, model} and expects {response}
	ModeHistory Mode = "history"
	// ModeStream sends {messages, model} and reads a plain byte stream
	ModeStream Mode = "stream"
)

// DefaultMode is the mode used when none is configured
const DefaultMode = ModeStream

// AllModes returns the supported modes
func AllModes() []Mode {
	return []Mode{ModePrompt, ModeHistory, ModeStream}
}

// Streaming reports whether the mode consumes an incremental byte stream
func (m Mode) Streaming() bool {
	return m == ModeStream
}

// SendsHistory reports whether the mode sends the full conversation
func (m Mode) SendsHistory() bool {
	return m == ModeHistory || m == ModeStream
}

// ParseMode returns the Mode for name (case-insensitive)
func ParseMode(name string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(name))) {
	case ModePrompt:
		return ModePrompt, nil
	case ModeHistory:
		return ModeHistory, nil
	case ModeStream, "":
		return ModeStream, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected prompt, history or stream)", name)
	}
}

// DefaultHeaders returns the headers set on every chat request
func DefaultHeaders() map[string]string {
	return map[string]string{
		HeaderContentType: ContentTypeJSON,
		"User-Agent":      "localchat/1",
	}
}
