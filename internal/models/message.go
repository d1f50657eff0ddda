package models

import "strings"

// Role identifies the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message represents one entry of a conversation
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user message from raw input, trimming surrounding whitespace
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: strings.TrimSpace(text)}
}

// AssistantMessage builds an assistant message
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ErrorMessage is the assistant reply appended when an exchange fails
func ErrorMessage() Message {
	return AssistantMessage(ErrorReply)
}

// PromptRequest is the body sent in prompt mode
type PromptRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

// HistoryRequest is the body sent in history and stream modes
type HistoryRequest struct {
	Messages []Message `json:"messages"`
	Model    string    `json:"model"`
}

// PayloadResponse is the whole-payload reply body
type PayloadResponse struct {
	Response string `json:"response"`
}
