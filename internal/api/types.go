package api

import (
	"github.com/samcharles93/mchat/internal/chat"
	"github.com/samcharles93/mchat/internal/registry"
	"github.com/samcharles93/mchat/internal/turn"
)

// SessionResponse is the transcript view of a session.
type SessionResponse struct {
	ID       string         `json:"id"`
	Messages []chat.Message `json:"messages"`
	Settings turn.Settings  `json:"settings"`
	Phase    string         `json:"phase"`
}

type MessageRequest struct {
	Content string `json:"content"`
}

// SettingsRequest changes only the fields that are present.
type SettingsRequest struct {
	Model         *string  `json:"model,omitempty"`
	SystemPrompt  *string  `json:"system_prompt,omitempty"`
	ContextLength *int     `json:"context_length,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
}

type ModelsResponse struct {
	Models  []registry.Model `json:"models"`
	Default string           `json:"default"`
	// Loaded lists models already resident in the process.
	Loaded []string `json:"loaded,omitempty"`
}

// StreamEvent is one SSE payload of a turn stream.
type StreamEvent struct {
	Type     string         `json:"type"`
	Messages []chat.Message `json:"messages,omitempty"`
	Delta    string         `json:"delta,omitempty"`
	Display  string         `json:"display,omitempty"`
	Message  *chat.Message  `json:"message,omitempty"`
	Error    string         `json:"error,omitempty"`
}

const (
	eventRefresh = "refresh"
	eventDelta   = "delta"
	eventDone    = "done"
	eventError   = "error"
)
