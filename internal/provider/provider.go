// Package provider streams chat completions from the model daemon.
package provider

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type StreamChunk struct {
	Delta    string
	Thinking string // reasoning content, when the model exposes it
	Done     bool
	Error    error
}

type Provider interface {
	Chat(ctx context.Context, model string, msgs []Message) (<-chan StreamChunk, error)
	Name() string
}
