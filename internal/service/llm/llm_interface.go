package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrEmptyResponse = errors.New("model returned no choices")

// Message is one role-tagged chat entry
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a single blocking chat completion. System and History
// are optional; Prompt is sent last as the user turn.
type CompletionRequest struct {
	System      string
	History     []Message
	Prompt      string
	Model       string // empty selects the provider default
	Temperature *float64
}

// Messages flattens the request into the wire order: system, history, prompt
func (r CompletionRequest) Messages() []Message {
	msgs := make([]Message, 0, len(r.History)+2)
	if r.System != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: r.System})
	}
	msgs = append(msgs, r.History...)
	return append(msgs, Message{Role: RoleUser, Content: r.Prompt})
}

// CompletionService produces text from a prompt
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Embedder turns texts into vectors, one per input, in input order
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ModerationService reports whether text violates the content policy
type ModerationService interface {
	IsFlagged(ctx context.Context, text string) (bool, error)
}

// Provider is a backend that can both complete and embed
type Provider interface {
	CompletionService
	Embedder
	Name() string
}
