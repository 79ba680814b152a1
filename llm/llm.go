// Package llm is the boundary to completion providers.
//
// The engine only sees Provider. OpenAIProvider talks to any OpenAI-compatible
// chat completions endpoint; MockProvider replays scripted replies in tests.
package llm

import (
	"context"
	"strings"
)

// Message roles used in transcripts.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single completion request.
type Options struct {
	ReasoningEffort string // "", "low", "medium" or "high"
	JSONMode        bool
}

// Completion is a provider reply with its accounting.
type Completion struct {
	Content        string
	InputTokens    int
	OutputTokens   int
	TimeUsed       float64 // seconds
	ModelReasoning string
}

// ContextLength is the number of tokens this exchange occupied.
func (c *Completion) ContextLength() int {
	return c.InputTokens + c.OutputTokens
}

// Provider produces a completion for an ordered message list.
// Errors are surfaced unchanged to the caller; providers do not retry.
type Provider interface {
	Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error)
}

// FormatTranscript formats messages as a human-readable plain text transcript.
// Each message is prefixed with its role and separated by blank lines.
func FormatTranscript(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			sb.WriteString("System:\n")
		case RoleUser:
			sb.WriteString("User:\n")
		case RoleAssistant:
			sb.WriteString("Assistant:\n")
		default:
			sb.WriteString(msg.Role + ":\n")
		}
		sb.WriteString(msg.Content)
		if i < len(messages)-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}
