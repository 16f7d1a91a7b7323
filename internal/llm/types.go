// Package llm defines the provider-neutral chat types used by the dispatch
// loop and the resolution strategies, plus the OpenAI-compatible adapter.
package llm

import (
	"context"
	"errors"
)

// ErrToolsUnsupported reports that the configured model rejected a request
// because it cannot do tool calling. This is fatal for a tool-dispatch
// session: retrying cannot help, the model has to change.
var ErrToolsUnsupported = errors.New("model does not support tools")

// Message roles, matching the OpenAI chat wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Tool is one callable tool surfaced to the model. Schema is a JSON Schema
// object describing the arguments.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolCall is one tool invocation requested by the model. Arguments is the
// raw JSON string as returned by the provider; parsing is the caller's job.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one entry in a conversation history.
type Message struct {
	Role    string
	Content string
	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall
	// ToolCallID links a tool-result message back to the call it answers.
	ToolCallID string
}

// ChatRequest is one completion request against a provider.
type ChatRequest struct {
	Messages []Message
	// Tools, when non-empty, enables tool calling with automatic choice.
	Tools []Tool
}

// Provider is a chat-completion backend. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Chat sends the conversation and returns the model's next message.
	Chat(ctx context.Context, req ChatRequest) (Message, error)
	// Model returns the configured model identifier, for logging.
	Model() string
}
