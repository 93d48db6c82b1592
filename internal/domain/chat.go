package domain

import "encoding/json"

// ChatMessage is the provider-agnostic chat message shape used by the handler
// and LLM integrations. ToolCalls is set on assistant messages that request
// tool invocations; ToolCallID and Name are set on tool result messages.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a single tool invocation requested by the model. Arguments is
// the raw JSON object produced by the model for the tool's parameters.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition describes a callable tool advertised to the model.
// Parameters holds a JSON Schema object.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatResult is the outcome of one chat completion: either final assistant
// content, or one or more tool calls to execute before continuing the loop.
type ChatResult struct {
	Content   string
	ToolCalls []ToolCall
}
