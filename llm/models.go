// Package llm provides shared data models for LLM providers.
package llm

import (
	"encoding/json"

	"github.com/richinex/scout/model"
)

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message with role and content.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ToolCall represents a function call requested by the model.
type ToolCall struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// StringArg returns a string argument of the call, or "" when absent or
// not a string.
func (tc ToolCall) StringArg(name string) string {
	var args map[string]any
	if err := json.Unmarshal(tc.Arguments, &args); err != nil {
		return ""
	}
	s, _ := args[name].(string)
	return s
}

// ToolDefinition defines a tool that the LLM can call.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request is one generation request.
type Request struct {
	Messages []Message
	// Tools is empty for plain text generation.
	Tools []ToolDefinition
	// JSONOutput asks providers that support it for a JSON object reply.
	JSONOutput bool
}

// Response represents a response from an LLM provider.
type Response struct {
	Content   string            `json:"content,omitempty"`
	ToolCalls []ToolCall        `json:"tool_calls,omitempty"`
	Usage     *model.TokenUsage `json:"usage,omitempty"`
}

// HasToolCalls reports whether the model requested any tool.
func (r Response) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}
