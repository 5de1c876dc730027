// Package llm is the decision-service client: given a message history
// and the declared tool schemas it returns either a final message or
// structured tool-call requests.
package llm

import (
	"context"
	"encoding/json"
	"time"
)

// Message is one turn of conversation history.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is one structured tool request returned by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolSchema declares one callable tool to the model. Parameters is a
// JSON Schema object.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Request is one decision call.
type Request struct {
	System      string
	Messages    []Message
	Tools       []ToolSchema
	MaxTokens   int
	Temperature float64
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Decision is the model's answer: final content when ToolCalls is
// empty, otherwise one or more tool requests.
type Decision struct {
	Content      string
	ToolCalls    []ToolCall
	Model        string
	FinishReason string
	Usage        Usage
}

// Decider is the decision-service boundary. The conversation engine
// treats it as a plain function call; substituting a scripted fake
// makes the engine deterministic under test.
type Decider interface {
	Decide(ctx context.Context, req *Request) (*Decision, error)
}

// RetryPolicy bounds decision-call retries.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}
