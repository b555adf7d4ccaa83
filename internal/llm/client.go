// Package llm defines the model gateway: a stateless request/response
// interface over remote chat models, and the HTTP providers behind it.
package llm

import (
	"context"
	"time"

	"github.com/olasquare/olasquare/internal/domain"
)

// Finish reasons normalised across providers.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishLength    = "length"
)

// ToolDefinition describes a tool the model can invoke.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema object
}

// CompletionRequest is the input to a Complete call. System is sent ahead of
// Messages and is never part of the stored thread.
type CompletionRequest struct {
	Model       string           `json:"model,omitempty"`
	System      string           `json:"system,omitempty"`
	Messages    []domain.Message `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	MaxTokens   int              `json:"maxTokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

// CompletionResponse is the model's reply to a single request.
type CompletionResponse struct {
	Content      string                   `json:"content"`
	FinishReason string                   `json:"finishReason,omitempty"`
	ToolCalls    []domain.ToolCallRequest `json:"toolCalls,omitempty"`
	Usage        Usage                    `json:"usage"`
	Model        string                   `json:"model,omitempty"`
	Duration     time.Duration            `json:"duration,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Add accumulates another usage record.
func (u *Usage) Add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}

// TurnKind tags the variant carried by a Turn.
type TurnKind int

const (
	// TurnFinal is a plain answer for the user.
	TurnFinal TurnKind = iota
	// TurnToolRequest asks the caller to run one or more tools.
	TurnToolRequest
)

func (k TurnKind) String() string {
	if k == TurnToolRequest {
		return "tool_request"
	}
	return "final"
}

// Turn is a response reduced to what the dispatcher acts on.
type Turn struct {
	Kind  TurnKind
	Text  string
	Calls []domain.ToolCallRequest
}

// Turn classifies the response. Any tool call makes it a tool request,
// whatever the provider reported as finish reason.
func (r *CompletionResponse) Turn() Turn {
	if len(r.ToolCalls) > 0 {
		return Turn{Kind: TurnToolRequest, Text: r.Content, Calls: r.ToolCalls}
	}
	return Turn{Kind: TurnFinal, Text: r.Content}
}

// Client is the interface all model providers implement.
type Client interface {
	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "openai", "anthropic").
	Name() string
}
