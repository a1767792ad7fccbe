package repositories

import (
	"context"

	"github.com/satriahrh/mirrorvoice/domain/entities"
)

// LargeLanguageModel abstracts any chat provider. Provider specific tool-calling
// shapes are translated inside the adapter.
type LargeLanguageModel interface {
	Name() string
	Complete(ctx context.Context, req ChatRequest) (ChatCompletion, error)
}

// ChatRequest is one submission to the backend
type ChatRequest struct {
	SystemPrompt string
	History      []entities.ConversationTurn
	Message      string
	Tools        []ToolSpec
	// Exchange is set when a tool result is fed back for the final reply
	Exchange *ToolExchange
}

// ChatCompletion is either final content or a tool invocation request
type ChatCompletion struct {
	Content  string
	ToolCall *ToolCall
}

// ToolSpec declares a callable function to the backend
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolCall is a tool invocation requested by the backend
type ToolCall struct {
	ID   string                 `json:"id,omitempty"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// ToolResult is fed back to the backend in the same round
type ToolResult struct {
	Name   string      `json:"name"`
	Result interface{} `json:"result"`
}

// ToolExchange pairs a requested call with its result
type ToolExchange struct {
	Call   ToolCall
	Result ToolResult
}
