package providers

import (
	"context"
	"time"
)

// Message roles as sent on the completion wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry in a completion request.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// CompletionRequest is a request to a completion provider. The provider is
// stateless: every call carries the full accumulated message history.
type CompletionRequest struct {
	// Required
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Timeout     time.Duration

	// Request tracking
	RequestID string `json:"-"`
}

// CompletionResult is the assembled response from a completion call. For
// streaming calls it is built after the final chunk arrives.
type CompletionResult struct {
	Content string `json:"content"`

	// Token counts
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Timing
	ExecutionTime time.Duration `json:"execution_time"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	// Request tracking
	RequestID string `json:"request_id"`
}

// DeltaFunc receives partial content chunks in arrival order. Returning an
// error aborts the stream.
type DeltaFunc func(delta string) error

// CompletionClient is the interface for chat completion providers.
type CompletionClient interface {
	// Complete sends a one-shot completion request.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)

	// CompleteStream sends a completion request and invokes onDelta for each
	// partial content chunk as it arrives. The returned result carries the
	// fully assembled content.
	CompleteStream(ctx context.Context, req *CompletionRequest, onDelta DeltaFunc) (*CompletionResult, error)

	// Name returns the client identifier (e.g., "openai").
	Name() string
}
