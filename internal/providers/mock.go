package providers

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is a CompletionClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string

	// Deltas, when set, scripts the chunks emitted by CompleteStream.
	// The assembled content is their concatenation.
	Deltas []string

	// Responses, when set, scripts per-call response text in call order;
	// after the script runs out, ResponseText is used.
	Responses []string

	// State
	requestCount atomic.Int64
	lastRequest  atomic.Pointer[CompletionRequest]
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		Latency:      time.Millisecond,
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// RequestCount returns how many requests the client has handled.
func (c *MockClient) RequestCount() int {
	return int(c.requestCount.Load())
}

// LastRequest returns the most recent request, or nil.
func (c *MockClient) LastRequest() *CompletionRequest {
	return c.lastRequest.Load()
}

// Complete sends a mock one-shot request.
func (c *MockClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	c.lastRequest.Store(req)
	count, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	return c.result(req, c.contentFor(count)), nil
}

// CompleteStream emits scripted deltas in order, then returns the assembled result.
func (c *MockClient) CompleteStream(ctx context.Context, req *CompletionRequest, onDelta DeltaFunc) (*CompletionResult, error) {
	c.lastRequest.Store(req)
	count, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}

	deltas := c.Deltas
	if len(deltas) == 0 {
		deltas = []string{c.contentFor(count)}
	}
	for _, d := range deltas {
		if err := onDelta(d); err != nil {
			return nil, fmt.Errorf("stream consumer rejected delta: %w", err)
		}
	}
	return c.result(req, strings.Join(deltas, "")), nil
}

func (c *MockClient) begin(ctx context.Context) (int, error) {
	count := int(c.requestCount.Add(1))

	if c.ShouldFail {
		return 0, fmt.Errorf("mock client configured to fail")
	}
	if c.FailAfter > 0 && count > c.FailAfter {
		return 0, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	select {
	case <-time.After(c.Latency):
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return count, nil
}

func (c *MockClient) contentFor(count int) string {
	if len(c.Responses) >= count {
		return c.Responses[count-1]
	}
	return c.ResponseText
}

func (c *MockClient) result(req *CompletionRequest, content string) *CompletionResult {
	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4 // Rough estimate
	}
	completionTokens := len(content) / 4

	return &CompletionResult{
		Content:          content,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Provider:         MockClientName,
		ModelUsed:        req.Model,
		RequestID:        fmt.Sprintf("mock-%d", c.requestCount.Load()),
	}
}
