package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIClientName   = "openai"
	openAIDefaultModel = string(openai.ChatModelGPT4oMini)

	// Generation defaults tuned for a playful, bounded Santa reply.
	openAIDefaultTemperature = 0.6
	openAIDefaultMaxTokens   = 512
	openAIDefaultTopP        = 0.9
)

// OpenAIConfig holds configuration for the OpenAI completion client.
type OpenAIConfig struct {
	APIKey      string
	Model       string        // "gpt-4o-mini" (default)
	Temperature float64       // 0.6 (default)
	MaxTokens   int           // 512 (default)
	MaxRetries  int           // Retry attempts for SDK transport
	Timeout     time.Duration // HTTP timeout
	BaseURL     string        // Optional (tests)
	HTTPClient  *http.Client  // Optional (tests)
}

// OpenAIClient implements CompletionClient using the official OpenAI SDK.
type OpenAIClient struct {
	model       string
	temperature float64
	maxTokens   int
	client      openai.Client
}

// NewOpenAIClient creates a new OpenAI completion client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = openAIDefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = openAIDefaultMaxTokens
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIClientName
}

// Complete sends a one-shot completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	start := time.Now()
	requestID := c.requestID(req)

	resp, err := c.client.Chat.Completions.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &CompletionResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
		ExecutionTime:    time.Since(start),
		Provider:         OpenAIClientName,
		ModelUsed:        resp.Model,
		RequestID:        requestID,
	}, nil
}

// CompleteStream sends a streaming completion request, invoking onDelta for
// each content chunk in arrival order.
func (c *OpenAIClient) CompleteStream(ctx context.Context, req *CompletionRequest, onDelta DeltaFunc) (*CompletionResult, error) {
	start := time.Now()
	requestID := c.requestID(req)

	stream := c.client.Chat.Completions.NewStreaming(ctx, c.buildParams(req))
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := onDelta(delta); err != nil {
				return nil, fmt.Errorf("stream consumer rejected delta: %w", err)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai stream failed: %w", err)
	}
	if len(acc.Choices) == 0 {
		return nil, fmt.Errorf("openai stream returned no choices")
	}

	return &CompletionResult{
		Content:          acc.Choices[0].Message.Content,
		PromptTokens:     int(acc.Usage.PromptTokens),
		CompletionTokens: int(acc.Usage.CompletionTokens),
		TotalTokens:      int(acc.Usage.TotalTokens),
		ExecutionTime:    time.Since(start),
		Provider:         OpenAIClientName,
		ModelUsed:        acc.Model,
		RequestID:        requestID,
	}, nil
}

func (c *OpenAIClient) buildParams(req *CompletionRequest) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = c.model
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
		TopP:        openai.Float(openAIDefaultTopP),
	}
}

func (c *OpenAIClient) requestID(req *CompletionRequest) string {
	if req.RequestID != "" {
		return req.RequestID
	}
	return uuid.New().String()
}
