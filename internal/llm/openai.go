package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nugget/krish/internal/config"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint:
// Groq, OpenAI itself, or a local Ollama on its /v1 path.
type OpenAIClient struct {
	client    *openai.Client
	maxTokens int
	logger    *slog.Logger
}

// NewOpenAIClient creates a client for the endpoint at baseURL. An empty
// baseURL means api.openai.com. httpClient may be nil.
func NewOpenAIClient(baseURL, apiKey string, maxTokens int, httpClient *http.Client, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIClient{
		client:    openai.NewClientWithConfig(cfg),
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []Message, tools []ToolDefinition) (Response, error) {
	req := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  toOpenAIMessages(messages),
		MaxTokens: c.maxTokens,
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
		req.ToolChoice = "auto"
	}

	c.logger.Log(ctx, config.LevelTrace, "chat request",
		"model", model,
		"messages", len(messages),
		"tools", len(tools),
	)

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("chat completion (%d %s): %w", apiErr.HTTPStatusCode, apiErr.Type, err)
		}
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion: no choices")
	}

	c.logger.Debug("chat response",
		"model", resp.Model,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason,
	)

	return fromOpenAIMessage(resp.Choices[0].Message), nil
}

// Ping checks that the endpoint answers a model listing.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func toOpenAITools(tools []ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

// fromOpenAIMessage converts the first choice into a Response. Only the
// first tool call is honoured. Arguments that are not a JSON object
// become an empty map so the tool reports the missing keys itself.
func fromOpenAIMessage(msg openai.ChatCompletionMessage) Response {
	if len(msg.ToolCalls) == 0 {
		return TextResponse{Content: msg.Content}
	}
	fn := msg.ToolCalls[0].Function
	args := map[string]any{}
	if fn.Arguments != "" {
		if err := json.Unmarshal([]byte(fn.Arguments), &args); err != nil || args == nil {
			args = map[string]any{}
		}
	}
	return ToolCallResponse{Name: fn.Name, Arguments: args}
}
