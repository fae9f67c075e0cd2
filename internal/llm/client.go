package llm

import "context"

// Client is the interface that all LLM providers must implement.
type Client interface {
	// Chat sends a chat completion request. When tools is non-empty the
	// model may answer with a tool call instead of text.
	Chat(ctx context.Context, model string, messages []Message, tools []ToolDefinition) (Response, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
