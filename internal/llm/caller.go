package llm

import (
	"context"
	"log/slog"
	"time"
)

// Caller is the single fallible boundary around model calls. It binds a
// client to one model and never returns an error: any fault, including
// a timeout, becomes an empty [TextResponse].
type Caller struct {
	client  Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCaller creates a Caller for model. A zero timeout disables the
// per-call deadline.
func NewCaller(client Client, model string, timeout time.Duration, logger *slog.Logger) *Caller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Caller{client: client, model: model, timeout: timeout, logger: logger}
}

// Send issues one model call. Errors and client panics yield an empty
// TextResponse.
func (c *Caller) Send(ctx context.Context, messages []Message, tools []ToolDefinition) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("model call panicked", "model", c.model, "panic", r)
			resp = TextResponse{}
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Chat(ctx, c.model, messages, tools)
	if err != nil {
		c.logger.Warn("model call failed",
			"model", c.model,
			"error", err,
		)
		return TextResponse{}
	}
	if resp == nil {
		return TextResponse{}
	}
	return resp
}

// Prompt sends a single user message with no tools and returns the text
// answer, or "" on any fault.
func (c *Caller) Prompt(ctx context.Context, prompt string) string {
	return Text(c.Send(ctx, []Message{{Role: RoleUser, Content: prompt}}, nil))
}
