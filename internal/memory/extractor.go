package memory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nugget/krish/internal/llm"
	"github.com/nugget/krish/internal/prompts"
)

// Sender issues one model call and never fails. [llm.Caller] satisfies it.
type Sender interface {
	Send(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) llm.Response
}

// FactAppender persists one extracted fact. [Workspace] satisfies it.
type FactAppender interface {
	AppendFact(text string) error
}

// Extractor asks the classifier model for at most one durable fact per
// exchange and appends it to long-term memory. It is best-effort:
// failures are logged and never reach the user-facing turn.
type Extractor struct {
	model  Sender
	facts  FactAppender
	logger *slog.Logger
}

// NewExtractor creates a fact extractor.
func NewExtractor(model Sender, facts FactAppender, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{model: model, facts: facts, logger: logger}
}

// Extract runs one extraction. It reports whether a fact was stored.
func (e *Extractor) Extract(ctx context.Context, userMsg, assistantResp string) bool {
	resp := e.model.Send(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: prompts.MemoryExtractionSystem()},
		{Role: llm.RoleUser, Content: prompts.MemoryExtractionUser(userMsg, assistantResp)},
	}, nil)

	fact := strings.TrimSpace(llm.Text(resp))
	if fact == "" || strings.EqualFold(fact, prompts.NothingSentinel) {
		e.logger.Debug("extraction found nothing worth persisting")
		return false
	}

	if err := e.facts.AppendFact(fact); err != nil {
		e.logger.Warn("failed to persist extracted fact", "error", err)
		return false
	}

	e.logger.Info("extracted fact from conversation", "fact", fact)
	return true
}
