package assembly

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nugget/krish/internal/intent"
	"github.com/nugget/krish/internal/prompts"
)

// Gate thresholds.
const (
	casualExit        = 0.8
	profilePersonal   = 0.4
	profileKnowledge  = 0.5
	memoryPersonal    = 0.4
	retrievalKnow     = 0.5
	retrievalPersonal = 0.6
	retrievalToolMax  = 0.7
	logsPersonal      = 0.5

	// MinLogTokens is the least remaining budget worth filling with logs.
	MinLogTokens = 100
	// MemoryExcerpts is how many memory bullets are requested.
	MemoryExcerpts = 3
	// RetrievalTopK is how many semantic matches are requested.
	RetrievalTopK = 3

	charsPerToken = 4
)

// Piece headings.
const (
	HeadingPersona   = "## Personality & Response Rules"
	HeadingProfile   = "## User Profile"
	HeadingMemory    = "## What You Remember"
	HeadingRetrieval = "## Relevant Past Context"
	HeadingLogs      = "## Recent Conversation Logs"
)

// Sources supplies the text blobs the assembler draws from. Empty
// strings mean "nothing available".
type Sources interface {
	Persona() string
	Profile() string
	MemoryExcerpt(query string, k int) string
	RecentLogs(maxChars int) string
}

// Retriever returns ranked past context for query, or "" on no result or
// fault. It must not fail.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) string
}

// Assembly is the result of one Build: the prompt and its accounting.
type Assembly struct {
	Prompt string
	Budget int
	Used   int
	// Pieces names the headings that made it in, in order.
	Pieces []string
}

// Assembler builds per-turn system prompts.
type Assembler struct {
	name      string
	sources   Sources
	retriever Retriever
	tokens    Tokenizer
	budgets   Budgets
	logger    *slog.Logger
}

// Config configures an Assembler.
type Config struct {
	// Name is the assistant name used in the prompt preamble.
	Name      string
	Sources   Sources
	Retriever Retriever // optional
	Tokenizer Tokenizer
	Budgets   Budgets
	Logger    *slog.Logger
}

// New creates an Assembler.
func New(cfg Config) *Assembler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tokenizer == nil {
		cfg.Tokenizer = EstimateTokenizer{}
	}
	return &Assembler{
		name:      cfg.Name,
		sources:   cfg.Sources,
		retriever: cfg.Retriever,
		tokens:    cfg.Tokenizer,
		budgets:   cfg.Budgets,
		logger:    cfg.Logger,
	}
}

// Build assembles the system prompt for message. The persona block is
// always present; every other piece is gated by scores and included
// whole only if it fits the remaining budget, except recent logs, which
// are cut to exactly the remaining budget keeping the most recent text.
// The response rules suffix is outside the budget.
func (a *Assembler) Build(ctx context.Context, message string, scores intent.Scores) Assembly {
	b := &builder{tokens: a.tokens, budget: a.budgets.Compute(scores)}

	if persona := a.sources.Persona(); persona != "" {
		b.force(HeadingPersona, persona)
	}

	if scores.Casual <= casualExit {
		a.addGated(ctx, b, message, scores)
	}

	a.logger.Debug("context assembled",
		"budget", b.budget,
		"used", b.used,
		"pieces", b.names,
	)

	return Assembly{
		Prompt: prompts.SystemPrompt(a.name, strings.Join(b.parts, "\n\n")),
		Budget: b.budget,
		Used:   b.used,
		Pieces: b.names,
	}
}

func (a *Assembler) addGated(ctx context.Context, b *builder, message string, s intent.Scores) {
	if s.Personal > profilePersonal || s.Knowledge > profileKnowledge {
		b.tryAdd(HeadingProfile, a.sources.Profile())
	}

	if s.Personal > memoryPersonal {
		b.tryAdd(HeadingMemory, a.sources.MemoryExcerpt(message, MemoryExcerpts))
	}

	if (s.Knowledge > retrievalKnow || s.Personal > retrievalPersonal) && s.Tool < retrievalToolMax && a.retriever != nil {
		b.tryAdd(HeadingRetrieval, a.retriever.Retrieve(ctx, message, RetrievalTopK))
	}

	if s.Personal > logsPersonal {
		remaining := b.budget - b.used
		if remaining > MinLogTokens {
			logs := a.sources.RecentLogs(remaining * charsPerToken)
			b.fill(HeadingLogs, logs)
		}
	}
}

// builder tracks pieces and the running token count for one Build.
type builder struct {
	tokens Tokenizer
	budget int
	used   int
	parts  []string
	names  []string
}

func (b *builder) append(heading, piece string, cost int) {
	b.parts = append(b.parts, piece)
	b.names = append(b.names, heading)
	b.used += cost
}

func (b *builder) force(heading, body string) {
	piece := heading + "\n" + strings.TrimSpace(body)
	b.append(heading, piece, b.tokens.Count(piece))
}

func (b *builder) tryAdd(heading, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	piece := heading + "\n" + body
	cost := b.tokens.Count(piece)
	if b.used+cost > b.budget {
		return
	}
	b.append(heading, piece, cost)
}

// fill adds the tail of body that exactly fits what is left.
func (b *builder) fill(heading, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	head := heading + "\n"
	avail := b.budget - b.used - b.tokens.Count(head)
	if avail <= 0 {
		return
	}
	for avail > 0 {
		tail := b.tokens.Tail(body, avail)
		if tail == "" {
			return
		}
		piece := head + tail
		cost := b.tokens.Count(piece)
		if over := b.used + cost - b.budget; over > 0 {
			avail -= over
			continue
		}
		b.append(heading, piece, cost)
		return
	}
}
