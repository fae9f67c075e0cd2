package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nugget/krish/internal/assembly"
	"github.com/nugget/krish/internal/intent"
	"github.com/nugget/krish/internal/llm"
	"github.com/nugget/krish/internal/memory"
	"github.com/nugget/krish/internal/metrics"
	"github.com/nugget/krish/internal/tools"
)

// Apology replaces an empty final answer.
const Apology = "Sorry, I couldn't complete that."

// Classifier scores a message. [intent.Classifier] satisfies it.
type Classifier interface {
	Classify(ctx context.Context, message string) intent.Result
}

// ContextBuilder assembles the per-turn system prompt.
// [assembly.Assembler] satisfies it.
type ContextBuilder interface {
	Build(ctx context.Context, message string, scores intent.Scores) assembly.Assembly
}

// ToolSet offers and runs tools. [tools.Registry] satisfies it.
type ToolSet interface {
	Executor
	Select(message string, scores intent.Scores) []llm.ToolDefinition
}

// DailyLog records every exchanged message. [memory.Workspace]
// satisfies it.
type DailyLog interface {
	AppendLog(role, content string) (memory.LogEntry, error)
}

// LogIndexer makes logged messages searchable.
// [retrieval.Indexer] satisfies it.
type LogIndexer interface {
	Add(ctx context.Context, entry memory.LogEntry) error
}

// FactExtractor persists a durable fact from an exchange.
// [memory.Extractor] satisfies it.
type FactExtractor interface {
	Extract(ctx context.Context, userMsg, assistantResp string) bool
}

// Recorder stores one metrics record per turn. [metrics.Store]
// satisfies it.
type Recorder interface {
	Record(ctx context.Context, rec metrics.Record) error
}

// DeliverFunc sends the final answer to the user.
type DeliverFunc func(ctx context.Context, text string) error

// Turn is one inbound user message.
type Turn struct {
	// SessionID keys the conversation history, e.g. "tg:12345" or "cli".
	SessionID string
	// ChatID is the transport chat the turn came from, or 0 when there
	// is none. Tools that reply asynchronously deliver to it.
	ChatID int64
	Text   string
}

// Config wires a Handler. Log, Indexer, Extractor and Metrics are
// optional.
type Config struct {
	Sessions      *memory.Sessions
	Classifier    Classifier
	Context       ContextBuilder
	Model         Sender
	Tools         ToolSet
	Log           DailyLog
	Indexer       LogIndexer
	Extractor     FactExtractor
	Metrics       Recorder
	MaxIterations int
	Logger        *slog.Logger
}

// Handler runs turns through the pipeline. Turns on the same session
// are serialized; distinct sessions run concurrently.
type Handler struct {
	sessions   *memory.Sessions
	classifier Classifier
	context    ContextBuilder
	tools      ToolSet
	loop       *Loop
	log        DailyLog
	indexer    LogIndexer
	extractor  FactExtractor
	metrics    Recorder
	logger     *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sessions == nil {
		cfg.Sessions = memory.NewSessions(0)
	}
	return &Handler{
		sessions:   cfg.Sessions,
		classifier: cfg.Classifier,
		context:    cfg.Context,
		tools:      cfg.Tools,
		loop:       NewLoop(cfg.Model, cfg.Tools, cfg.MaxIterations, cfg.Logger),
		log:        cfg.Log,
		indexer:    cfg.Indexer,
		extractor:  cfg.Extractor,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Sessions returns the session store the handler appends to.
func (h *Handler) Sessions() *memory.Sessions { return h.sessions }

// turnState carries what the post-delivery steps need.
type turnState struct {
	scores   intent.Scores
	source   string
	assembly assembly.Assembly
	result   LoopResult
	logged   []memory.LogEntry
}

// Handle runs one turn and returns the answer. deliver, when non-nil,
// is called with the answer before memory extraction and metrics run.
// Handle never fails; the worst case is [Apology].
func (h *Handler) Handle(ctx context.Context, turn Turn, deliver DeliverFunc) string {
	start := time.Now()
	if turn.ChatID != 0 {
		ctx = tools.WithChatID(ctx, turn.ChatID)
	}

	st := h.respond(ctx, turn, deliver)

	extracted := false
	if memory.ShouldExtract(turn.Text, st.scores) && h.extractor != nil {
		extracted = h.extractor.Extract(ctx, turn.Text, st.result.Text)
	}

	h.index(ctx, st.logged)

	if h.metrics != nil {
		rec := metrics.Record{
			Timestamp:     start,
			SessionID:     turn.SessionID,
			Message:       turn.Text,
			Scores:        st.scores,
			Source:        st.source,
			ToolsUsed:     st.result.ToolsUsed,
			ContextChars:  len(st.assembly.Prompt),
			ContextTokens: st.assembly.Used,
			Budget:        st.assembly.Budget,
			Iterations:    st.result.Iterations,
			Extracted:     extracted,
		}
		if err := h.metrics.Record(ctx, rec); err != nil {
			h.logger.Warn("failed to record turn metrics", "session", turn.SessionID, "error", err)
		}
	}

	h.logger.Info("turn complete",
		"session", turn.SessionID,
		"source", st.source,
		"tools", st.result.ToolsUsed,
		"iterations", st.result.Iterations,
		"extracted", extracted,
		"elapsed", time.Since(start),
	)
	return st.result.Text
}

// respond holds the session for the part of the turn that reads and
// appends its history, delivery included, so each reply is sent before
// the next turn on that session starts. Arrival order is up to the
// transport.
func (h *Handler) respond(ctx context.Context, turn Turn, deliver DeliverFunc) turnState {
	sess := h.sessions.Get(turn.SessionID)
	sess.Lock()
	defer sess.Unlock()

	var st turnState
	st.logged = h.appendLog(st.logged, llm.RoleUser, turn.Text)
	sess.Append(llm.RoleUser, turn.Text)

	classified := h.classifier.Classify(ctx, turn.Text)
	st.scores, st.source = classified.Scores, classified.Source
	st.assembly = h.context.Build(ctx, turn.Text, st.scores)

	var defs []llm.ToolDefinition
	if assembly.ShouldUseTools(st.scores) && h.tools != nil {
		defs = h.tools.Select(turn.Text, st.scores)
	}
	if len(defs) > 0 {
		h.logger.Debug("offering tools", "session", turn.SessionID, "count", len(defs))
		st.result = h.loop.Run(ctx, st.assembly.Prompt, sess, defs)
	} else {
		st.result = h.loop.Single(ctx, st.assembly.Prompt, sess)
	}

	if strings.TrimSpace(st.result.Text) == "" {
		st.result.Text = Apology
	}

	sess.Append(llm.RoleAssistant, st.result.Text)
	st.logged = h.appendLog(st.logged, llm.RoleAssistant, st.result.Text)

	if deliver != nil {
		if err := deliver(ctx, st.result.Text); err != nil {
			h.logger.Error("failed to deliver answer", "session", turn.SessionID, "error", err)
		}
	}
	return st
}

func (h *Handler) appendLog(logged []memory.LogEntry, role, content string) []memory.LogEntry {
	if h.log == nil {
		return logged
	}
	entry, err := h.log.AppendLog(role, content)
	if err != nil {
		h.logger.Warn("failed to write daily log", "role", role, "error", err)
		return logged
	}
	return append(logged, entry)
}

// index adds the turn's log entries to the retrieval index. Failures
// only cost recall and are logged.
func (h *Handler) index(ctx context.Context, entries []memory.LogEntry) {
	if h.indexer == nil {
		return
	}
	for _, e := range entries {
		if err := h.indexer.Add(ctx, e); err != nil {
			h.logger.Warn("failed to index message", "id", e.ID(), "error", err)
		}
	}
}
