// Package agent runs one conversation turn through the pipeline: intent
// classification, context assembly, the tool-calling control loop and
// the post-turn memory and metrics side effects.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nugget/krish/internal/llm"
	"github.com/nugget/krish/internal/tools"
)

// DefaultMaxIterations bounds the model round-trips of one tool turn.
const DefaultMaxIterations = 5

// Sender issues one model call and never fails. [llm.Caller] satisfies it.
type Sender interface {
	Send(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) llm.Response
}

// Executor runs a tool and always returns text. [tools.Registry]
// satisfies it.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) string
}

// History is the session conversation the loop reads from and appends
// to. [memory.Session] satisfies it.
type History interface {
	Append(role, content string)
	Messages() []llm.Message
}

// LoopResult is the outcome of one control loop run.
type LoopResult struct {
	// Text is the final answer. It is empty when the model failed or
	// the loop ran out of iterations mid tool call.
	Text       string
	ToolsUsed  []string
	Iterations int
}

// Loop alternates model calls and tool executions until the model
// answers in text, a tool succeeds, or the iteration cap is reached.
type Loop struct {
	model    Sender
	executor Executor
	max      int
	logger   *slog.Logger
}

// NewLoop creates a control loop. maxIterations <= 0 selects
// DefaultMaxIterations.
func NewLoop(model Sender, executor Executor, maxIterations int, logger *slog.Logger) *Loop {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{model: model, executor: executor, max: maxIterations, logger: logger}
}

// ToolNote is the assistant entry recorded for a tool call.
func ToolNote(name string) string {
	return fmt.Sprintf("[Used %s tool]", name)
}

// ToolResultEntry is the user-role entry carrying a tool result.
func ToolResultEntry(name, result string) string {
	return fmt.Sprintf("Tool result for %s: %s", name, result)
}

// Run offers defs to the model and drives tool calls against history.
// Each executed call appends a ToolNote and a ToolResultEntry. A
// successful result gets exactly one more model call with no tools; a
// failed one re-offers defs until the cap.
func (l *Loop) Run(ctx context.Context, system string, history History, defs []llm.ToolDefinition) LoopResult {
	var res LoopResult

	resp := l.send(ctx, system, history, defs)
	res.Iterations = 1

	for {
		call, ok := asToolCall(resp)
		if !ok {
			res.Text = llm.Text(resp)
			return res
		}

		result := l.executor.Execute(ctx, call.Name, call.Arguments)
		res.ToolsUsed = append(res.ToolsUsed, call.Name)
		history.Append(llm.RoleAssistant, ToolNote(call.Name))
		history.Append(llm.RoleUser, ToolResultEntry(call.Name, result))

		outcome := tools.ClassifyResult(result)
		l.logger.Debug("tool call completed",
			"tool", call.Name,
			"iteration", res.Iterations,
			"outcome", outcome,
		)

		if outcome == tools.Success {
			res.Text = llm.Text(l.send(ctx, system, history, nil))
			res.Iterations++
			return res
		}

		if res.Iterations >= l.max {
			l.logger.Warn("tool loop exhausted iterations",
				"iterations", res.Iterations,
				"last_tool", call.Name,
			)
			return res
		}

		resp = l.send(ctx, system, history, defs)
		res.Iterations++
	}
}

// Single answers with one model call and no tools.
func (l *Loop) Single(ctx context.Context, system string, history History) LoopResult {
	resp := l.send(ctx, system, history, nil)
	return LoopResult{Text: llm.Text(resp), Iterations: 1}
}

func (l *Loop) send(ctx context.Context, system string, history History, defs []llm.ToolDefinition) llm.Response {
	msgs := history.Messages()
	messages := make([]llm.Message, 0, len(msgs)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	messages = append(messages, msgs...)
	return l.model.Send(ctx, messages, defs)
}
