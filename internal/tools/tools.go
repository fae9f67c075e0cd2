// Package tools defines the tools offered to the model: their static
// declarations, the registry that binds them to handlers, the selector
// that narrows them per message and the classifier that reads a tool
// result as success or failure.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nugget/krish/internal/llm"
)

// DefaultTimeout bounds a single tool execution.
const DefaultTimeout = 30 * time.Second

// Handler executes a tool call.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool binds a declaration to its handler.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     Handler        `json:"-"`
}

// Definition returns the declaration sent to the model.
func (t *Tool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
}

// Registry holds available tools. It is populated at startup and read
// concurrently afterwards.
type Registry struct {
	tools   map[string]*Tool
	timeout time.Duration
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. A zero timeout uses
// DefaultTimeout.
func NewRegistry(timeout time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{
		tools:   make(map[string]*Tool),
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a tool, replacing any with the same name.
func (r *Registry) Register(t *Tool) {
	r.tools[t.Name] = t
}

// Bind registers handler under one of the static declarations.
func (r *Registry) Bind(name string, handler Handler) error {
	decl, ok := Declaration(name)
	if !ok {
		return fmt.Errorf("no declaration for tool %q", name)
	}
	r.Register(&Tool{
		Name:        decl.Name,
		Description: decl.Description,
		Parameters:  decl.Parameters,
		Handler:     handler,
	})
	return nil
}

// Get returns a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs a tool and always returns text. Unknown names yield
// "Unknown tool: <name>". Handler errors, timeouts and panics become a
// failure result beginning with "Error:".
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result string) {
	tool := r.tools[name]
	if tool == nil || tool.Handler == nil {
		r.logger.Warn("unknown tool requested", "tool", name)
		return "Unknown tool: " + name
	}
	if args == nil {
		args = map[string]any{}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", p)
			result = fmt.Sprintf("Error: tool %s failed: %v", name, p)
		}
	}()

	out, err := tool.Handler(ctx, args)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		r.logger.Warn("tool failed",
			"tool", name,
			"elapsed", time.Since(start),
			"error", err,
		)
		return "Error: " + err.Error()
	}

	r.logger.Debug("tool executed",
		"tool", name,
		"elapsed", time.Since(start),
		"result_len", len(out),
	)
	return out
}

func (r *Registry) mustBind(name string, handler Handler) {
	if err := r.Bind(name, handler); err != nil {
		panic(err)
	}
}
