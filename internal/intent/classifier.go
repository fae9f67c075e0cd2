package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nugget/krish/internal/llm"
	"github.com/nugget/krish/internal/prompts"
)

// Sender issues one model call and never fails. [llm.Caller] satisfies it.
type Sender interface {
	Send(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) llm.Response
}

// Result is a classification with the rule or path that produced it.
type Result struct {
	Scores Scores
	Source string
}

// Classifier scores messages: deterministic triage first, then one call
// to the classifier model.
type Classifier struct {
	model  Sender
	logger *slog.Logger
}

// NewClassifier creates a classifier backed by model.
func NewClassifier(model Sender, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{model: model, logger: logger}
}

// Classify scores message. It never fails; an unusable model answer
// yields [Fallback].
func (c *Classifier) Classify(ctx context.Context, message string) Result {
	if scores, source, ok := Triage(message); ok {
		c.logger.Debug("intent triaged", "source", source, "scores", scores)
		return Result{Scores: scores, Source: source}
	}

	resp := c.model.Send(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: prompts.IntentScorerSystem()},
		{Role: llm.RoleUser, Content: prompts.IntentScorerUser(message)},
	}, nil)

	scores, err := ParseScores(llm.Text(resp))
	if err != nil {
		c.logger.Warn("intent scoring failed, using fallback", "error", err)
		return Result{Scores: Fallback, Source: SourceFallback}
	}

	c.logger.Debug("intent scored", "scores", scores)
	return Result{Scores: scores, Source: SourceModel}
}

// ParseScores decodes a scorer reply. Code fences are stripped, values
// are clamped into [0,1] and missing keys count as 0.
func ParseScores(raw string) (Scores, error) {
	raw = stripFences(raw)
	if raw == "" {
		return Scores{}, errors.New("empty scorer reply")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return Scores{}, fmt.Errorf("decode scores: %w", err)
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err != nil {
			return Scores{}, fmt.Errorf("decode scores: %w", err)
		}
	}
	if fields == nil {
		return Scores{}, errors.New("scorer reply is not an object")
	}

	var s Scores
	for key, dst := range map[string]*float64{
		"casual":    &s.Casual,
		"tool":      &s.Tool,
		"personal":  &s.Personal,
		"knowledge": &s.Knowledge,
	} {
		v, ok := fields[key]
		if !ok {
			continue
		}
		f, err := toFloat(v)
		if err != nil {
			return Scores{}, fmt.Errorf("score %q: %w", key, err)
		}
		*dst = f
	}
	return s.Clamp(), nil
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
