package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nugget/krish/internal/llm"
	"github.com/nugget/krish/internal/prompts"
)

// ErrNoTime is returned when a request carries no recognizable time.
var ErrNoTime = errors.New("no reminder time found")

// Sender issues a model call.
type Sender interface {
	Send(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) llm.Response
}

// Request is a parsed reminder request.
type Request struct {
	At      time.Time
	Message string
}

// Parser turns natural language into a Request using a model.
type Parser struct {
	model Sender
}

// NewParser creates a parser backed by model.
func NewParser(model Sender) *Parser {
	return &Parser{model: model}
}

// Parse resolves text relative to now. The returned time is in now's
// location. When the model gives no message, text itself is used.
func (p *Parser) Parse(ctx context.Context, text string, now time.Time) (Request, error) {
	resp := p.model.Send(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: prompts.ReminderParseSystem(now)},
		{Role: llm.RoleUser, Content: text},
	}, nil)
	return ParseReply(llm.Text(resp), text, now.Location())
}

type reminderReply struct {
	Datetime *string `json:"datetime"`
	Message  *string `json:"message"`
}

// ParseReply decodes the model's JSON answer.
func ParseReply(raw, fallbackMessage string, loc *time.Location) (Request, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, "```json", ""), "```", ""))
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	var reply reminderReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return Request{}, fmt.Errorf("decode reminder reply: %w", err)
	}
	if reply.Datetime == nil || strings.TrimSpace(*reply.Datetime) == "" {
		return Request{}, ErrNoTime
	}
	at, err := time.ParseInLocation(prompts.ReminderLayout, strings.TrimSpace(*reply.Datetime), loc)
	if err != nil {
		return Request{}, fmt.Errorf("parse reminder time: %w", err)
	}

	msg := fallbackMessage
	if reply.Message != nil && strings.TrimSpace(*reply.Message) != "" {
		msg = strings.TrimSpace(*reply.Message)
	}
	return Request{At: at, Message: msg}, nil
}
