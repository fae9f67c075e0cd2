package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/nugget/krish/internal/llm"
)

// functionMarkup matches a tool call a model wrote into its text answer
// instead of emitting a structured call, e.g.
//
//	<function=set_reminder>{"reminder_text":"call mom"}</function>
var functionMarkup = regexp.MustCompile(`(?s)<function=(\w+)>(.*?)(?:</function>|<function>|$)`)

// RecoverToolCall reconstructs a tool call from function markup in
// text. It reports false when there is no markup or the argument blob
// is not a JSON object; the text is then an ordinary answer.
func RecoverToolCall(text string) (llm.ToolCallResponse, bool) {
	if text == "" {
		return llm.ToolCallResponse{}, false
	}
	m := functionMarkup.FindStringSubmatch(text)
	if m == nil {
		return llm.ToolCallResponse{}, false
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(m[2])), &args); err != nil || args == nil {
		return llm.ToolCallResponse{}, false
	}
	return llm.ToolCallResponse{Name: m[1], Arguments: args}, true
}

// asToolCall returns the tool call carried by resp, recovering one from
// markup in a text answer.
func asToolCall(resp llm.Response) (llm.ToolCallResponse, bool) {
	switch r := resp.(type) {
	case llm.ToolCallResponse:
		return r, true
	case llm.TextResponse:
		return RecoverToolCall(r.Content)
	}
	return llm.ToolCallResponse{}, false
}
