// Package llm provides the model client used by every stage of the
// message pipeline.
package llm

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message for the LLM.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolDefinition declares a callable tool to the model. Parameters is a
// JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Response is what a model call produces: either a [TextResponse] or a
// [ToolCallResponse]. The set is closed; callers switch on the concrete
// type.
type Response interface {
	isResponse()
}

// TextResponse is a plain-text answer. Content may be empty.
type TextResponse struct {
	Content string
}

// ToolCallResponse is a request from the model to run one tool.
type ToolCallResponse struct {
	Name      string
	Arguments map[string]any
}

func (TextResponse) isResponse()     {}
func (ToolCallResponse) isResponse() {}

// Text returns the text carried by r, or "" for a tool call.
func Text(r Response) string {
	if t, ok := r.(TextResponse); ok {
		return t.Content
	}
	return ""
}
