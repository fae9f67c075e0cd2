package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeClient returns queued responses in order.
type fakeClient struct {
	responses []Response
	err       error
	calls     int
	lastModel string
	block     bool
	panics    bool
}

func (f *fakeClient) Chat(ctx context.Context, model string, _ []Message, _ []ToolDefinition) (Response, error) {
	f.calls++
	f.lastModel = model
	if f.panics {
		panic("provider exploded")
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, nil
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, nil
}

func (f *fakeClient) Ping(context.Context) error { return f.err }

func TestCaller_Send(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
		want   Response
	}{
		{
			name:   "text passes through",
			client: &fakeClient{responses: []Response{TextResponse{Content: "ok"}}},
			want:   TextResponse{Content: "ok"},
		},
		{
			name:   "error becomes empty text",
			client: &fakeClient{err: errors.New("connection refused")},
			want:   TextResponse{},
		},
		{
			name:   "nil response becomes empty text",
			client: &fakeClient{},
			want:   TextResponse{},
		},
		{
			name:   "client panic becomes empty text",
			client: &fakeClient{panics: true},
			want:   TextResponse{},
		},
		{
			name:   "timeout becomes empty text",
			client: &fakeClient{block: true},
			want:   TextResponse{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCaller(tt.client, "m", 50*time.Millisecond, quietLogger())
			got := c.Send(t.Context(), []Message{{Role: RoleUser, Content: "x"}}, nil)
			if got != tt.want {
				t.Errorf("Send() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestCaller_PromptIgnoresToolCalls(t *testing.T) {
	client := &fakeClient{responses: []Response{ToolCallResponse{Name: "web_search"}}}
	c := NewCaller(client, "m", 0, quietLogger())
	if got := c.Prompt(t.Context(), "q"); got != "" {
		t.Errorf("Prompt() = %q, want empty", got)
	}
}

func TestMultiClient_Routing(t *testing.T) {
	groq := &fakeClient{responses: []Response{TextResponse{Content: "groq"}, TextResponse{Content: "groq"}}}
	local := &fakeClient{responses: []Response{TextResponse{Content: "local"}}}

	m := NewMultiClient()
	m.AddProvider("groq", groq, "llama-3.3-70b-versatile")
	m.AddProvider("local", local, "llama3.2", "llama-3.3-70b-versatile")

	tests := []struct {
		model string
		want  string
	}{
		{model: "llama3.2", want: "local"},
		{model: "unknown-model", want: "groq"},
		// Claimed by both; the first claim wins.
		{model: "llama-3.3-70b-versatile", want: "groq"},
	}

	for _, tt := range tests {
		resp, err := m.Chat(t.Context(), tt.model, nil, nil)
		if err != nil {
			t.Fatalf("Chat(%s): %v", tt.model, err)
		}
		if Text(resp) != tt.want {
			t.Errorf("%s routed to %q, want %q", tt.model, Text(resp), tt.want)
		}
	}

	if got := m.Providers(); len(got) != 2 || got[0] != "groq" {
		t.Errorf("Providers() = %v", got)
	}
	if _, err := NewMultiClient().Chat(t.Context(), "x", nil, nil); err == nil {
		t.Error("Chat with no providers should fail")
	}
}

func TestMultiClient_Ping(t *testing.T) {
	m := NewMultiClient()
	if err := m.Ping(t.Context()); err == nil {
		t.Error("Ping with no providers should fail")
	}

	m.AddProvider("groq", &fakeClient{})
	m.AddProvider("local", &fakeClient{err: errors.New("connection refused")})
	err := m.Ping(t.Context())
	if err == nil || !strings.Contains(err.Error(), "local: connection refused") {
		t.Errorf("Ping() = %v, want local failure", err)
	}
	if strings.Contains(err.Error(), "groq") {
		t.Errorf("Ping() blamed healthy provider: %v", err)
	}
}
