package intent

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/nugget/krish/internal/llm"
)

type fakeSender struct {
	reply string
	calls int
}

func (f *fakeSender) Send(context.Context, []llm.Message, []llm.ToolDefinition) llm.Response {
	f.calls++
	return llm.TextResponse{Content: f.reply}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTriage_Rules(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		wantSource string
		want       Scores
	}{
		{name: "filler", message: "hey", wantSource: SourceCasualFiller, want: Scores{Casual: 1}},
		{name: "filler case and space", message: "  Thank You ", wantSource: SourceCasualFiller, want: Scores{Casual: 1}},
		{name: "two words", message: "sounds good", wantSource: SourceShortMessage, want: Scores{Casual: 0.9, Knowledge: 0.1}},
		{name: "two words with question", message: "why though?", wantSource: ""},
		{name: "weather", message: "what's the weather in Pune today", wantSource: SourceToolPhrase, want: Scores{Tool: 1}},
		{name: "search verb", message: "can you search for rust async runtimes", wantSource: SourceToolPhrase, want: Scores{Tool: 1}},
		{name: "reminder action", message: "remind me to call mom at 7pm", wantSource: SourceToolPhrase, want: Scores{Tool: 1}},
		{name: "memory phrase", message: "what did we decide about the launch", wantSource: SourceMemoryPhrase, want: Scores{Personal: 0.8, Knowledge: 0.5}},
		{name: "identity question", message: "do you know my name", wantSource: SourceMemoryPhrase, want: Scores{Personal: 0.8, Knowledge: 0.5}},
		{name: "no rule", message: "explain how raft elects a leader", wantSource: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, source, ok := Triage(tt.message)
			if tt.wantSource == "" {
				if ok {
					t.Fatalf("Triage(%q) matched %s, want no match", tt.message, source)
				}
				return
			}
			if !ok || source != tt.wantSource {
				t.Fatalf("Triage(%q) source = %q (ok=%v), want %q", tt.message, source, ok, tt.wantSource)
			}
			if got != tt.want {
				t.Errorf("Triage(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}

func TestTriage_EveryFillerIsPureCasual(t *testing.T) {
	for filler := range casualFillers {
		got, _, ok := Triage(filler)
		if !ok || got != (Scores{Casual: 1}) {
			t.Errorf("Triage(%q) = %v, %v; want pure casual", filler, got, ok)
		}
	}
}

func TestClassify_TriageSkipsModel(t *testing.T) {
	model := &fakeSender{reply: `{"tool": 1}`}
	c := NewClassifier(model, quietLogger())

	res := c.Classify(t.Context(), "hey")
	if res.Scores != (Scores{Casual: 1}) {
		t.Errorf("Classify(hey) = %v", res.Scores)
	}
	if model.calls != 0 {
		t.Errorf("model called %d times, want 0", model.calls)
	}
}

func TestClassify_Model(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		want       Scores
		wantSource string
	}{
		{
			name:       "plain json",
			reply:      `{"casual": 0.1, "tool": 0.8, "personal": 0.2, "knowledge": 0.3}`,
			want:       Scores{Casual: 0.1, Tool: 0.8, Personal: 0.2, Knowledge: 0.3},
			wantSource: SourceModel,
		},
		{
			name:       "fenced",
			reply:      "```json\n{\"casual\": 0, \"tool\": 0, \"personal\": 0.4, \"knowledge\": 0.9}\n```",
			want:       Scores{Personal: 0.4, Knowledge: 0.9},
			wantSource: SourceModel,
		},
		{
			name:       "clamped and missing keys",
			reply:      `{"tool": 1.7, "knowledge": -0.2}`,
			want:       Scores{Tool: 1},
			wantSource: SourceModel,
		},
		{
			name:       "surrounding prose",
			reply:      `Here you go: {"knowledge": 0.6}`,
			want:       Scores{Knowledge: 0.6},
			wantSource: SourceModel,
		},
		{
			name:       "malformed",
			reply:      `{"casual": 0.1,`,
			want:       Fallback,
			wantSource: SourceFallback,
		},
		{
			name:       "json null",
			reply:      "null",
			want:       Fallback,
			wantSource: SourceFallback,
		},
		{
			name:       "fenced null",
			reply:      "```json\nnull\n```",
			want:       Fallback,
			wantSource: SourceFallback,
		},
		{
			name:       "empty reply from model fault",
			reply:      "",
			want:       Fallback,
			wantSource: SourceFallback,
		},
		{
			name:       "non-numeric value",
			reply:      `{"tool": "lots"}`,
			want:       Fallback,
			wantSource: SourceFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeSender{reply: tt.reply}
			c := NewClassifier(model, quietLogger())

			res := c.Classify(t.Context(), "explain how raft elects a leader")
			if model.calls != 1 {
				t.Errorf("model called %d times, want 1", model.calls)
			}
			if res.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", res.Source, tt.wantSource)
			}
			if res.Scores != tt.want {
				t.Errorf("Scores = %v, want %v", res.Scores, tt.want)
			}
		})
	}
}

func TestClamp_NaN(t *testing.T) {
	got := Scores{Casual: math.NaN(), Tool: math.Inf(1)}.Clamp()
	if got != (Scores{Tool: 1}) {
		t.Errorf("Clamp() = %v", got)
	}
}
