package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// mockProvider is a simple test provider.
type mockProvider struct {
	name    string
	results []Result
	err     error
	calls   int
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) Search(_ context.Context, _ string, _ Options) ([]Result, error) {
	m.calls++
	return m.results, m.err
}

func TestManagerSearch(t *testing.T) {
	mgr := NewManager("mock")
	mgr.Register(&mockProvider{
		name: "mock",
		results: []Result{
			{Title: "Test", URL: "https://example.com", Snippet: "A <b>test</b> result"},
		},
	})

	results, err := mgr.Search(context.Background(), "test", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Snippet != "A test result" {
		t.Errorf("snippet not cleaned: %q", results[0].Snippet)
	}
}

func TestManagerFallsBack(t *testing.T) {
	primary := &mockProvider{name: "serpapi", err: errors.New("quota exceeded")}
	backup := &mockProvider{name: "searxng", results: []Result{{Title: "Backup"}}}

	mgr := NewManager("serpapi")
	mgr.Register(backup)
	mgr.Register(primary)

	if got := mgr.Providers(); got[0] != "serpapi" {
		t.Errorf("Providers() = %v, want primary first", got)
	}

	results, err := mgr.Search(context.Background(), "test", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary.calls != 1 || backup.calls != 1 {
		t.Errorf("calls primary=%d backup=%d, want 1/1", primary.calls, backup.calls)
	}
	if results[0].Title != "Backup" {
		t.Errorf("expected 'Backup', got %q", results[0].Title)
	}
}

func TestManagerAllFail(t *testing.T) {
	mgr := NewManager("a")
	mgr.Register(&mockProvider{name: "a", err: errors.New("first down")})
	mgr.Register(&mockProvider{name: "b", err: errors.New("second down")})

	_, err := mgr.Search(context.Background(), "test", Options{})
	if err == nil || !strings.Contains(err.Error(), "first down") || !strings.Contains(err.Error(), "second down") {
		t.Fatalf("err = %v, want both provider errors", err)
	}
}

func TestManagerUnconfigured(t *testing.T) {
	mgr := NewManager("missing")
	if mgr.Configured() {
		t.Error("empty manager should not be configured")
	}
	_, err := mgr.Search(context.Background(), "test", Options{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestFormatResults(t *testing.T) {
	results := []Result{
		{Title: "First", URL: "https://a.com", Snippet: "Snippet A"},
		{URL: "https://b.com"},
	}
	want := "1. First\n Snippet A\n https://a.com\n\n2. No title\n No description\n https://b.com"
	if got := FormatResults(results); got != want {
		t.Errorf("FormatResults =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatResultsEmpty(t *testing.T) {
	if out := FormatResults(nil); out != "No search results found." {
		t.Errorf("expected 'No search results found.', got %q", out)
	}
}

func TestCleanSnippet(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain   text\n here", "plain text here"},
		{"Rain <b>likely</b> after 3&nbsp;PM", "Rain likely after 3 PM"},
		{"AT&amp;T <em>stock</em>", "AT&T stock"},
		{"<script>alert(1)</script>safe", "safe"},
	}
	for _, tt := range tests {
		if got := CleanSnippet(tt.in); got != tt.want {
			t.Errorf("CleanSnippet(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSerpAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("api_key") != "k" || q.Get("engine") != "google" || q.Get("num") != "2" {
			http.Error(w, `{"error":"bad params"}`, http.StatusUnauthorized)
			return
		}
		switch q.Get("q") {
		case "empty":
			w.Write([]byte(`{"error":"Google hasn't returned any results for this query."}`))
		default:
			w.Write([]byte(`{"organic_results":[
				{"title":"One","link":"https://one","snippet":"first"},
				{"title":"Two","link":"https://two","snippet":"second"},
				{"title":"Three","link":"https://three","snippet":"third"}]}`))
		}
	}))
	defer srv.Close()

	p := NewSerpAPI("k", srv.URL)
	results, err := p.Search(t.Context(), "weather", Options{Count: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[1].URL != "https://two" {
		t.Errorf("results = %+v", results)
	}

	results, err = p.Search(t.Context(), "empty", Options{Count: 2})
	if err != nil || len(results) != 0 {
		t.Errorf("empty query: results=%v err=%v", results, err)
	}

	if _, err := NewSerpAPI("", srv.URL).Search(t.Context(), "x", Options{}); err == nil {
		t.Error("missing api key should error")
	}
}

func TestSearXNG(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("format") != "json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"results":[
			{"title":"A","url":"https://a","content":"alpha"},
			{"title":"B","url":"https://b","content":"beta"},
			{"title":"C","url":"https://c","content":"gamma"},
			{"title":"D","url":"https://d","content":"delta"}]}`))
	}))
	defer srv.Close()

	results, err := NewSearXNG(srv.URL+"/").Search(t.Context(), "go", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != DefaultCount {
		t.Errorf("got %d results, want %d", len(results), DefaultCount)
	}
}
