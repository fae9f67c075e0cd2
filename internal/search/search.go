// Package search provides the web search backends behind the web_search
// tool.
//
// Each backend implements [Provider] and is registered on a [Manager].
// The manager tries the primary provider first and falls back to the
// remaining ones in registration order.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultCount is the number of results returned when none is requested.
const DefaultCount = 3

// Result is a single search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Options are optional parameters for a search query.
type Options struct {
	// Count is the maximum number of results to return.
	// Providers may return fewer. Zero means DefaultCount.
	Count int `json:"count,omitempty"`

	// Language is an ISO 639-1 language code (e.g., "en", "de").
	Language string `json:"language,omitempty"`
}

func (o Options) count() int {
	if o.Count <= 0 {
		return DefaultCount
	}
	return o.Count
}

// Provider is the interface that search backends implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "serpapi", "searxng").
	Name() string

	// Search executes a query and returns results.
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// ErrNotConfigured is returned when no provider is registered.
var ErrNotConfigured = errors.New("no search provider configured")

// Manager holds configured providers and routes searches.
type Manager struct {
	providers []Provider
	primary   string
}

// NewManager creates a search manager. The primary provider name
// determines which backend is tried first.
func NewManager(primary string) *Manager {
	return &Manager{primary: primary}
}

// Register adds a provider to the manager.
func (m *Manager) Register(p Provider) {
	m.providers = append(m.providers, p)
}

// Search runs a query against the primary provider, then against each
// other provider until one succeeds. Snippets are reduced to plain text.
func (m *Manager) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if len(m.providers) == 0 {
		return nil, ErrNotConfigured
	}

	var errs []error
	for _, p := range m.ordered() {
		results, err := p.Search(ctx, query, opts)
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		for i := range results {
			results[i].Title = CleanSnippet(results[i].Title)
			results[i].Snippet = CleanSnippet(results[i].Snippet)
		}
		return results, nil
	}
	return nil, errors.Join(errs...)
}

func (m *Manager) ordered() []Provider {
	out := make([]Provider, 0, len(m.providers))
	for _, p := range m.providers {
		if p.Name() == m.primary {
			out = append(out, p)
		}
	}
	for _, p := range m.providers {
		if p.Name() != m.primary {
			out = append(out, p)
		}
	}
	return out
}

// Providers returns the names of all registered providers, primary first.
func (m *Manager) Providers() []string {
	names := make([]string, 0, len(m.providers))
	for _, p := range m.ordered() {
		names = append(names, p.Name())
	}
	return names
}

// Configured reports whether at least one provider is registered.
func (m *Manager) Configured() bool {
	return len(m.providers) > 0
}

// FormatResults renders results as a numbered list: title, snippet and
// link on separate lines, one blank line between results.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "No search results found."
	}

	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		title := r.Title
		if title == "" {
			title = "No title"
		}
		snippet := r.Snippet
		if snippet == "" {
			snippet = "No description"
		}
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(". ")
		sb.WriteString(title)
		fmt.Fprintf(&sb, "\n %s\n %s", snippet, r.URL)
	}
	return sb.String()
}
