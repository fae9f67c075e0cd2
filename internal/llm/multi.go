package llm

import (
	"context"
	"errors"
	"fmt"
)

// MultiClient sends each request to the provider that serves its model.
// The first provider added also serves every model no provider claims.
type MultiClient struct {
	providers []namedClient
	byModel   map[string]int // model → index into providers
}

type namedClient struct {
	name   string
	client Client
}

// NewMultiClient returns an empty router; add providers before use.
func NewMultiClient() *MultiClient {
	return &MultiClient{byModel: make(map[string]int)}
}

// AddProvider registers client under name and claims models for it. A
// model claimed twice stays with the provider that claimed it first.
func (m *MultiClient) AddProvider(name string, client Client, models ...string) {
	m.providers = append(m.providers, namedClient{name: name, client: client})
	idx := len(m.providers) - 1
	for _, model := range models {
		if _, taken := m.byModel[model]; !taken {
			m.byModel[model] = idx
		}
	}
}

// Providers lists provider names in registration order.
func (m *MultiClient) Providers() []string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.name
	}
	return names
}

func (m *MultiClient) route(model string) (namedClient, bool) {
	if len(m.providers) == 0 {
		return namedClient{}, false
	}
	if idx, ok := m.byModel[model]; ok {
		return m.providers[idx], true
	}
	return m.providers[0], true
}

// Chat forwards the request to the provider serving model.
func (m *MultiClient) Chat(ctx context.Context, model string, messages []Message, tools []ToolDefinition) (Response, error) {
	p, ok := m.route(model)
	if !ok {
		return nil, fmt.Errorf("no provider configured for model %q", model)
	}
	return p.client.Chat(ctx, model, messages, tools)
}

// Ping checks every provider and joins the failures, each tagged with
// its provider name.
func (m *MultiClient) Ping(ctx context.Context) error {
	if len(m.providers) == 0 {
		return errors.New("no providers configured")
	}
	var errs []error
	for _, p := range m.providers {
		if err := p.client.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
		}
	}
	return errors.Join(errs...)
}
