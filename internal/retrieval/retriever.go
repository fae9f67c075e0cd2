package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultTimeout bounds one retrieval (query embedding plus search).
const DefaultTimeout = 10 * time.Second

// Retriever answers semantic lookups over past conversation.
type Retriever struct {
	index    *Index
	embedder Embedder
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRetriever creates a retriever. A zero timeout uses DefaultTimeout.
func NewRetriever(index *Index, embedder Embedder, timeout time.Duration, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Retriever{index: index, embedder: embedder, timeout: timeout, logger: logger}
}

// Retrieve returns the topK most relevant past messages, one per line as
// "[date time] role: text". Every failure yields "".
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) string {
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("retrieval failed", "stage", "embed", "error", err)
		return ""
	}
	matches, err := r.index.Search(ctx, vec, topK)
	if err != nil {
		r.logger.Warn("retrieval failed", "stage", "search", "error", err)
		return ""
	}

	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		e := m.Entry
		lines = append(lines, fmt.Sprintf("[%s %s] %s: %s", e.Date, e.Time, e.Role, e.Content))
	}
	r.logger.Debug("retrieval complete", "matches", len(matches))
	return strings.Join(lines, "\n")
}
