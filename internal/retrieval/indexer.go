package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nugget/krish/internal/memory"
)

// LogSource lists and reads daily logs.
type LogSource interface {
	LogDates() ([]string, error)
	ReadLog(date string) (string, error)
}

// Indexer embeds log entries into an Index.
type Indexer struct {
	index    *Index
	embedder Embedder
	logger   *slog.Logger
}

// NewIndexer creates an indexer.
func NewIndexer(index *Index, embedder Embedder, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{index: index, embedder: embedder, logger: logger}
}

// Stats summarizes a backfill run.
type Stats struct {
	Scanned int
	Added   int
	Failed  int
}

// Backfill embeds every log entry not yet in the index. Entries already
// present are skipped, so repeated runs are cheap. A failed embedding is
// counted and logged but does not stop the run; context cancellation
// does.
func (x *Indexer) Backfill(ctx context.Context, logs LogSource) (Stats, error) {
	var st Stats

	known, err := x.index.Known(ctx)
	if err != nil {
		return st, err
	}
	dates, err := logs.LogDates()
	if err != nil {
		return st, err
	}

	for _, date := range dates {
		content, err := logs.ReadLog(date)
		if err != nil {
			x.logger.Warn("log read failed", "date", date, "error", err)
			continue
		}
		for _, entry := range memory.ParseLog(date, content) {
			st.Scanned++
			id := entry.ID()
			if known[id] || entry.Content == "" {
				continue
			}
			if err := ctx.Err(); err != nil {
				return st, err
			}
			if err := x.Add(ctx, entry); err != nil {
				st.Failed++
				x.logger.Warn("index entry failed", "id", id, "error", err)
				continue
			}
			known[id] = true
			st.Added++
		}
		x.logger.Debug("indexed log", "date", date, "added", st.Added)
	}
	return st, nil
}

// Add embeds and stores a single entry.
func (x *Indexer) Add(ctx context.Context, entry memory.LogEntry) error {
	vec, err := x.embedder.Embed(ctx, entry.Content)
	if err != nil {
		return err
	}
	if err := x.index.Upsert(ctx, entry, vec); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}
