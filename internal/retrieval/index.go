package retrieval

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nugget/krish/internal/memory"
)

// Match is one indexed message returned by a search.
type Match struct {
	Entry memory.LogEntry
	Score float32
}

// Index stores one embedding per logged message.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (or creates) the index database at path.
func OpenIndex(path string) (*Index, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1)

	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate index: %w", err)
	}
	return idx, nil
}

func (x *Index) migrate() error {
	stmts := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL,
			indexed_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_date ON messages(date)`,
	}
	for _, s := range stmts {
		if _, err := x.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (x *Index) Close() error {
	return x.db.Close()
}

// Known returns the IDs already indexed.
func (x *Index) Known(ctx context.Context) (map[string]bool, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT id FROM messages`)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = true
	}
	return known, rows.Err()
}

// Count returns the number of indexed messages.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

// Upsert stores entry with its embedding, replacing any row with the
// same ID.
func (x *Index) Upsert(ctx context.Context, entry memory.LogEntry, vec []float32) error {
	_, err := x.db.ExecContext(ctx,
		`INSERT INTO messages (id, date, time, role, content, embedding, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			indexed_at = excluded.indexed_at`,
		entry.ID(), entry.Date, entry.Time, entry.Role, entry.Content,
		encodeVector(vec), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", entry.ID(), err)
	}
	return nil
}

// Search returns the k entries most similar to query.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT date, time, role, content, embedding FROM messages ORDER BY date, time`)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var (
		entries []memory.LogEntry
		vectors [][]float32
	)
	for rows.Next() {
		var e memory.LogEntry
		var blob []byte
		if err := rows.Scan(&e.Date, &e.Time, &e.Role, &e.Content, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", e.ID(), err)
		}
		entries = append(entries, e)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []Match
	for _, i := range TopK(query, vectors, k) {
		out = append(out, Match{Entry: entries[i], Score: CosineSimilarity(query, vectors[i])})
	}
	return out, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errors.New("corrupt embedding")
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
