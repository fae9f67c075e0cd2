// Package metrics provides an append-only store of per-turn pipeline
// records: how a message was classified, how much context was assembled
// and which tools ran. Records are indexed by timestamp and session for
// offline analysis of routing and memory growth.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nugget/krish/internal/intent"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// MessagePreviewLen is the number of characters of the user message kept
// in a record.
const MessagePreviewLen = 60

// Record is one turn through the pipeline.
type Record struct {
	ID            string
	Timestamp     time.Time
	SessionID     string
	Message       string // truncated to MessagePreviewLen
	Scores        intent.Scores
	Source        string // classifier rule or "model"
	ToolsUsed     []string
	ContextChars  int
	ContextTokens int
	Budget        int
	Iterations    int
	Extracted     bool
}

// Summary holds aggregated totals.
type Summary struct {
	Turns            int
	ToolTurns        int
	AvgContextTokens float64
	Extracted        int
}

// Store is an append-only SQLite store for turn records. All public
// methods are safe for concurrent use (SQLite serializes writes).
type Store struct {
	db *sql.DB
}

// NewStore creates a metrics store at the given database path. The
// schema is created automatically on first use.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open metrics database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate metrics schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id             TEXT PRIMARY KEY,
		timestamp      TEXT NOT NULL,
		session_id     TEXT,
		message        TEXT NOT NULL,
		casual         REAL NOT NULL,
		tool           REAL NOT NULL,
		personal       REAL NOT NULL,
		knowledge      REAL NOT NULL,
		source         TEXT NOT NULL,
		tools_used     TEXT NOT NULL,
		context_chars  INTEGER NOT NULL,
		context_tokens INTEGER NOT NULL,
		budget         INTEGER NOT NULL,
		iterations     INTEGER NOT NULL,
		extracted      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_timestamp ON turns(timestamp);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Truncate shortens message to MessagePreviewLen characters.
func Truncate(message string) string {
	r := []rune(message)
	if len(r) <= MessagePreviewLen {
		return message
	}
	return string(r[:MessagePreviewLen])
}

// Record persists a turn record. If rec.ID is empty, a UUIDv7 is
// generated. The message is truncated before storage.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate metrics record ID: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	tools := rec.ToolsUsed
	if tools == nil {
		tools = []string{}
	}
	toolsJSON, err := json.Marshal(tools)
	if err != nil {
		return fmt.Errorf("marshal tools: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO turns
			(id, timestamp, session_id, message, casual, tool, personal, knowledge,
			 source, tools_used, context_chars, context_tokens, budget, iterations, extracted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp.UTC().Format(timeLayout),
		rec.SessionID,
		Truncate(rec.Message),
		rec.Scores.Casual,
		rec.Scores.Tool,
		rec.Scores.Personal,
		rec.Scores.Knowledge,
		rec.Source,
		string(toolsJSON),
		rec.ContextChars,
		rec.ContextTokens,
		rec.Budget,
		rec.Iterations,
		rec.Extracted,
	)
	if err != nil {
		return fmt.Errorf("insert metrics record: %w", err)
	}
	return nil
}

// Recent returns the newest limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, COALESCE(session_id, ''), message, casual, tool, personal, knowledge,
			source, tools_used, context_chars, context_tokens, budget, iterations, extracted
		 FROM turns ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec       Record
			ts, tools string
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.SessionID, &rec.Message,
			&rec.Scores.Casual, &rec.Scores.Tool, &rec.Scores.Personal, &rec.Scores.Knowledge,
			&rec.Source, &tools, &rec.ContextChars, &rec.ContextTokens, &rec.Budget,
			&rec.Iterations, &rec.Extracted); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if rec.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("turn %s: parse timestamp: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(tools), &rec.ToolsUsed); err != nil {
			return nil, fmt.Errorf("turn %s: decode tools: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Summary returns aggregated totals for records within [start, end).
func (s *Store) Summary(ctx context.Context, start, end time.Time) (*Summary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN tools_used != '[]' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(context_tokens), 0),
			COALESCE(SUM(extracted), 0)
		 FROM turns
		 WHERE timestamp >= ? AND timestamp < ?`,
		start.UTC().Format(timeLayout),
		end.UTC().Format(timeLayout),
	)

	var sum Summary
	if err := row.Scan(&sum.Turns, &sum.ToolTurns, &sum.AvgContextTokens, &sum.Extracted); err != nil {
		return nil, fmt.Errorf("query metrics summary: %w", err)
	}
	return &sum, nil
}

// CountBySource returns the number of turns per classifier source within
// [start, end).
func (s *Store) CountBySource(ctx context.Context, start, end time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM turns
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY source ORDER BY COUNT(*) DESC`,
		start.UTC().Format(timeLayout),
		end.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query turns by source: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan turns by source: %w", err)
		}
		result[key] = n
	}
	return result, rows.Err()
}
