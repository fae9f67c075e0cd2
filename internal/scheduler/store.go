package scheduler

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// timeLayout is fixed-width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Store handles reminder persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a reminder store with SQLite backend.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		chat_id INTEGER NOT NULL,
		message TEXT NOT NULL,
		at TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		fired_at TEXT,
		result TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reminders_status_at ON reminders(status, at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Save inserts r, or replaces the reminder with the same ID and resets it
// to pending.
func (s *Store) Save(r *Reminder) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.Status = StatusPending
	r.FiredAt = nil
	r.Result = ""

	_, err := s.db.Exec(`
		INSERT INTO reminders (id, chat_id, message, at, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			message = excluded.message,
			at = excluded.at,
			status = excluded.status,
			fired_at = NULL,
			result = NULL
	`, r.ID, r.ChatID, r.Message, r.At.UTC().Format(timeLayout),
		string(r.Status), r.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save reminder: %w", err)
	}
	return nil
}

// Get retrieves a reminder by ID. It returns nil, nil when none exists.
func (s *Store) Get(id string) (*Reminder, error) {
	row := s.db.QueryRow(`
		SELECT id, chat_id, message, at, status, created_at, fired_at, result
		FROM reminders WHERE id = ?
	`, id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// Pending returns all undelivered reminders, earliest first.
func (s *Store) Pending() ([]*Reminder, error) {
	rows, err := s.db.Query(`
		SELECT id, chat_id, message, at, status, created_at, fired_at, result
		FROM reminders WHERE status = ? ORDER BY at
	`, string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()

	var out []*Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkFired records the outcome of a delivery attempt.
func (s *Store) MarkFired(id string, status Status, firedAt time.Time, result string) error {
	_, err := s.db.Exec(`
		UPDATE reminders SET status = ?, fired_at = ?, result = ? WHERE id = ?
	`, string(status), firedAt.UTC().Format(timeLayout), result, id)
	if err != nil {
		return fmt.Errorf("mark fired: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReminder(sc scanner) (*Reminder, error) {
	var (
		r               Reminder
		at, created     string
		status          string
		firedAt, result sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.ChatID, &r.Message, &at, &status, &created, &firedAt, &result); err != nil {
		return nil, err
	}
	var err error
	if r.At, err = time.Parse(timeLayout, at); err != nil {
		return nil, fmt.Errorf("reminder %s: parse at: %w", r.ID, err)
	}
	if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("reminder %s: parse created_at: %w", r.ID, err)
	}
	if firedAt.Valid {
		t, err := time.Parse(timeLayout, firedAt.String)
		if err == nil {
			r.FiredAt = &t
		}
	}
	r.Status = Status(status)
	r.Result = result.String
	return &r, nil
}
