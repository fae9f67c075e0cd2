package memory

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Workspace file names.
const (
	PersonaFile = "SOUL.md"
	ProfileFile = "USER.md"
	MemoryFile  = "MEMORY.md"
	LogsDir     = "logs"
)

const (
	logDateLayout = "2006-01-02"
	logTimeLayout = "15:04:05"
)

// Workspace is the file-backed store for the persona, the user profile,
// the append-only memory file and the daily conversation logs.
type Workspace struct {
	dir        string
	loc        *time.Location
	recentDays int
	logger     *slog.Logger

	// now is replaceable in tests.
	now func() time.Time

	mu sync.Mutex // serializes appends
}

// NewWorkspace opens the workspace rooted at dir, creating the logs
// directory if needed. Log timestamps use loc.
func NewWorkspace(dir string, loc *time.Location, recentDays int, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	if recentDays <= 0 {
		recentDays = 1
	}
	if err := os.MkdirAll(filepath.Join(dir, LogsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	return &Workspace{
		dir:        dir,
		loc:        loc,
		recentDays: recentDays,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Dir returns the workspace root.
func (w *Workspace) Dir() string { return w.dir }

// read returns a workspace file's content, or "" if it is missing or
// unreadable.
func (w *Workspace) read(name string) string {
	data, err := os.ReadFile(filepath.Join(w.dir, name))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("workspace read failed", "file", name, "error", err)
		}
		return ""
	}
	return string(data)
}

// Persona returns SOUL.md.
func (w *Workspace) Persona() string { return strings.TrimSpace(w.read(PersonaFile)) }

// Profile returns USER.md.
func (w *Workspace) Profile() string { return strings.TrimSpace(w.read(ProfileFile)) }

// Memory returns the whole of MEMORY.md.
func (w *Workspace) Memory() string { return strings.TrimSpace(w.read(MemoryFile)) }

// AppendFact appends text verbatim to MEMORY.md on a new line.
func (w *Workspace) AppendFact(text string) error {
	return w.appendTo(MemoryFile, "\n"+text)
}

// AppendLog appends one "[HH:MM:SS] role: content" line to today's log
// and returns the entry as it will be parsed back.
func (w *Workspace) AppendLog(role, content string) (LogEntry, error) {
	now := w.now().In(w.loc)
	entry := LogEntry{
		Date:    now.Format(logDateLayout),
		Time:    now.Format(logTimeLayout),
		Role:    role,
		Content: strings.TrimSpace(content),
	}
	name := filepath.Join(LogsDir, entry.Date+".md")
	return entry, w.appendTo(name, fmt.Sprintf("\n[%s] %s: %s", entry.Time, role, content))
}

func (w *Workspace) appendTo(name, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(w.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", name, err)
	}
	return f.Close()
}

// LogDates returns the dates of all daily logs, oldest first.
func (w *Workspace) LogDates() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(w.dir, LogsDir))
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	var dates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".md" {
			continue
		}
		date := strings.TrimSuffix(name, ".md")
		if _, err := time.Parse(logDateLayout, date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

// ReadLog returns the raw content of the log for date.
func (w *Workspace) ReadLog(date string) (string, error) {
	data, err := os.ReadFile(filepath.Join(w.dir, LogsDir, date+".md"))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RecentLogs returns the most recent daily logs, each introduced by a
// "--- date ---" line, keeping only the last maxChars characters.
func (w *Workspace) RecentLogs(maxChars int) string {
	dates, err := w.LogDates()
	if err != nil {
		w.logger.Warn("recent logs unavailable", "error", err)
		return ""
	}
	if len(dates) > w.recentDays {
		dates = dates[len(dates)-w.recentDays:]
	}

	var sb strings.Builder
	for _, date := range dates {
		content, err := w.ReadLog(date)
		if err != nil {
			w.logger.Warn("log read failed", "date", date, "error", err)
			continue
		}
		fmt.Fprintf(&sb, "\n\n--- %s ---\n%s", date, content)
	}
	return tailChars(sb.String(), maxChars)
}

func tailChars(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[len(r)-max:])
}
