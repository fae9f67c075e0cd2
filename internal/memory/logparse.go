package memory

import (
	"regexp"
	"strings"
)

// LogEntry is one line of a daily log.
type LogEntry struct {
	Date    string
	Time    string
	Role    string
	Content string
}

// ID identifies the entry across re-indexing runs.
func (e LogEntry) ID() string {
	return e.Date + "_" + e.Time + "_" + e.Role
}

var logLine = regexp.MustCompile(`^\[([^\]]+)\] ([^:]+):(.*)$`)

// ParseLog splits a daily log into entries. Lines that are not of the
// form "[time] role: content" are ignored.
func ParseLog(date, content string) []LogEntry {
	var entries []LogEntry
	for _, line := range strings.Split(content, "\n") {
		m := logLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		entries = append(entries, LogEntry{
			Date:    date,
			Time:    m[1],
			Role:    strings.TrimSpace(m[2]),
			Content: strings.TrimSpace(m[3]),
		})
	}
	return entries
}
