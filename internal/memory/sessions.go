// Package memory provides conversation sessions, the workspace files
// that hold long-term memory, and the gate that decides what to remember.
package memory

import (
	"sync"
	"time"

	"github.com/nugget/krish/internal/llm"
)

// Session is one chat's private conversation history. Entries are
// appended in call order and the oldest are evicted past the cap.
type Session struct {
	ID        string
	CreatedAt time.Time

	turn sync.Mutex // held for the duration of one turn

	mu       sync.Mutex
	messages []llm.Message
	max      int
}

// Lock serializes turns on the session.
func (s *Session) Lock() { s.turn.Lock() }

// Unlock ends the current turn.
func (s *Session) Unlock() { s.turn.Unlock() }

// Append adds an entry and trims the history to the cap.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, llm.Message{Role: role, Content: content})
	if len(s.messages) > s.max {
		trimmed := make([]llm.Message, s.max)
		copy(trimmed, s.messages[len(s.messages)-s.max:])
		s.messages = trimmed
	}
}

// Messages returns a copy of the history.
func (s *Session) Messages() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]llm.Message, len(s.messages))
	copy(msgs, s.messages)
	return msgs
}

// Len returns the number of entries held.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Sessions holds every live session keyed by chat.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	max      int
}

// NewSessions creates a session store capping each history at
// maxMessages entries.
func NewSessions(maxMessages int) *Sessions {
	if maxMessages <= 0 {
		maxMessages = 20
	}
	return &Sessions{
		sessions: make(map[string]*Session),
		max:      maxMessages,
	}
}

// Get returns the session for key, creating it on first use.
func (s *Sessions) Get(key string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		sess = &Session{ID: key, CreatedAt: time.Now(), max: s.max}
		s.sessions[key] = sess
	}
	return sess
}

// Clear tears down the session for key. A turn already running on it
// finishes against the detached history.
func (s *Sessions) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

// Stats returns session statistics.
func (s *Sessions) Stats() map[string]any {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	total := 0
	for _, sess := range sessions {
		total += sess.Len()
	}
	return map[string]any{
		"sessions":     len(sessions),
		"messages":     total,
		"max_per_chat": s.max,
	}
}
