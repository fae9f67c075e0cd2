package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrPastTime is returned by Schedule for times not strictly in the future.
var ErrPastTime = errors.New("reminder time is not in the future")

// PastTimeMessage is the user-facing rejection for ErrPastTime.
const PastTimeMessage = "You can't set a reminder in the past."

// CatchUpWindow is how late a reminder may still be delivered after
// downtime. Older overdue reminders are marked missed.
const CatchUpWindow = 24 * time.Hour

// confirmLayout renders reminder times in confirmations.
const confirmLayout = "January 02 at 03:04 PM MST"

// DeliverFunc sends text to a chat.
type DeliverFunc func(ctx context.Context, chatID int64, text string) error

// Scheduler manages reminder timers and delivery.
type Scheduler struct {
	logger  *slog.Logger
	store   *Store
	deliver DeliverFunc
	loc     *time.Location

	// now is replaceable in tests.
	now func() time.Time

	mu      sync.Mutex
	timers  map[string]*time.Timer // reminderID -> timer
	running bool
	wg      sync.WaitGroup
}

// New creates a new scheduler. Confirmation times are rendered in loc.
func New(logger *slog.Logger, store *Store, deliver DeliverFunc, loc *time.Location) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		logger:  logger,
		store:   store,
		deliver: deliver,
		loc:     loc,
		now:     time.Now,
		timers:  make(map[string]*time.Timer),
	}
}

// Location returns the zone reminders are interpreted in.
func (s *Scheduler) Location() *time.Location { return s.loc }

// Now returns the current time in the scheduler's zone.
func (s *Scheduler) Now() time.Time { return s.now().In(s.loc) }

// Start loads pending reminders and arms their timers. Overdue reminders
// inside CatchUpWindow fire immediately; older ones are marked missed.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	pending, err := s.store.Pending()
	if err != nil {
		return err
	}

	now := s.now()
	for _, r := range pending {
		if now.Sub(r.At) > CatchUpWindow {
			if err := s.store.MarkFired(r.ID, StatusMissed, now, "missed delivery window"); err != nil {
				s.logger.Error("failed to mark reminder missed", "id", r.ID, "error", err)
			}
			s.logger.Info("skipped stale reminder", "id", r.ID, "at", r.At)
			continue
		}
		s.arm(r)
	}

	s.logger.Debug("scheduler started", "pending", len(pending))
	return nil
}

// Stop cancels all timers and waits for in-flight deliveries.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Schedule persists a one-shot reminder and arms its timer. It returns
// ErrPastTime when at is not strictly after now. A reminder with the same
// chat, message and time replaces the earlier one.
func (s *Scheduler) Schedule(chatID int64, at time.Time, message string) (*Reminder, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errors.New("reminder message is empty")
	}
	if !at.After(s.now()) {
		return nil, ErrPastTime
	}

	r := &Reminder{
		ID:      ReminderID(chatID, message, at),
		ChatID:  chatID,
		Message: message,
		At:      at,
	}
	if err := s.store.Save(r); err != nil {
		return nil, err
	}
	s.arm(r)

	s.logger.Info("reminder scheduled", "id", r.ID, "chat", chatID, "at", at)
	return r, nil
}

// ScheduleOnce is Schedule with a user-facing result: a confirmation on
// success, the rejection text for past times, or a generic failure.
func (s *Scheduler) ScheduleOnce(chatID int64, at time.Time, message string) string {
	r, err := s.Schedule(chatID, at, message)
	switch {
	case errors.Is(err, ErrPastTime):
		return PastTimeMessage
	case err != nil:
		s.logger.Warn("reminder scheduling failed", "error", err)
		return "Something went wrong while setting the reminder."
	}
	return s.Confirmation(r)
}

// Confirmation renders the success text for r.
func (s *Scheduler) Confirmation(r *Reminder) string {
	return fmt.Sprintf("Reminder set for %s", r.At.In(s.loc).Format(confirmLayout))
}

// arm sets up a timer for r, replacing any existing one.
func (s *Scheduler) arm(r *Reminder) {
	delay := r.At.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, exists := s.timers[r.ID]; exists {
		timer.Stop()
	}
	id := r.ID
	s.timers[id] = time.AfterFunc(delay, func() {
		s.fire(id)
	})

	s.logger.Debug("reminder armed", "id", id, "delay", delay)
}

// fire delivers a reminder and records the outcome.
func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	r, err := s.store.Get(id)
	if err != nil {
		s.logger.Error("failed to load reminder", "id", id, "error", err)
		return
	}
	if r == nil || r.Status != StatusPending {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status, result := StatusDelivered, ""
	if s.deliver == nil {
		status, result = StatusFailed, "no delivery channel"
	} else if err := s.deliver(ctx, r.ChatID, FormatReminder(r.Message)); err != nil {
		status, result = StatusFailed, err.Error()
		s.logger.Error("reminder delivery failed", "id", id, "chat", r.ChatID, "error", err)
	}

	if err := s.store.MarkFired(id, status, s.now(), result); err != nil {
		s.logger.Error("failed to record reminder", "id", id, "error", err)
	}
	s.logger.Info("reminder fired", "id", id, "status", status)
}

// FormatReminder renders the delivered reminder text.
func FormatReminder(message string) string {
	return "⏰ Reminder: " + message
}

// Stats returns scheduler statistics.
func (s *Scheduler) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, _ := s.store.Pending()
	return map[string]any{
		"running":       s.running,
		"pending":       len(pending),
		"active_timers": len(s.timers),
	}
}
