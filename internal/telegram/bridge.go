package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nugget/krish/internal/agent"
)

// handleTimeout bounds how long a single inbound message may be
// processed (agent turn + reply send).
const handleTimeout = 5 * time.Minute

// rateWindow is the sliding window for per-sender rate limiting.
const rateWindow = time.Minute

// cleanupInterval controls how often stale rate-limit entries are
// evicted.
const cleanupInterval = 10 * time.Minute

// pollTimeout is the long-poll timeout in seconds.
const pollTimeout = 30

// Command replies.
const (
	helpText = "Here's what I can do:\n\n" +
		"🔍 *Web Search* — ask me anything current\n" +
		"💻 *GitHub* — list repos, create issues\n" +
		"📝 *Notion* — append notes, create pages\n" +
		"⏰ *Reminders* — 'remind me at 7pm to...'\n" +
		"📢 *Send messages* — 'send to the group: ...'\n\n" +
		"Commands:\n" +
		"/help — show this message\n" +
		"/memory — show what I remember about you\n" +
		"/clear — clear our conversation history"
	emptyMemoryText = "I don't have anything stored in memory yet."
	clearedText     = "Conversation history cleared!"
)

// Runner runs one conversation turn. [agent.Handler] satisfies it.
type Runner interface {
	Handle(ctx context.Context, turn agent.Turn, deliver agent.DeliverFunc) string
}

// MemoryReader returns the long-term memory file. [memory.Workspace]
// satisfies it.
type MemoryReader interface {
	Memory() string
}

// SessionClearer tears down a conversation. [memory.Sessions]
// satisfies it.
type SessionClearer interface {
	Clear(key string)
}

// BridgeConfig holds the dependencies for a Bridge.
type BridgeConfig struct {
	Client   *Client
	Runner   Runner
	Memory   MemoryReader
	Sessions SessionClearer
	// Name is the assistant name used in the /start greeting.
	Name string
	// AllowFrom restricts senders by user ID; empty allows everyone.
	AllowFrom []int64
	RateLimit int // per sender per minute; 0 = unlimited
	Logger    *slog.Logger
}

// Bridge receives Telegram messages, answers commands, routes text
// through the agent and sends replies back to the originating chat.
type Bridge struct {
	client    *Client
	runner    Runner
	memory    MemoryReader
	sessions  SessionClearer
	name      string
	allowFrom map[int64]bool
	rateLimit int
	logger    *slog.Logger

	wg sync.WaitGroup

	// queues holds pending messages per chat; a key is present while
	// that chat's worker runs.
	qmu    sync.Mutex
	queues map[int64][]*tgbotapi.Message

	mu          sync.Mutex
	senderTimes map[int64][]time.Time
	lastCleanup time.Time
}

// NewBridge creates a Telegram bridge.
func NewBridge(cfg BridgeConfig) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "Krish"
	}
	allow := make(map[int64]bool, len(cfg.AllowFrom))
	for _, id := range cfg.AllowFrom {
		allow[id] = true
	}
	return &Bridge{
		client:      cfg.Client,
		runner:      cfg.Runner,
		memory:      cfg.Memory,
		sessions:    cfg.Sessions,
		name:        name,
		allowFrom:   allow,
		rateLimit:   cfg.RateLimit,
		logger:      logger,
		queues:      make(map[int64][]*tgbotapi.Message),
		senderTimes: make(map[int64][]time.Time),
	}
}

// SessionKey is the conversation key for a chat.
func SessionKey(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}

// Start long-polls for updates until ctx is cancelled. Each chat's
// messages are handled in arrival order on a worker of their own, so
// chats run concurrently. It returns after queued messages finish.
func (b *Bridge) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.client.bot.GetUpdatesChan(u)

	b.logger.Info("telegram bridge started")
	defer func() {
		b.client.bot.StopReceivingUpdates()
		b.wg.Wait()
		b.logger.Info("telegram bridge stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				b.logger.Info("telegram update channel closed, bridge stopping")
				return
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			b.enqueue(ctx, update.Message)
		}
	}
}

// enqueue appends msg to its chat's queue and starts a worker when the
// chat is idle.
func (b *Bridge) enqueue(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	b.qmu.Lock()
	pending, busy := b.queues[chatID]
	b.queues[chatID] = append(pending, msg)
	b.qmu.Unlock()
	if busy {
		return
	}
	b.wg.Add(1)
	go b.drain(ctx, chatID)
}

// drain handles chatID's queued messages in order until the queue is
// empty.
func (b *Bridge) drain(ctx context.Context, chatID int64) {
	defer b.wg.Done()
	for {
		b.qmu.Lock()
		pending := b.queues[chatID]
		if len(pending) == 0 {
			delete(b.queues, chatID)
			b.qmu.Unlock()
			return
		}
		msg := pending[0]
		b.queues[chatID] = pending[1:]
		b.qmu.Unlock()

		b.handleMessage(ctx, msg)
	}
}

// handleMessage processes one inbound message.
func (b *Bridge) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	sender := msg.From.ID
	chatID := msg.Chat.ID

	if !b.allowed(sender) {
		b.logger.Warn("telegram message from unlisted sender rejected",
			"sender", sender,
			"username", msg.From.UserName,
		)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		b.logger.Debug("telegram ignoring non-text message", "chat", chatID)
		return
	}

	if !b.allowSender(sender) {
		b.logger.Warn("telegram message rate-limited", "sender", sender)
		return
	}

	b.logger.Info("telegram message received",
		"chat", chatID,
		"sender", sender,
		"message_len", len(text),
	)

	if err := b.client.SendTyping(ctx, chatID); err != nil {
		b.logger.Debug("telegram typing indicator failed", "error", err)
	}

	b.runner.Handle(ctx, agent.Turn{
		SessionID: SessionKey(chatID),
		ChatID:    chatID,
		Text:      text,
	}, func(ctx context.Context, reply string) error {
		return b.client.Send(ctx, chatID, reply)
	})
}

func (b *Bridge) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	var (
		reply     string
		parseMode string
	)

	switch msg.Command() {
	case "start":
		reply = fmt.Sprintf("Hey! I'm %s, your personal AI assistant.\n\n"+
			"Just send me a message and let's talk. Try /help to see what I can do.", b.name)
	case "help":
		reply, parseMode = helpText, tgbotapi.ModeMarkdown
	case "memory":
		reply = emptyMemoryText
		if b.memory != nil {
			if mem := b.memory.Memory(); mem != "" {
				reply = "Here's what I remember:\n\n" + mem
			}
		}
	case "clear":
		if b.sessions != nil {
			b.sessions.Clear(SessionKey(chatID))
		}
		reply = clearedText
	default:
		b.logger.Debug("telegram ignoring unknown command", "command", msg.Command(), "chat", chatID)
		return
	}

	b.logger.Info("telegram command", "command", msg.Command(), "chat", chatID)
	if err := b.client.send(ctx, chatID, reply, parseMode); err != nil {
		b.logger.Error("telegram command reply failed",
			"command", msg.Command(),
			"chat", chatID,
			"error", err,
		)
	}
}

func (b *Bridge) allowed(sender int64) bool {
	return len(b.allowFrom) == 0 || b.allowFrom[sender]
}

// allowSender checks whether the sender is within the per-minute rate
// limit. Returns true if the message should be processed.
func (b *Bridge) allowSender(sender int64) bool {
	if b.rateLimit <= 0 {
		return true
	}

	now := time.Now()
	cutoff := now.Add(-rateWindow)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeCleanupLocked(now)

	timestamps := b.senderTimes[sender]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= b.rateLimit {
		b.senderTimes[sender] = valid
		return false
	}

	b.senderTimes[sender] = append(valid, now)
	return true
}

// maybeCleanupLocked evicts stale sender entries. Must be called with
// b.mu held.
func (b *Bridge) maybeCleanupLocked(now time.Time) {
	if now.Sub(b.lastCleanup) < cleanupInterval {
		return
	}
	b.lastCleanup = now

	cutoff := now.Add(-2 * rateWindow)
	for sender, timestamps := range b.senderTimes {
		if len(timestamps) == 0 || timestamps[len(timestamps)-1].Before(cutoff) {
			delete(b.senderTimes, sender)
		}
	}
}
