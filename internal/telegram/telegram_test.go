package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nugget/krish/internal/agent"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	sendErr  func(tgbotapi.MessageConfig) error
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeBot) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	if f.sendErr != nil {
		if err := f.sendErr(msg); err != nil {
			return tgbotapi.Message{}, err
		}
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "krish_bot"}
}

func (f *fakeBot) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

type fakeRunner struct {
	mu    sync.Mutex
	turns []agent.Turn
	reply string
	// gate, when set, holds each turn until a value is received.
	gate chan struct{}
}

func (r *fakeRunner) Handle(ctx context.Context, turn agent.Turn, deliver agent.DeliverFunc) string {
	r.mu.Lock()
	r.turns = append(r.turns, turn)
	r.mu.Unlock()
	if r.gate != nil {
		<-r.gate
	}
	if deliver != nil {
		_ = deliver(ctx, r.reply)
	}
	return r.reply
}

type fakeMemory string

func (m fakeMemory) Memory() string { return string(m) }

type fakeSessions struct {
	cleared []string
}

func (s *fakeSessions) Clear(key string) { s.cleared = append(s.cleared, key) }

func textMessage(chatID, from int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: from, UserName: "user"},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}
}

func commandMessage(chatID, from int64, cmd string) *tgbotapi.Message {
	msg := textMessage(chatID, from, cmd)
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	return msg
}

func TestSplitMessage(t *testing.T) {
	long := strings.Repeat("a", 30) + "\n" + strings.Repeat("b", 30)
	tests := []struct {
		name string
		text string
		max  int
		want []string
	}{
		{name: "blank", text: "  \n", max: 10, want: nil},
		{name: "short", text: "hello", max: 10, want: []string{"hello"}},
		{name: "newline split", text: long, max: 40, want: []string{strings.Repeat("a", 30), strings.Repeat("b", 30)}},
		{name: "hard split", text: strings.Repeat("x", 25), max: 10, want: []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}},
		{name: "rune boundary", text: "ééé", max: 3, want: []string{"é", "é", "é"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitMessage(tt.text, tt.max)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("SplitMessage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_SendChunks(t *testing.T) {
	bot := newFakeBot()
	c := NewClient(bot, quietLogger())

	text := strings.Repeat("line of text\n", 400) // > MaxMessageLen
	if err := c.Send(context.Background(), 42, text); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(bot.sent) < 2 {
		t.Fatalf("sent %d messages, want at least 2", len(bot.sent))
	}
	for _, m := range bot.sent {
		if m.ChatID != 42 || len(m.Text) > MaxMessageLen {
			t.Errorf("chunk chat=%d len=%d", m.ChatID, len(m.Text))
		}
	}
}

func TestClient_SendErrors(t *testing.T) {
	bot := newFakeBot()
	bot.sendErr = func(tgbotapi.MessageConfig) error { return errors.New("chat not found") }
	c := NewClient(bot, quietLogger())

	if err := c.Send(context.Background(), 1, "hi"); err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("Send error = %v", err)
	}
	if err := c.Send(context.Background(), 1, "   "); err == nil {
		t.Error("Send of blank text should fail")
	}
}

func TestClient_MarkdownFallsBackToPlain(t *testing.T) {
	bot := newFakeBot()
	bot.sendErr = func(m tgbotapi.MessageConfig) error {
		if m.ParseMode != "" {
			return errors.New("can't parse entities")
		}
		return nil
	}
	c := NewClient(bot, quietLogger())

	if err := c.send(context.Background(), 1, "*bold", tgbotapi.ModeMarkdown); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(bot.sent) != 1 || bot.sent[0].ParseMode != "" {
		t.Errorf("sent = %+v", bot.sent)
	}
}

func TestDial(t *testing.T) {
	bot := newFakeBot()
	var gotToken string
	factory := func(token, endpoint string, _ *http.Client) (Bot, error) {
		gotToken = token
		return bot, nil
	}
	if _, err := Dial("", factory, nil, quietLogger()); err == nil {
		t.Error("Dial without token should fail")
	}
	c, err := Dial("123:abc", factory, nil, quietLogger())
	if err != nil || c == nil {
		t.Fatalf("Dial = %v, %v", c, err)
	}
	if gotToken != "123:abc" {
		t.Errorf("factory token = %q", gotToken)
	}

	failing := func(string, string, *http.Client) (Bot, error) { return nil, errors.New("unauthorized") }
	if _, err := Dial("x", failing, nil, quietLogger()); err == nil {
		t.Error("Dial should surface factory errors")
	}
}

func newTestBridge(bot *fakeBot, runner *fakeRunner, sessions *fakeSessions, mem MemoryReader, allow []int64, rate int) *Bridge {
	return NewBridge(BridgeConfig{
		Client:    NewClient(bot, quietLogger()),
		Runner:    runner,
		Memory:    mem,
		Sessions:  sessions,
		AllowFrom: allow,
		RateLimit: rate,
		Logger:    quietLogger(),
	})
}

func TestBridge_RoutesTextThroughRunner(t *testing.T) {
	bot := newFakeBot()
	runner := &fakeRunner{reply: "Hello!"}
	b := newTestBridge(bot, runner, &fakeSessions{}, nil, nil, 0)

	b.handleMessage(context.Background(), textMessage(99, 7, "  what's up  "))

	if len(runner.turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(runner.turns))
	}
	turn := runner.turns[0]
	if turn.SessionID != "tg:99" || turn.ChatID != 99 || turn.Text != "what's up" {
		t.Errorf("turn = %+v", turn)
	}
	if got := bot.sentTexts(); len(got) != 1 || got[0] != "Hello!" {
		t.Errorf("sent = %v", got)
	}
	if len(bot.requests) != 1 {
		t.Errorf("typing requests = %d, want 1", len(bot.requests))
	}
}

func TestBridge_AllowFrom(t *testing.T) {
	tests := []struct {
		name   string
		allow  []int64
		sender int64
		want   int
	}{
		{name: "open", allow: nil, sender: 5, want: 1},
		{name: "listed", allow: []int64{5, 6}, sender: 6, want: 1},
		{name: "unlisted", allow: []int64{5}, sender: 9, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := newFakeBot()
			runner := &fakeRunner{reply: "ok"}
			b := newTestBridge(bot, runner, &fakeSessions{}, nil, tt.allow, 0)

			b.handleMessage(context.Background(), textMessage(1, tt.sender, "hello there"))

			if len(runner.turns) != tt.want {
				t.Errorf("turns = %d, want %d", len(runner.turns), tt.want)
			}
		})
	}
}

func TestBridge_Commands(t *testing.T) {
	tests := []struct {
		name        string
		cmd         string
		memory      MemoryReader
		wantContain string
		wantCleared bool
	}{
		{name: "start", cmd: "/start", wantContain: "I'm Krish"},
		{name: "help", cmd: "/help", wantContain: "/memory"},
		{name: "memory empty", cmd: "/memory", memory: fakeMemory(""), wantContain: emptyMemoryText},
		{name: "memory set", cmd: "/memory", memory: fakeMemory("- Works at Acme"), wantContain: "Here's what I remember:\n\n- Works at Acme"},
		{name: "clear", cmd: "/clear", wantContain: clearedText, wantCleared: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := newFakeBot()
			runner := &fakeRunner{}
			sessions := &fakeSessions{}
			b := newTestBridge(bot, runner, sessions, tt.memory, nil, 0)

			b.handleMessage(context.Background(), commandMessage(55, 1, tt.cmd))

			if len(runner.turns) != 0 {
				t.Errorf("command reached the runner")
			}
			got := bot.sentTexts()
			if len(got) != 1 || !strings.Contains(got[0], tt.wantContain) {
				t.Errorf("reply = %q, want it to contain %q", got, tt.wantContain)
			}
			if tt.wantCleared != (len(sessions.cleared) == 1 && sessions.cleared[0] == "tg:55") {
				t.Errorf("cleared = %v", sessions.cleared)
			}
		})
	}
}

func TestBridge_UnknownCommandIgnored(t *testing.T) {
	bot := newFakeBot()
	runner := &fakeRunner{}
	b := newTestBridge(bot, runner, &fakeSessions{}, nil, nil, 0)

	b.handleMessage(context.Background(), commandMessage(1, 1, "/dance"))

	if len(bot.sent) != 0 || len(runner.turns) != 0 {
		t.Errorf("sent = %v, turns = %v", bot.sent, runner.turns)
	}
}

func TestBridge_RateLimit(t *testing.T) {
	bot := newFakeBot()
	runner := &fakeRunner{reply: "ok"}
	b := newTestBridge(bot, runner, &fakeSessions{}, nil, nil, 2)

	for range 3 {
		b.handleMessage(context.Background(), textMessage(1, 8, "hello there"))
	}
	b.handleMessage(context.Background(), textMessage(2, 9, "hello there"))

	if len(runner.turns) != 3 {
		t.Errorf("turns = %d, want 3 (two from sender 8, one from sender 9)", len(runner.turns))
	}
}

func (r *fakeRunner) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, t := range r.turns {
		out = append(out, t.Text)
	}
	return out
}

func TestBridge_EnqueueKeepsChatOrder(t *testing.T) {
	bot := newFakeBot()
	runner := &fakeRunner{reply: "ok", gate: make(chan struct{})}
	b := newTestBridge(bot, runner, &fakeSessions{}, nil, nil, 0)
	ctx := context.Background()

	// The first turn blocks in the runner while the rest queue behind it.
	b.enqueue(ctx, textMessage(5, 5, "first"))
	waitFor(t, func() bool { return len(runner.texts()) == 1 })
	for _, text := range []string{"second", "third", "fourth"} {
		b.enqueue(ctx, textMessage(5, 5, text))
	}
	b.enqueue(ctx, textMessage(6, 6, "other chat"))
	waitFor(t, func() bool { return len(runner.texts()) == 2 })

	// Four turns on chat 5 and one on chat 6.
	for range 5 {
		runner.gate <- struct{}{}
	}
	b.wg.Wait()

	var chat5 []string
	for _, text := range runner.texts() {
		if text != "other chat" {
			chat5 = append(chat5, text)
		}
	}
	if strings.Join(chat5, ",") != "first,second,third,fourth" {
		t.Errorf("chat 5 handled in order %v", chat5)
	}
	b.qmu.Lock()
	defer b.qmu.Unlock()
	if len(b.queues) != 0 {
		t.Errorf("queues left behind: %v", b.queues)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not met")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestBridge_StartStopsOnCancel(t *testing.T) {
	bot := newFakeBot()
	runner := &fakeRunner{reply: "pong"}
	b := newTestBridge(bot, runner, &fakeSessions{}, nil, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()

	bot.updates <- tgbotapi.Update{Message: textMessage(3, 3, "ping please")}
	bot.updates <- tgbotapi.Update{} // no message

	deadline := time.After(2 * time.Second)
	for {
		if len(bot.sentTexts()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("reply not sent")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	bot.mu.Lock()
	defer bot.mu.Unlock()
	if !bot.stopped {
		t.Error("StopReceivingUpdates not called")
	}
}
