package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nugget/krish/internal/forge"
	"github.com/nugget/krish/internal/scheduler"
	"github.com/nugget/krish/internal/search"
)

type fakeSearcher struct {
	results []search.Result
	err     error
	opts    search.Options
}

func (f *fakeSearcher) Search(_ context.Context, _ string, opts search.Options) ([]search.Result, error) {
	f.opts = opts
	return f.results, f.err
}

func TestWebSearchTool(t *testing.T) {
	fs := &fakeSearcher{results: []search.Result{{Title: "Sunny", URL: "https://wx", Snippet: "31C"}}}
	r := NewRegistry(0, quietLogger())
	r.RegisterSearch(fs, 3)

	got := r.Execute(context.Background(), WebSearch, map[string]any{"query": "weather"})
	if got != "1. Sunny\n 31C\n https://wx" || fs.opts.Count != 3 {
		t.Errorf("result = %q, opts = %+v", got, fs.opts)
	}

	if got := r.Execute(context.Background(), WebSearch, map[string]any{}); ClassifyResult(got) != Failure {
		t.Errorf("missing query = %q, want failure", got)
	}

	fs.err = errors.New("quota")
	if got := r.Execute(context.Background(), WebSearch, map[string]any{"query": "x"}); got != "Error: search failed: quota" {
		t.Errorf("provider failure = %q", got)
	}
}

type fakeRepos struct {
	repos   []forge.Repo
	created [3]string
	err     error
}

func (f *fakeRepos) ListRepos(context.Context) ([]forge.Repo, error) { return f.repos, f.err }
func (f *fakeRepos) CreateIssue(_ context.Context, repo, title, body string) (*forge.Issue, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = [3]string{repo, title, body}
	return &forge.Issue{Number: 1, URL: "https://github.com/a/" + repo + "/issues/1"}, nil
}

func TestGitHubTools(t *testing.T) {
	gh := &fakeRepos{repos: []forge.Repo{{Name: "krish", Description: "bot"}}}
	r := NewRegistry(0, quietLogger())
	r.RegisterGitHub(gh)
	ctx := context.Background()

	if got := r.Execute(ctx, GitHubListRepos, nil); got != "- krish: bot" {
		t.Errorf("list = %q", got)
	}
	got := r.Execute(ctx, GitHubCreateIssue, map[string]any{"repo": "krish", "title": "Bug", "body": "details"})
	if got != "Issue created: https://github.com/a/krish/issues/1" || gh.created != [3]string{"krish", "Bug", "details"} {
		t.Errorf("create = %q, args = %v", got, gh.created)
	}

	gh.err = errors.New("401 Bad credentials")
	if got := r.Execute(ctx, GitHubListRepos, nil); ClassifyResult(got) != Failure {
		t.Errorf("list failure = %q", got)
	}
}

type fakeNotes struct {
	appended string
	err      error
}

func (f *fakeNotes) Append(_ context.Context, content string) error {
	f.appended = content
	return f.err
}
func (f *fakeNotes) CreatePage(_ context.Context, title, _ string) (string, error) {
	return "https://notion.so/" + title, f.err
}
func (f *fakeNotes) PageURL() string { return "notion.so/abc" }

func TestNotionTools(t *testing.T) {
	n := &fakeNotes{}
	r := NewRegistry(0, quietLogger())
	r.RegisterNotion(n)
	ctx := context.Background()

	got := r.Execute(ctx, NotionAppend, map[string]any{"content": "buy milk"})
	if got != "Saved to your notes page. You can find it at notion.so/abc" || n.appended != "buy milk" {
		t.Errorf("append = %q (%q)", got, n.appended)
	}
	if got := r.Execute(ctx, NotionCreatePage, map[string]any{"title": "Trip", "content": "x"}); got != "Notion page created: https://notion.so/Trip" {
		t.Errorf("create = %q", got)
	}
	n.err = errors.New("status 400")
	if got := r.Execute(ctx, NotionAppend, map[string]any{"content": "x"}); ClassifyResult(got) != Failure {
		t.Errorf("append failure = %q", got)
	}
}

type fakeParser struct {
	req scheduler.Request
	err error
}

func (f *fakeParser) Parse(context.Context, string, time.Time) (scheduler.Request, error) {
	return f.req, f.err
}

type fakeScheduler struct {
	now    time.Time
	chatID int64
	at     time.Time
	msg    string
}

func (f *fakeScheduler) Now() time.Time { return f.now }
func (f *fakeScheduler) ScheduleOnce(chatID int64, at time.Time, message string) string {
	f.chatID, f.at, f.msg = chatID, at, message
	if !at.After(f.now) {
		return scheduler.PastTimeMessage
	}
	return "Reminder set"
}

func TestSetReminderTool(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := &fakeParser{req: scheduler.Request{At: now.Add(time.Hour), Message: "call mom"}}
	s := &fakeScheduler{now: now}
	r := NewRegistry(0, quietLogger())
	r.RegisterReminders(p, s)

	ctx := WithChatID(context.Background(), 42)
	args := map[string]any{"reminder_text": "call mom in an hour"}

	if got := r.Execute(ctx, SetReminder, args); got != "Reminder set" || s.chatID != 42 || s.msg != "call mom" {
		t.Errorf("set = %q, scheduled %d %q", got, s.chatID, s.msg)
	}

	p.req.At = now.Add(-time.Hour)
	if got := r.Execute(ctx, SetReminder, args); got != scheduler.PastTimeMessage {
		t.Errorf("past = %q", got)
	}

	p.err = scheduler.ErrNoTime
	if got := r.Execute(ctx, SetReminder, args); got != UnparsedReminderMessage {
		t.Errorf("unparsed = %q", got)
	}

	if got := r.Execute(context.Background(), SetReminder, args); ClassifyResult(got) != Failure {
		t.Errorf("no chat = %q, want failure", got)
	}
}

type fakeMessenger struct {
	chatID int64
	text   string
	err    error
}

func (f *fakeMessenger) Send(_ context.Context, chatID int64, text string) error {
	f.chatID, f.text = chatID, text
	return f.err
}

func TestSendMessageTool(t *testing.T) {
	m := &fakeMessenger{}
	r := NewRegistry(0, quietLogger())
	r.RegisterMessaging(m, map[string]int64{"Me": 1, "group": -100})
	ctx := context.Background()

	got := r.Execute(ctx, SendTelegramMessage, map[string]any{"recipient": "Group", "message": "standup in 5"})
	if !strings.HasPrefix(got, "Message successfully sent to Group.") || m.chatID != -100 || m.text != "standup in 5" {
		t.Errorf("send = %q, to %d %q", got, m.chatID, m.text)
	}

	got = r.Execute(ctx, SendTelegramMessage, map[string]any{"recipient": "boss", "message": "hi"})
	if got != "Unknown recipient 'boss'. Known chats: group, me" {
		t.Errorf("unknown recipient = %q", got)
	}

	m.err = errors.New("bot was blocked")
	got = r.Execute(ctx, SendTelegramMessage, map[string]any{"recipient": "me", "message": "hi"})
	if got != "Error: failed to send message: bot was blocked" {
		t.Errorf("send failure = %q", got)
	}
}
