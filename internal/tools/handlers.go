package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nugget/krish/internal/forge"
	"github.com/nugget/krish/internal/scheduler"
	"github.com/nugget/krish/internal/search"
)

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error)
}

// RegisterSearch binds web_search.
func (r *Registry) RegisterSearch(s Searcher, count int) {
	r.mustBind(WebSearch, func(ctx context.Context, args map[string]any) (string, error) {
		query := strings.TrimSpace(stringArg(args, "query"))
		if query == "" {
			return "", errors.New("search failed: query is required")
		}
		results, err := s.Search(ctx, query, search.Options{Count: count})
		if err != nil {
			return "", fmt.Errorf("search failed: %w", err)
		}
		return search.FormatResults(results), nil
	})
}

// Repos is the code-hosting backend.
type Repos interface {
	ListRepos(ctx context.Context) ([]forge.Repo, error)
	CreateIssue(ctx context.Context, repo, title, body string) (*forge.Issue, error)
}

// RegisterGitHub binds the repository tools.
func (r *Registry) RegisterGitHub(gh Repos) {
	r.mustBind(GitHubListRepos, func(ctx context.Context, _ map[string]any) (string, error) {
		repos, err := gh.ListRepos(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to fetch repos: %w", err)
		}
		return forge.FormatRepos(repos), nil
	})
	r.mustBind(GitHubCreateIssue, func(ctx context.Context, args map[string]any) (string, error) {
		issue, err := gh.CreateIssue(ctx,
			stringArg(args, "repo"),
			stringArg(args, "title"),
			stringArg(args, "body"),
		)
		if err != nil {
			return "", fmt.Errorf("failed to create issue: %w", err)
		}
		return "Issue created: " + issue.URL, nil
	})
}

// Notes is the note-taking backend.
type Notes interface {
	Append(ctx context.Context, content string) error
	CreatePage(ctx context.Context, title, content string) (string, error)
	PageURL() string
}

// RegisterNotion binds the note-taking tools.
func (r *Registry) RegisterNotion(n Notes) {
	r.mustBind(NotionAppend, func(ctx context.Context, args map[string]any) (string, error) {
		if err := n.Append(ctx, stringArg(args, "content")); err != nil {
			return "", fmt.Errorf("failed to append to Notion: %w", err)
		}
		return "Saved to your notes page. You can find it at " + n.PageURL(), nil
	})
	r.mustBind(NotionCreatePage, func(ctx context.Context, args map[string]any) (string, error) {
		url, err := n.CreatePage(ctx, stringArg(args, "title"), stringArg(args, "content"))
		if err != nil {
			return "", fmt.Errorf("failed to create Notion page: %w", err)
		}
		return "Notion page created: " + url, nil
	})
}

// ReminderParser resolves natural-language reminder requests.
type ReminderParser interface {
	Parse(ctx context.Context, text string, now time.Time) (scheduler.Request, error)
}

// ReminderScheduler schedules one-shot reminders.
type ReminderScheduler interface {
	Now() time.Time
	ScheduleOnce(chatID int64, at time.Time, message string) string
}

// UnparsedReminderMessage is returned when no time can be read from a
// reminder request.
const UnparsedReminderMessage = "I couldn't understand the reminder time. Please be more specific like 'tomorrow at 10am'."

// RegisterReminders binds set_reminder. The reminder is delivered to the
// chat recorded in the call context.
func (r *Registry) RegisterReminders(p ReminderParser, s ReminderScheduler) {
	r.mustBind(SetReminder, func(ctx context.Context, args map[string]any) (string, error) {
		text := strings.TrimSpace(stringArg(args, "reminder_text"))
		if text == "" {
			return UnparsedReminderMessage, nil
		}
		chatID, ok := ChatIDFromContext(ctx)
		if !ok {
			return "", errors.New("reminder failed: no chat to deliver to")
		}
		req, err := p.Parse(ctx, text, s.Now())
		if err != nil {
			r.logger.Debug("reminder parse failed", "text", text, "error", err)
			return UnparsedReminderMessage, nil
		}
		return s.ScheduleOnce(chatID, req.At, req.Message), nil
	})
}

// Messenger sends chat messages.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// RegisterMessaging binds send_telegram_message. Recipients are resolved
// case-insensitively against known.
func (r *Registry) RegisterMessaging(m Messenger, known map[string]int64) {
	chats := make(map[string]int64, len(known))
	for name, id := range known {
		chats[strings.ToLower(name)] = id
	}

	r.mustBind(SendTelegramMessage, func(ctx context.Context, args map[string]any) (string, error) {
		recipient := strings.TrimSpace(stringArg(args, "recipient"))
		chatID, ok := chats[strings.ToLower(recipient)]
		if !ok {
			names := make([]string, 0, len(chats))
			for name := range chats {
				names = append(names, name)
			}
			sort.Strings(names)
			return fmt.Sprintf("Unknown recipient '%s'. Known chats: %s", recipient, strings.Join(names, ", ")), nil
		}
		if err := m.Send(ctx, chatID, stringArg(args, "message")); err != nil {
			return "", fmt.Errorf("failed to send message: %w", err)
		}
		return fmt.Sprintf("Message successfully sent to %s. Task complete, no further action needed.", recipient), nil
	})
}
