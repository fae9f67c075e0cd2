package tools

import "github.com/nugget/krish/internal/llm"

// Tool names.
const (
	WebSearch           = "web_search"
	GitHubListRepos     = "github_list_repos"
	GitHubCreateIssue   = "github_create_issue"
	NotionAppend        = "notion_append"
	NotionCreatePage    = "notion_create_page"
	SetReminder         = "set_reminder"
	SendTelegramMessage = "send_telegram_message"
)

func object(required []string, props map[string]any) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

var declarations = map[string]llm.ToolDefinition{
	WebSearch: {
		Name: WebSearch,
		Description: "Search the web for current information. ONLY use 'web_search' tool for searching. " +
			"Never invent other tool names. ALWAYS use this tool for: weather forecasts, news, sports scores, " +
			"stock prices, current events, or any question about 'now' or 'today'. Do NOT answer these questions from memory.",
		Parameters: object([]string{"query"}, map[string]any{
			"query": str("The search query. Be specific and concise."),
		}),
	},
	GitHubListRepos: {
		Name:        GitHubListRepos,
		Description: "List all GitHub repositories for the user. Use when asked to show, list, or find GitHub repos.",
		Parameters:  object(nil, map[string]any{}),
	},
	GitHubCreateIssue: {
		Name:        GitHubCreateIssue,
		Description: "Create a GitHub issue in a specific repository. Use when asked to create, add, or raise an issue or bug report.",
		Parameters: object([]string{"repo", "title", "body"}, map[string]any{
			"repo":  str("The repository name to create the issue in."),
			"title": str("The title of the issue."),
			"body":  str("The detailed description of the issue."),
		}),
	},
	NotionAppend: {
		Name:        NotionAppend,
		Description: "Append a note to Notion. ONLY use when user explicitly asks to save or add something to Notion. Never use proactively.",
		Parameters: object([]string{"content"}, map[string]any{
			"content": str("The text content to append to Notion."),
		}),
	},
	NotionCreatePage: {
		Name:        NotionCreatePage,
		Description: "Create a new Notion page with a title and content. Use when asked to create a new page or document in Notion.",
		Parameters: object([]string{"title", "content"}, map[string]any{
			"title":   str("The title of the new page."),
			"content": str("The content of the new page."),
		}),
	},
	SetReminder: {
		Name: SetReminder,
		Description: "Set a time-based reminder. ALWAYS use EXACTLY 'set_reminder' as tool name. " +
			"Use when user says remind me, set a reminder, don't forget.",
		Parameters: object([]string{"reminder_text"}, map[string]any{
			"reminder_text": str("The reminder request exactly as the user stated it. Example: 'call Mom at 6pm today'. " +
				"Never put confirmation messages here."),
		}),
	},
	SendTelegramMessage: {
		Name: SendTelegramMessage,
		Description: "Send a Telegram message to a known chat or group. Use when user says 'send a message to', " +
			"'announce to', 'tell the group'. Execute immediately, do NOT ask for confirmation. " +
			"Call this tool ONCE only. After sending, stop.",
		Parameters: object([]string{"recipient", "message"}, map[string]any{
			"recipient": str("Who to send to. Must be one of the known chats, e.g. 'me' or 'group'."),
			"message":   str("The message content to send."),
		}),
	},
}

// Declaration returns the static declaration for name.
func Declaration(name string) (llm.ToolDefinition, bool) {
	d, ok := declarations[name]
	return d, ok
}
