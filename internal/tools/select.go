package tools

import (
	"strings"

	"github.com/nugget/krish/internal/intent"
	"github.com/nugget/krish/internal/llm"
)

// SearchFloor is the tool score above which web search is always offered.
const SearchFloor = 0.4

// selectionRule offers tools when any keyword is a substring of the
// lowercased message.
type selectionRule struct {
	keywords []string
	tools    []string
}

var selectionRules = []selectionRule{
	{keywords: []string{"github", "repo", "issue"}, tools: []string{GitHubListRepos, GitHubCreateIssue}},
	{keywords: []string{"notion", "note", "save", "page"}, tools: []string{NotionAppend, NotionCreatePage}},
	{keywords: []string{"remind", "reminder", "forget"}, tools: []string{SetReminder}},
	{keywords: []string{"send", "announce", "tell the group", "message to"}, tools: []string{SendTelegramMessage}},
}

// Select names the tools to offer for message: web search when the tool
// score exceeds SearchFloor, then every tool whose keyword rule matches,
// in rule order. It never returns an empty list; with no match it
// offers web search alone.
func Select(message string, s intent.Scores) []string {
	msg := strings.ToLower(message)
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	if s.Tool > SearchFloor {
		add(WebSearch)
	}
	for _, rule := range selectionRules {
		for _, kw := range rule.keywords {
			if strings.Contains(msg, kw) {
				for _, t := range rule.tools {
					add(t)
				}
				break
			}
		}
	}
	if len(names) == 0 {
		names = []string{WebSearch}
	}
	return names
}

// Select returns the definitions of the selected tools that are
// registered. When none is, registered web search is offered instead;
// without it the result is empty and no tool should be offered.
func (r *Registry) Select(message string, s intent.Scores) []llm.ToolDefinition {
	var defs []llm.ToolDefinition
	for _, name := range Select(message, s) {
		if t := r.Get(name); t != nil {
			defs = append(defs, t.Definition())
		}
	}
	if len(defs) == 0 && r.Has(WebSearch) {
		defs = []llm.ToolDefinition{r.Get(WebSearch).Definition()}
	}
	return defs
}
