// Package forge provides the GitHub operations behind the
// github_list_repos and github_create_issue tools.
package forge

import (
	"fmt"
	"strings"
)

// Repo is a repository summary.
type Repo struct {
	Name        string
	FullName    string
	Description string
	URL         string
	Private     bool
}

// Issue is a created or fetched issue.
type Issue struct {
	Number int
	Title  string
	Body   string
	URL    string
}

// FormatRepos renders repositories one per line as "- name: description".
func FormatRepos(repos []Repo) string {
	if len(repos) == 0 {
		return "No repositories found."
	}
	lines := make([]string, 0, len(repos))
	for _, r := range repos {
		desc := r.Description
		if desc == "" {
			desc = "No description"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", r.Name, desc))
	}
	return strings.Join(lines, "\n")
}
