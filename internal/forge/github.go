package forge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v69/github"
)

// maxRepoPages bounds repository pagination.
const maxRepoPages = 10

// GitHub wraps the go-github client for a single account.
type GitHub struct {
	client *gogithub.Client
	owner  string // default owner for unqualified repo names
	logger *slog.Logger
}

// NewGitHub creates a GitHub client authenticated with token. A non-empty
// baseURL targets a GitHub Enterprise (or test) server.
func NewGitHub(httpClient *http.Client, token, baseURL, owner string, logger *slog.Logger) (*GitHub, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if owner == "" {
		return nil, errors.New("forge: owner is required")
	}

	client := gogithub.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("forge: base url: %w", err)
		}
	}
	return &GitHub{client: client, owner: owner, logger: logger}, nil
}

// Owner returns the default account.
func (g *GitHub) Owner() string { return g.owner }

// resolveRepo converts a repo parameter into owner and name. Unqualified
// names belong to the default owner.
func (g *GitHub) resolveRepo(repo string) (string, string, error) {
	repo = strings.TrimSpace(repo)
	if repo == "" {
		return "", "", errors.New("forge: repo is required")
	}
	if !strings.Contains(repo, "/") {
		return g.owner, repo, nil
	}
	parts := strings.SplitN(repo, "/", 2)
	if parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("forge: invalid repo %q: expected owner/repo", repo)
	}
	return parts[0], parts[1], nil
}

// checkRateLimit logs a warning when remaining API calls drop below threshold.
func (g *GitHub) checkRateLimit(resp *gogithub.Response) {
	if resp == nil {
		return
	}
	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		g.logger.Warn("forge: github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset", resp.Rate.Reset.Time,
		)
	}
}

// ListRepos returns every repository of the default owner.
func (g *GitHub) ListRepos(ctx context.Context) ([]Repo, error) {
	opts := &gogithub.RepositoryListByUserOptions{
		Sort:        "updated",
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	var repos []Repo
	for page := 0; page < maxRepoPages; page++ {
		result, resp, err := g.client.Repositories.ListByUser(ctx, g.owner, opts)
		if err != nil {
			return nil, fmt.Errorf("forge: list repos: %w", err)
		}
		g.checkRateLimit(resp)
		for _, r := range result {
			repos = append(repos, convertRepo(r))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return repos, nil
}

// CreateIssue opens a new issue in repo.
func (g *GitHub) CreateIssue(ctx context.Context, repo, title, body string) (*Issue, error) {
	owner, name, err := g.resolveRepo(repo)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, errors.New("forge: title is required")
	}

	req := &gogithub.IssueRequest{
		Title: &title,
		Body:  &body,
	}
	result, resp, err := g.client.Issues.Create(ctx, owner, name, req)
	if err != nil {
		return nil, fmt.Errorf("forge: create issue: %w", err)
	}
	g.checkRateLimit(resp)

	g.logger.Info("issue created", "repo", owner+"/"+name, "number", result.GetNumber())
	return &Issue{
		Number: result.GetNumber(),
		Title:  result.GetTitle(),
		Body:   result.GetBody(),
		URL:    result.GetHTMLURL(),
	}, nil
}

func convertRepo(r *gogithub.Repository) Repo {
	return Repo{
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		Description: r.GetDescription(),
		URL:         r.GetHTMLURL(),
		Private:     r.GetPrivate(),
	}
}
