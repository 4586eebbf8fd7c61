package forge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v69/github"
)

// githubProvider implements Provider using the go-github SDK.
type githubProvider struct {
	client *gogithub.Client
	logger *slog.Logger
}

// NewGitHub creates a GitHub provider. baseURL is optional and only
// needed for GitHub Enterprise installs.
func NewGitHub(httpClient *http.Client, token, baseURL string, logger *slog.Logger) (Provider, error) {
	client := gogithub.NewClient(httpClient).WithAuthToken(token)

	if baseURL != "" && baseURL != "https://api.github.com" {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("forge: enterprise url %q: %w", baseURL, err)
		}
	}

	return &githubProvider{client: client, logger: logger}, nil
}

// checkRateLimit logs a warning when remaining API calls drop below threshold.
func (p *githubProvider) checkRateLimit(resp *gogithub.Response) {
	if resp == nil {
		return
	}
	if resp.Rate.Remaining < 100 {
		p.logger.Warn("forge: github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset", resp.Rate.Reset.Time,
		)
	}
}

// ListRepos returns the authenticated user's repositories, most recently
// pushed first.
func (p *githubProvider) ListRepos(ctx context.Context) ([]*Repo, error) {
	opts := &gogithub.RepositoryListByAuthenticatedUserOptions{
		Sort:        "pushed",
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	results, resp, err := p.client.Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("forge: list repos: %w", err)
	}
	p.checkRateLimit(resp)

	repos := make([]*Repo, 0, len(results))
	for _, r := range results {
		repos = append(repos, &Repo{
			Name:        r.GetFullName(),
			URL:         r.GetHTMLURL(),
			Description: r.GetDescription(),
		})
	}
	return repos, nil
}

// CreateIssue opens a new issue in the repository.
func (p *githubProvider) CreateIssue(ctx context.Context, repo, title, body string) (*Issue, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("forge: create issue: title is required")
	}

	req := &gogithub.IssueRequest{
		Title: &title,
		Body:  &body,
	}

	result, resp, err := p.client.Issues.Create(ctx, owner, name, req)
	if err != nil {
		return nil, fmt.Errorf("forge: create issue: %w", err)
	}
	p.checkRateLimit(resp)

	return &Issue{
		Number: result.GetNumber(),
		Title:  result.GetTitle(),
		Body:   result.GetBody(),
		URL:    result.GetHTMLURL(),
	}, nil
}
