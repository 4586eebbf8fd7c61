// Package forge provides the GitHub connector backing the agent's
// repository tools.
package forge

import (
	"context"
	"fmt"
	"strings"
)

// Repo is one repository visible to the authenticated user.
type Repo struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Issue is a created issue.
type Issue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url"`
}

// Provider defines the forge operations the tool executor needs.
//
// All repo parameters use "owner/name" format (e.g. "acme/myapp").
type Provider interface {
	// ListRepos returns the authenticated user's repositories.
	ListRepos(ctx context.Context) ([]*Repo, error)

	// CreateIssue opens a new issue in the specified repository.
	CreateIssue(ctx context.Context, repo, title, body string) (*Issue, error)
}

// splitRepo splits a "owner/repo" string into its two parts.
func splitRepo(repo string) (string, string, error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo %q: expected owner/repo", repo)
	}
	return parts[0], parts[1], nil
}

// ResolveRepo converts a repo parameter into "owner/repo" format. If
// repo already contains a slash it is returned as-is. Otherwise the
// default owner is prepended.
func ResolveRepo(defaultOwner, repo string) (string, error) {
	if strings.Contains(repo, "/") {
		return repo, nil
	}
	if defaultOwner == "" {
		return "", fmt.Errorf("repo %q requires an owner but no default owner is configured", repo)
	}
	return defaultOwner + "/" + repo, nil
}
