// Package tools defines the closed set of tools the agent can invoke.
//
// Tool names are a typed constant set rather than free strings so that
// dispatch sites can switch exhaustively and the declaration table, the
// executor, and the model-facing schemas can never drift apart.
package tools

import "fmt"

// Name identifies one tool in the closed set.
type Name string

// The complete tool set. Adding a tool means adding a constant here,
// a declaration in Declarations, and an executor case in toolsvc.
const (
	ListGitHubRepos   Name = "list_github_repos"
	CreateGitHubIssue Name = "create_github_issue"
	SendGmail         Name = "send_gmail"
)

// All returns every known tool name in declaration order.
func All() []Name {
	return []Name{ListGitHubRepos, CreateGitHubIssue, SendGmail}
}

// Parse validates a wire-format tool name against the closed set.
func Parse(s string) (Name, error) {
	switch Name(s) {
	case ListGitHubRepos, CreateGitHubIssue, SendGmail:
		return Name(s), nil
	}
	return "", fmt.Errorf("tools: unknown tool %q", s)
}

// Tool describes one callable tool: its name, what it does, and the
// JSON schema of its arguments.
type Tool struct {
	Name        Name
	Description string
	Parameters  map[string]any
}

// Declarations returns the fixed tool declaration table, in the order
// presented to the model. The table is read-only process-wide
// configuration; callers must not mutate the returned values.
func Declarations() []Tool {
	return []Tool{
		{
			Name:        ListGitHubRepos,
			Description: "List the user's GitHub repositories with name, URL, and description.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        CreateGitHubIssue,
			Description: "Create a new issue in a GitHub repository the user has access to.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"repo": map[string]any{
						"type":        "string",
						"description": "Repository in owner/name format (e.g., acme/myapp)",
					},
					"title": map[string]any{
						"type":        "string",
						"description": "Issue title",
					},
					"body": map[string]any{
						"type":        "string",
						"description": "Issue body in markdown (optional)",
					},
				},
				"required": []string{"repo", "title"},
			},
		},
		{
			Name:        SendGmail,
			Description: "Send an email from the user's Gmail account.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"to": map[string]any{
						"type":        "string",
						"description": "Recipient email address",
					},
					"subject": map[string]any{
						"type":        "string",
						"description": "Message subject line",
					},
					"body": map[string]any{
						"type":        "string",
						"description": "Message body in markdown",
					},
				},
				"required": []string{"to", "subject", "body"},
			},
		},
	}
}
