package toolsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/errandhq/errand/internal/forge"
	"github.com/errandhq/errand/internal/tools"
)

// maxInvokeBody bounds the request body for one invocation.
const maxInvokeBody = 1 << 20

// Mailer is the mail connector surface the executor needs.
type Mailer interface {
	// Send delivers a message and returns its Message-ID.
	Send(ctx context.Context, to, subject, body string) (string, error)
}

// Server executes tool invocations against their connectors. A nil
// connector means that tool is not configured; invoking it returns an
// error payload rather than failing the request transport.
type Server struct {
	logger *slog.Logger
	forge  forge.Provider
	mailer Mailer

	// defaultOwner qualifies bare repo names in create_github_issue.
	defaultOwner string
}

// NewServer creates a tool executor.
func NewServer(logger *slog.Logger, f forge.Provider, m Mailer, defaultOwner string) *Server {
	return &Server{
		logger:       logger,
		forge:        f,
		mailer:       m,
		defaultOwner: defaultOwner,
	}
}

// RegisterRoutes adds the executor endpoint to a mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/invoke", s.handleInvoke)
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req invokeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInvokeBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed request: %v", err))
		return
	}

	name, err := tools.Parse(req.Tool)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Debug("tool invocation", "tool", name)

	result, err := s.execute(r.Context(), name, req.Args)
	if err != nil {
		s.logger.Warn("tool execution failed", "tool", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// execute runs one tool. The switch is exhaustive over the closed tool
// set; tools.Parse has already rejected anything else.
func (s *Server) execute(ctx context.Context, name tools.Name, args map[string]any) (any, error) {
	switch name {
	case tools.ListGitHubRepos:
		if s.forge == nil {
			return nil, fmt.Errorf("github connector not configured")
		}
		return s.forge.ListRepos(ctx)

	case tools.CreateGitHubIssue:
		if s.forge == nil {
			return nil, fmt.Errorf("github connector not configured")
		}
		repo := stringArg(args, "repo")
		title := stringArg(args, "title")
		if repo == "" || title == "" {
			return nil, fmt.Errorf("create_github_issue: repo and title are required")
		}
		resolved, err := forge.ResolveRepo(s.defaultOwner, repo)
		if err != nil {
			return nil, err
		}
		issue, err := s.forge.CreateIssue(ctx, resolved, title, stringArg(args, "body"))
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"url":    issue.URL,
			"number": issue.Number,
		}, nil

	case tools.SendGmail:
		if s.mailer == nil {
			return nil, fmt.Errorf("gmail connector not configured")
		}
		to := stringArg(args, "to")
		subject := stringArg(args, "subject")
		body := stringArg(args, "body")
		if to == "" || subject == "" || body == "" {
			return nil, fmt.Errorf("send_gmail: to, subject, and body are required")
		}
		id, err := s.mailer.Send(ctx, to, subject, body)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"success": true,
			"id":      id,
		}, nil
	}

	return nil, fmt.Errorf("tool %q has no executor", name)
}

// stringArg extracts a trimmed string argument, empty if absent or not
// a string.
func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
