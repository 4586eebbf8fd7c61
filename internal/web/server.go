// Package web provides the HTTP boundary: the chat API that invokes the
// turn orchestrator, connector status, and the embedded chat UI.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/errandhq/errand/internal/agent"
	"github.com/errandhq/errand/internal/buildinfo"
	"github.com/errandhq/errand/internal/connstore"
)

//go:embed static/*
var staticFiles embed.FS

// maxChatBody bounds the request body for one chat request.
const maxChatBody = 64 << 10

// TurnRunner runs one agent turn. Satisfied by *agent.Agent.
type TurnRunner interface {
	RunTurn(ctx context.Context, query string) (*agent.Response, error)
}

// Server is the boundary HTTP server.
type Server struct {
	logger *slog.Logger
	agent  TurnRunner
	store  *connstore.Store
}

// NewServer creates the boundary server.
func NewServer(logger *slog.Logger, a TurnRunner, store *connstore.Store) *Server {
	return &Server{logger: logger, agent: a, store: store}
}

// RegisterRoutes adds the API and UI routes to a mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/connectors", s.handleConnectors)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.Handle("/", staticHandler())
}

// chatRequest is one user query.
type chatRequest struct {
	Query string `json:"query"`
}

// chatResponse is the rendered turn result.
type chatResponse struct {
	RequestID string       `json:"request_id"`
	Text      string       `json:"text"`
	HTML      string       `json:"html"`
	Sources   []sourceJSON `json:"sources"`
}

type sourceJSON struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed request: %v", err))
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID)
	logger.Info("chat request", "query_len", len(req.Query))

	resp, err := s.agent.RunTurn(r.Context(), req.Query)
	if err != nil {
		// Only unclassified failures reach here; everything actionable
		// already came back as a remediation response.
		logger.Error("turn failed", "error", err)
		if errors.Is(err, context.Canceled) {
			return
		}
		writeError(w, http.StatusBadGateway, "the agent could not complete your request")
		return
	}

	out := chatResponse{
		RequestID: requestID,
		Text:      resp.Text,
		HTML:      renderMarkdown(resp.Text),
		Sources:   make([]sourceJSON, 0, len(resp.Sources)),
	}
	for _, src := range resp.Sources {
		out.Sources = append(out.Sources, sourceJSON{URI: src.URI, Title: src.Title})
	}

	writeJSON(w, http.StatusOK, out)
}

// connectorStatus is one provider's connection state.
type connectorStatus struct {
	Provider  string `json:"provider"`
	Connected bool   `json:"connected"`
}

func (s *Server) handleConnectors(w http.ResponseWriter, r *http.Request) {
	statuses := []connectorStatus{
		{Provider: "github"},
		{Provider: "google"},
	}

	if s.store != nil {
		connected, err := s.store.Providers()
		if err != nil {
			s.logger.Error("list connectors failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list connectors")
			return
		}
		for i := range statuses {
			for _, p := range connected {
				if p == statuses[i].Provider {
					statuses[i].Connected = true
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Info())
}

// renderMarkdown converts the agent's markdown answer to HTML for the
// UI. On render failure the raw text is still usable, so the HTML field
// is simply left empty.
func renderMarkdown(md string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return ""
	}
	return buf.String()
}

// staticHandler serves the embedded chat UI, with index.html at the root.
func staticHandler() http.Handler {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	fileServer := http.FileServer(http.FS(subFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" || r.URL.Path == "" {
			r.URL.Path = "/index.html"
		}
		fileServer.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
