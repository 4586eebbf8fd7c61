// Package oauth implements the connector authorization flows: it sends
// the user to the provider's consent page, exchanges the returned code
// for tokens, and persists them in the connection store. The turn
// orchestrator never sees any of this.
package oauth

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	githubendpoint "golang.org/x/oauth2/github"
	googleendpoint "golang.org/x/oauth2/google"

	"github.com/errandhq/errand/internal/config"
	"github.com/errandhq/errand/internal/connstore"
)

// stateTTL is how long an issued state parameter stays valid.
const stateTTL = 10 * time.Minute

// gmailSendScope is the narrowest Gmail scope that allows sending.
const gmailSendScope = "https://www.googleapis.com/auth/gmail.send"

// Handler serves the start and callback endpoints for each configured
// provider.
type Handler struct {
	logger  *slog.Logger
	store   *connstore.Store
	configs map[string]*oauth2.Config

	mu     sync.Mutex
	states map[string]stateEntry
}

type stateEntry struct {
	provider string
	issued   time.Time
}

// NewHandler creates an OAuth handler for the providers whose client
// credentials are present in cfg.
func NewHandler(logger *slog.Logger, store *connstore.Store, cfg config.OAuthConfig) *Handler {
	h := &Handler{
		logger:  logger,
		store:   store,
		configs: make(map[string]*oauth2.Config),
		states:  make(map[string]stateEntry),
	}

	if cfg.GitHub.Configured() {
		h.configs["github"] = &oauth2.Config{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			Endpoint:     githubendpoint.Endpoint,
			Scopes:       []string{"repo"},
			RedirectURL:  cfg.RedirectBase + "/oauth/github/callback",
		}
	}
	if cfg.Google.Configured() {
		h.configs["google"] = &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			Endpoint:     googleendpoint.Endpoint,
			Scopes:       []string{gmailSendScope},
			RedirectURL:  cfg.RedirectBase + "/oauth/google/callback",
		}
	}

	return h
}

// Providers returns the providers this handler can authorize.
func (h *Handler) Providers() []string {
	out := make([]string, 0, len(h.configs))
	for p := range h.configs {
		out = append(out, p)
	}
	return out
}

// RegisterRoutes adds the start and callback endpoints for every
// configured provider to a mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	for provider := range h.configs {
		p := provider
		mux.HandleFunc("/oauth/"+p+"/start", func(w http.ResponseWriter, r *http.Request) {
			h.handleStart(w, r, p)
		})
		mux.HandleFunc("/oauth/"+p+"/callback", func(w http.ResponseWriter, r *http.Request) {
			h.handleCallback(w, r, p)
		})
	}
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request, provider string) {
	cfg := h.configs[provider]

	state := uuid.NewString()
	h.mu.Lock()
	h.states[state] = stateEntry{provider: provider, issued: time.Now()}
	h.mu.Unlock()

	var opts []oauth2.AuthCodeOption
	if provider == "google" {
		// Offline access so Google issues a refresh token.
		opts = append(opts, oauth2.AccessTypeOffline)
	}

	http.Redirect(w, r, cfg.AuthCodeURL(state, opts...), http.StatusFound)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request, provider string) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		http.Error(w, "missing state or code", http.StatusBadRequest)
		return
	}

	if !h.consumeState(state, provider) {
		http.Error(w, "unknown or expired state", http.StatusBadRequest)
		return
	}

	cfg := h.configs[provider]
	tok, err := cfg.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("oauth exchange failed", "provider", provider, "error", err)
		http.Error(w, "token exchange failed", http.StatusBadGateway)
		return
	}

	err = h.store.SetToken(connstore.Token{
		Provider:     provider,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	})
	if err != nil {
		h.logger.Error("store token failed", "provider", provider, "error", err)
		http.Error(w, "failed to store token", http.StatusInternalServerError)
		return
	}

	h.logger.Info("connector authorized", "provider", provider)
	fmt.Fprintf(w, "%s connected. You can close this window.", provider)
}

// consumeState validates and removes a state parameter, expiring stale
// entries as a side effect.
func (h *Handler) consumeState(state, provider string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s, e := range h.states {
		if time.Since(e.issued) > stateTTL {
			delete(h.states, s)
		}
	}

	e, ok := h.states[state]
	if !ok || e.provider != provider {
		return false
	}
	delete(h.states, state)
	return true
}
