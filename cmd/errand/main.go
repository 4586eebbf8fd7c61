// Command errand runs the agent service: the turn orchestrator, the tool
// executor, the connector OAuth flows, and the chat UI, all on one
// listener.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/errandhq/errand/internal/agent"
	"github.com/errandhq/errand/internal/buildinfo"
	"github.com/errandhq/errand/internal/config"
	"github.com/errandhq/errand/internal/connstore"
	"github.com/errandhq/errand/internal/email"
	"github.com/errandhq/errand/internal/forge"
	"github.com/errandhq/errand/internal/httpkit"
	"github.com/errandhq/errand/internal/llm"
	"github.com/errandhq/errand/internal/oauth"
	"github.com/errandhq/errand/internal/toolsvc"
	"github.com/errandhq/errand/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "errand:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.String())
		return nil
	}

	path, err := config.FindConfig(*configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	slog.SetDefault(logger)

	logger.Info("starting", "build", buildinfo.String(), "config", path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connection store for OAuth-issued connector tokens.
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	store, err := connstore.NewStore(filepath.Join(cfg.DataDir, "connections.db"))
	if err != nil {
		return fmt.Errorf("open connection store: %w", err)
	}
	defer store.Close()

	// GitHub connector: a static config token wins; otherwise fall back
	// to a token stored by the OAuth flow.
	var github forge.Provider
	githubToken := cfg.GitHub.Token
	if githubToken == "" {
		if tok, err := store.GetToken("github"); err == nil {
			githubToken = tok.AccessToken
		} else if !errors.Is(err, connstore.ErrNotFound) {
			return err
		}
	}
	if githubToken != "" {
		httpClient := httpkit.NewClient(httpkit.WithTimeout(30 * time.Second))
		github, err = forge.NewGitHub(httpClient, githubToken, cfg.GitHub.URL, logger)
		if err != nil {
			return err
		}
		logger.Info("github connector configured", "owner", cfg.GitHub.Owner)
	} else {
		logger.Warn("github connector not configured")
	}

	// Gmail connector.
	var mailer toolsvc.Mailer
	sender := email.NewSender(logger, cfg.Gmail)
	if sender.Configured() {
		mailer = sender
		logger.Info("gmail connector configured", "from", cfg.Gmail.From)
	} else {
		logger.Warn("gmail connector not configured")
	}

	// Tool executor, mounted on the main listener. The dispatcher talks
	// to it over the HTTP contract even in-process, so a remote executor
	// is just a config change.
	executor := toolsvc.NewServer(logger, github, mailer, cfg.GitHub.Owner)

	listenAddr := net.JoinHostPort(cfg.Listen.Address, fmt.Sprintf("%d", cfg.Listen.Port))
	executorURL := cfg.ToolSvc.URL
	if executorURL == "" {
		executorURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Listen.Port)
	}

	dispatcher := agent.NewDispatcher(logger,
		toolsvc.NewClient(logger, executorURL, cfg.ToolSvc.InvokeTimeout))

	// Turn orchestrator. The credential is resolved here, once, and
	// injected; a missing key turns into a remediation answer instead
	// of a startup failure.
	sessions := llm.NewGemini(logger, cfg.Gemini.APIKey, cfg.Gemini.Model)
	runner := agent.New(logger, agent.Config{Credential: cfg.Gemini.APIKey}, sessions, dispatcher)

	mux := http.NewServeMux()
	executor.RegisterRoutes(mux)
	oauth.NewHandler(logger, store, cfg.OAuth).RegisterRoutes(mux)
	web.NewServer(logger, runner, store).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", listenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
