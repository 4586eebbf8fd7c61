// Package agent implements the turn orchestrator: the control loop that
// drives one user query through model and tool round-trips to a final
// answer.
package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/errandhq/errand/internal/llm"
	"github.com/errandhq/errand/internal/retry"
)

// maxToolIterations caps the function-call loop within one attempt. The
// model is free to keep requesting tools; the loop is not.
const maxToolIterations = 5

// defaultFinalText stands in when the model ends a turn with tool
// activity but no closing text.
const defaultFinalText = "Task completed."

// Response is the externally visible result of one turn.
type Response struct {
	Text string `json:"text"`

	// Sources are the web citations backing the answer, in the order
	// the model returned them. May be empty; duplicates are preserved.
	Sources []llm.Source `json:"sources"`
}

// Config holds the orchestrator's injected configuration. The boundary
// layer resolves these once at startup; the orchestrator performs no
// ambient lookups.
type Config struct {
	// Credential is the resolved model service credential. Empty means
	// unconfigured: turns short-circuit with a remediation response
	// before any network call.
	Credential string

	// Retry overrides the turn retry schedule. Zero values take the
	// defaults (3 attempts, 2s/4s backoff).
	Retry retry.Config
}

// Agent runs turns. One Agent serves many turns, but each turn gets its
// own model session; there is no shared mutable state across turns
// beyond the read-only tool declaration table.
type Agent struct {
	logger     *slog.Logger
	credential string
	sessions   llm.SessionFactory
	dispatcher Dispatcher
	retry      *retry.Controller
}

// New creates an Agent.
func New(logger *slog.Logger, cfg Config, sessions llm.SessionFactory, dispatcher Dispatcher) *Agent {
	return &Agent{
		logger:     logger,
		credential: cfg.Credential,
		sessions:   sessions,
		dispatcher: dispatcher,
		retry:      retry.NewController(cfg.Retry, logger),
	}
}

// RunTurn drives one complete user query to a final answer. Classifiable
// failures never surface as errors — they come back as remediation
// responses. Unclassified failures propagate once retries are exhausted.
func (a *Agent) RunTurn(ctx context.Context, query string) (*Response, error) {
	if strings.TrimSpace(a.credential) == "" {
		a.logger.Warn("turn refused: no model credential configured")
		return remediation(MissingKey), nil
	}

	a.logger.Info("turn started", "query_len", len(query))

	var resp *Response
	attempt := func(ctx context.Context) error {
		session, err := a.sessions.NewSession(ctx)
		if err != nil {
			return err
		}
		r, err := a.runAttempt(ctx, session, query)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	state, err := a.retry.Do(ctx, "turn", attempt, func(err error) retry.Decision {
		switch Classify(err) {
		case Transient:
			return retry.DecisionRetry
		case QuotaExhausted, InvalidKey, MissingKey, InternalError:
			return retry.DecisionStop
		default:
			return retry.DecisionRaise
		}
	})

	switch state {
	case retry.Succeeded:
		a.logger.Info("turn completed", "sources", len(resp.Sources))
		return resp, nil

	case retry.FailedClassified:
		class := Classify(err)
		a.logger.Warn("turn failed", "classification", class.String(), "error", err)
		return remediation(class), nil

	default: // retry.FailedExhausted
		if Classify(err) == Transient {
			// Retries exhausted on a transient failure: surface the
			// internal-error remediation instead of the raw error.
			a.logger.Warn("turn failed after retries", "error", err)
			return remediation(InternalError), nil
		}
		a.logger.Error("turn failed unclassified", "error", err)
		return nil, err
	}
}

// runAttempt is one full turn attempt: the initial model send plus the
// bounded function-call loop. Each iteration dispatches every requested
// call in order and returns the full ordered result list as a single
// message, so call and result pair 1:1 before the next model send.
func (a *Agent) runAttempt(ctx context.Context, session llm.Session, query string) (*Response, error) {
	reply, err := session.SendText(ctx, query)
	if err != nil {
		return nil, err
	}

	for iter := 0; len(reply.Calls) > 0 && iter < maxToolIterations; iter++ {
		a.logger.Debug("function-call iteration",
			"iteration", iter+1,
			"calls", len(reply.Calls),
		)

		results := make([]llm.ToolResult, 0, len(reply.Calls))
		for _, call := range reply.Calls {
			results = append(results, a.dispatcher.Invoke(ctx, call))
		}

		reply, err = session.SendToolResults(ctx, results)
		if err != nil {
			return nil, err
		}
	}

	if len(reply.Calls) > 0 {
		a.logger.Warn("function-call loop hit iteration cap",
			"cap", maxToolIterations,
			"pending_calls", len(reply.Calls),
		)
	}

	text := reply.Text
	if text == "" {
		text = defaultFinalText
	}

	return &Response{Text: text, Sources: reply.Sources}, nil
}
