package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/errandhq/errand/internal/llm"
	"github.com/errandhq/errand/internal/retry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// step is one scripted model exchange: the reply (or error) a session
// returns for its next send.
type step struct {
	reply *llm.Reply
	err   error
}

// fakeSession replays scripted steps and records everything sent to it.
type fakeSession struct {
	steps       []step
	sentText    []string
	sentResults [][]llm.ToolResult
}

func (s *fakeSession) next() (*llm.Reply, error) {
	if len(s.steps) == 0 {
		return nil, errors.New("fakeSession: no scripted steps left")
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	return st.reply, st.err
}

func (s *fakeSession) SendText(ctx context.Context, text string) (*llm.Reply, error) {
	s.sentText = append(s.sentText, text)
	return s.next()
}

func (s *fakeSession) SendToolResults(ctx context.Context, results []llm.ToolResult) (*llm.Reply, error) {
	copied := make([]llm.ToolResult, len(results))
	copy(copied, results)
	s.sentResults = append(s.sentResults, copied)
	return s.next()
}

// fakeFactory hands out one scripted session per attempt.
type fakeFactory struct {
	sessions []*fakeSession
	created  int
}

func (f *fakeFactory) NewSession(ctx context.Context) (llm.Session, error) {
	if f.created >= len(f.sessions) {
		return nil, errors.New("fakeFactory: no sessions left")
	}
	s := f.sessions[f.created]
	f.created++
	return s, nil
}

// fakeDispatcher succeeds with a canned payload unless the tool name is
// in fail, and records every call in order.
type fakeDispatcher struct {
	calls []llm.ToolCall
	fail  map[string]string // tool name -> error message
	body  map[string]string // tool name -> success payload
}

func (d *fakeDispatcher) Invoke(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	d.calls = append(d.calls, call)
	result := llm.ToolResult{ID: call.ID, Name: call.Name}
	if msg, ok := d.fail[call.Name]; ok {
		result.Content = msg
		result.IsError = true
		return result
	}
	if body, ok := d.body[call.Name]; ok {
		result.Content = body
		return result
	}
	result.Content = `{"ok":true}`
	return result
}

// newTestAgent wires an Agent with recorded (not slept) backoff.
func newTestAgent(t *testing.T, factory *fakeFactory, dispatcher Dispatcher, delays *[]time.Duration) *Agent {
	t.Helper()
	cfg := Config{
		Credential: "test-key",
		Retry: retry.Config{
			Sleep: func(ctx context.Context, d time.Duration) bool {
				*delays = append(*delays, d)
				return true
			},
		},
	}
	return New(discardLogger(), cfg, factory, dispatcher)
}

func TestRunTurnPlainAnswer(t *testing.T) {
	session := &fakeSession{steps: []step{
		{reply: &llm.Reply{
			Text: "The capital of France is Paris.",
			Sources: []llm.Source{
				{URI: "https://example.com/a", Title: "A"},
				{URI: "https://example.com/b", Title: "B"},
				{URI: "https://example.com/a", Title: "A"}, // duplicates preserved
			},
		}},
	}}
	factory := &fakeFactory{sessions: []*fakeSession{session}}
	dispatcher := &fakeDispatcher{}
	var delays []time.Duration

	resp, err := newTestAgent(t, factory, dispatcher, &delays).RunTurn(context.Background(), "capital of France?")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}

	if resp.Text != "The capital of France is Paris." {
		t.Errorf("Text = %q, want verbatim model text", resp.Text)
	}
	if len(resp.Sources) != 3 {
		t.Fatalf("got %d sources, want 3 (order preserved, no dedup)", len(resp.Sources))
	}
	if resp.Sources[0].URI != "https://example.com/a" || resp.Sources[1].URI != "https://example.com/b" {
		t.Errorf("sources out of order: %+v", resp.Sources)
	}
	if len(dispatcher.calls) != 0 {
		t.Errorf("dispatcher invoked %d times for a no-tool reply", len(dispatcher.calls))
	}
}

func TestRunTurnListReposScenario(t *testing.T) {
	session := &fakeSession{steps: []step{
		{reply: &llm.Reply{Calls: []llm.ToolCall{
			{ID: "1", Name: "list_github_repos", Args: map[string]any{}},
		}}},
		{reply: &llm.Reply{Text: "Here are your repos: r1."}},
	}}
	factory := &fakeFactory{sessions: []*fakeSession{session}}
	dispatcher := &fakeDispatcher{body: map[string]string{
		"list_github_repos": `[{"name":"r1","url":"https://x","description":"d"}]`,
	}}
	var delays []time.Duration

	resp, err := newTestAgent(t, factory, dispatcher, &delays).RunTurn(context.Background(), "List my repos")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}

	if resp.Text != "Here are your repos: r1." {
		t.Errorf("Text = %q, want final model text", resp.Text)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("got %d sources, want none", len(resp.Sources))
	}
	if len(session.sentResults) != 1 || len(session.sentResults[0]) != 1 {
		t.Fatalf("sentResults = %+v, want one batch of one result", session.sentResults)
	}
	got := session.sentResults[0][0]
	if got.ID != "1" || got.Name != "list_github_repos" || got.IsError {
		t.Errorf("result = %+v, want successful result paired to call 1", got)
	}
}

func TestRunTurnLoopCap(t *testing.T) {
	// The model requests tools on every reply. The loop must stop after
	// exactly 5 iterations.
	toolReply := func() step {
		return step{reply: &llm.Reply{Calls: []llm.ToolCall{
			{ID: "c", Name: "list_github_repos"},
		}}}
	}
	session := &fakeSession{steps: []step{
		toolReply(), // answer to SendText
		toolReply(), toolReply(), toolReply(), toolReply(), toolReply(),
	}}
	factory := &fakeFactory{sessions: []*fakeSession{session}}
	dispatcher := &fakeDispatcher{}
	var delays []time.Duration

	resp, err := newTestAgent(t, factory, dispatcher, &delays).RunTurn(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}

	if len(session.sentResults) != 5 {
		t.Errorf("sent %d result batches, want exactly 5", len(session.sentResults))
	}
	// The final reply had no text, so the placeholder stands in.
	if resp.Text != "Task completed." {
		t.Errorf("Text = %q, want placeholder", resp.Text)
	}
}

func TestRunTurnResultPairing(t *testing.T) {
	// Three calls in one iteration, the middle one failing. All three
	// must come back, in order, with matching IDs.
	session := &fakeSession{steps: []step{
		{reply: &llm.Reply{Calls: []llm.ToolCall{
			{ID: "a", Name: "list_github_repos"},
			{ID: "b", Name: "send_gmail"},
			{ID: "c", Name: "create_github_issue"},
		}}},
		{reply: &llm.Reply{Text: "done"}},
	}}
	factory := &fakeFactory{sessions: []*fakeSession{session}}
	dispatcher := &fakeDispatcher{fail: map[string]string{"send_gmail": "smtp unreachable"}}
	var delays []time.Duration

	if _, err := newTestAgent(t, factory, dispatcher, &delays).RunTurn(context.Background(), "do three things"); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}

	if len(session.sentResults) != 1 {
		t.Fatalf("sent %d batches, want 1", len(session.sentResults))
	}
	batch := session.sentResults[0]
	if len(batch) != 3 {
		t.Fatalf("batch has %d results, want 3", len(batch))
	}
	wantIDs := []string{"a", "b", "c"}
	for i, want := range wantIDs {
		if batch[i].ID != want {
			t.Errorf("batch[%d].ID = %q, want %q", i, batch[i].ID, want)
		}
	}
	if !batch[1].IsError || batch[1].Content != "smtp unreachable" {
		t.Errorf("batch[1] = %+v, want error result", batch[1])
	}
	if batch[0].IsError || batch[2].IsError {
		t.Errorf("sibling results marked as errors: %+v", batch)
	}
}

func TestRunTurnMissingCredential(t *testing.T) {
	factory := &fakeFactory{} // any session creation would fail the test
	a := New(discardLogger(), Config{Credential: "  "}, factory, &fakeDispatcher{})

	resp, err := a.RunTurn(context.Background(), "hello")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if resp.Text != missingKeyText {
		t.Errorf("Text = %q, want missing-key remediation", resp.Text)
	}
	if factory.created != 0 {
		t.Errorf("created %d sessions, want 0 (no network call)", factory.created)
	}
}

func TestRunTurnQuotaNeverRetries(t *testing.T) {
	session := &fakeSession{steps: []step{
		{err: errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")},
	}}
	factory := &fakeFactory{sessions: []*fakeSession{session}}
	var delays []time.Duration

	resp, err := newTestAgent(t, factory, &fakeDispatcher{}, &delays).RunTurn(context.Background(), "hi")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if resp.Text != quotaExhaustedText {
		t.Errorf("Text = %q, want quota remediation", resp.Text)
	}
	if factory.created != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 429)", factory.created)
	}
	if len(delays) != 0 {
		t.Errorf("backoff slept %v, want no sleeps", delays)
	}
}

func TestRunTurnTransientThenSuccess(t *testing.T) {
	fail1 := &fakeSession{steps: []step{{err: errors.New("rpc error: Deadline Exceeded")}}}
	fail2 := &fakeSession{steps: []step{{err: errors.New("googleapi: Error 500: INTERNAL")}}}
	ok := &fakeSession{steps: []step{{reply: &llm.Reply{Text: "recovered"}}}}
	factory := &fakeFactory{sessions: []*fakeSession{fail1, fail2, ok}}
	var delays []time.Duration

	resp, err := newTestAgent(t, factory, &fakeDispatcher{}, &delays).RunTurn(context.Background(), "hi")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if resp.Text != "recovered" {
		t.Errorf("Text = %q, want clean success with no failure artifacts", resp.Text)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) || delays[0] != want[0] || delays[1] != want[1] {
		t.Errorf("backoff delays = %v, want %v", delays, want)
	}
}

func TestRunTurnTransientExhausted(t *testing.T) {
	transient := func() *fakeSession {
		return &fakeSession{steps: []step{{err: errors.New("Service Unavailable")}}}
	}
	factory := &fakeFactory{sessions: []*fakeSession{transient(), transient(), transient()}}
	var delays []time.Duration

	resp, err := newTestAgent(t, factory, &fakeDispatcher{}, &delays).RunTurn(context.Background(), "hi")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if resp.Text != internalErrorText {
		t.Errorf("Text = %q, want internal-error remediation after exhaustion", resp.Text)
	}
	if factory.created != 3 {
		t.Errorf("attempts = %d, want 3", factory.created)
	}
}

func TestRunTurnUnclassifiedPropagates(t *testing.T) {
	session := &fakeSession{steps: []step{{err: errors.New("something completely different")}}}
	factory := &fakeFactory{sessions: []*fakeSession{session}}
	var delays []time.Duration

	resp, err := newTestAgent(t, factory, &fakeDispatcher{}, &delays).RunTurn(context.Background(), "hi")
	if err == nil {
		t.Fatalf("RunTurn() = %+v, want propagated error", resp)
	}
	if factory.created != 1 {
		t.Errorf("attempts = %d, want 1 (unclassified is not retried)", factory.created)
	}
}

func TestRunTurnEmptyTextPlaceholder(t *testing.T) {
	session := &fakeSession{steps: []step{{reply: &llm.Reply{}}}}
	factory := &fakeFactory{sessions: []*fakeSession{session}}
	var delays []time.Duration

	resp, err := newTestAgent(t, factory, &fakeDispatcher{}, &delays).RunTurn(context.Background(), "hi")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if resp.Text != "Task completed." {
		t.Errorf("Text = %q, want placeholder for empty model text", resp.Text)
	}
}

// errorsAs sanity: the fmt verb in fakes should not accidentally match
// a classifier substring.
func TestFakeErrorsStayUnclassified(t *testing.T) {
	if got := Classify(fmt.Errorf("fakeFactory: no sessions left")); got != Unclassified {
		t.Errorf("Classify(test fixture error) = %v, want Unclassified", got)
	}
}
