package llm

import "context"

// Session is one conversation with the model service. A session is
// exclusively owned by a single in-flight turn: created at turn start,
// discarded at turn end. Implementations are not safe for concurrent use.
type Session interface {
	// SendText sends user text and returns the model's reply.
	SendText(ctx context.Context, text string) (*Reply, error)

	// SendToolResults sends the full ordered result list for the tool
	// calls in the previous reply, as a single message, and returns the
	// model's next reply.
	SendToolResults(ctx context.Context, results []ToolResult) (*Reply, error)
}

// SessionFactory creates fresh sessions. The orchestrator calls this
// once per turn.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}
