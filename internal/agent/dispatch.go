package agent

import (
	"context"
	"log/slog"

	"github.com/errandhq/errand/internal/llm"
	"github.com/errandhq/errand/internal/tools"
	"github.com/errandhq/errand/internal/toolsvc"
)

// Dispatcher invokes one named tool against the tool executor. Invoke
// never fails the turn: any error is folded into the returned ToolResult
// so the model can be told about it and the remaining calls in the same
// iteration still run.
type Dispatcher interface {
	Invoke(ctx context.Context, call llm.ToolCall) llm.ToolResult
}

// executorDispatcher dispatches tool calls over the executor's HTTP
// contract.
type executorDispatcher struct {
	logger *slog.Logger
	client *toolsvc.Client
}

// NewDispatcher creates a Dispatcher backed by the given executor client.
func NewDispatcher(logger *slog.Logger, client *toolsvc.Client) Dispatcher {
	return &executorDispatcher{
		logger: logger,
		client: client,
	}
}

// Invoke implements Dispatcher. The result always carries the call's ID
// and name so the orchestrator can pair it back 1:1.
func (d *executorDispatcher) Invoke(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	result := llm.ToolResult{
		ID:   call.ID,
		Name: call.Name,
	}

	// Validate against the closed tool set before going to the network.
	// An unknown name still produces a paired error result; the model
	// may recover by picking a real tool.
	name, err := tools.Parse(call.Name)
	if err != nil {
		result.Content = err.Error()
		result.IsError = true
		return result
	}

	payload, err := d.client.Invoke(ctx, name, call.Args)
	if err != nil {
		d.logger.Warn("tool invocation failed",
			"tool", call.Name,
			"call_id", call.ID,
			"error", err,
		)
		result.Content = err.Error()
		result.IsError = true
		return result
	}

	d.logger.Debug("tool invocation completed",
		"tool", call.Name,
		"call_id", call.ID,
		"bytes", len(payload),
	)
	result.Content = string(payload)
	return result
}
