// Package llm provides the model service session used to drive one
// conversational turn.
package llm

// ToolCall is a request emitted by the model to invoke a named external
// capability with structured arguments. Immutable once received.
type ToolCall struct {
	// ID is the provider-assigned call identifier, used to pair the
	// eventual result back to this call. Providers that omit IDs fall
	// back to the tool name.
	ID string `json:"id"`

	// Name is the wire-format tool name. Validation against the closed
	// tool set happens at dispatch, so an invalid name still produces a
	// paired error result instead of aborting the turn.
	Name string `json:"name"`

	Args map[string]any `json:"args"`
}

// ToolResult is the outcome of exactly one ToolCall. Content holds the
// tool-specific JSON payload on success, or a plain error message when
// IsError is set.
type ToolResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// Source is a web citation the model used to ground its answer.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Reply is one model response within a turn: answer text so far, any
// tool calls the model wants executed, and the web citations backing
// the text. Sources preserve the model's order and are not deduplicated.
type Reply struct {
	Text    string
	Calls   []ToolCall
	Sources []Source
}
