package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/genai"

	"github.com/errandhq/errand/internal/tools"
)

// systemInstruction describes the agent's role and tool-use policy.
const systemInstruction = `You are errand, an assistant that answers questions and performs tasks
for the user. You can list the user's GitHub repositories, create GitHub
issues, and send email from the user's Gmail account by calling the
provided tools. Use web search to ground factual answers. Only call a
tool when the user's request requires it, and report tool failures to
the user plainly instead of inventing results.`

// Gemini is a SessionFactory backed by the Google Gemini API. Safe for
// concurrent use: the underlying client is created exactly once and is
// itself concurrency-safe; all per-turn state lives in the session.
type Gemini struct {
	logger *slog.Logger
	apiKey string
	model  string

	// The client is created on first use because genai.NewClient
	// requires a context. initOnce makes that safe under concurrent
	// turns.
	initOnce sync.Once
	client   *genai.Client
	initErr  error
}

// NewGemini creates a Gemini session factory. The API key is resolved by
// the boundary layer and injected here; this package never consults the
// environment.
func NewGemini(logger *slog.Logger, apiKey, model string) *Gemini {
	return &Gemini{
		logger: logger,
		apiKey: apiKey,
		model:  model,
	}
}

// NewSession creates a fresh conversation configured with web-search
// grounding, the fixed tool declaration set, and the system instruction.
func (g *Gemini) NewSession(ctx context.Context) (Session, error) {
	client, err := g.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
			{FunctionDeclarations: convertDeclarations(tools.Declarations())},
		},
	}

	return &geminiSession{
		logger: g.logger,
		client: client,
		model:  g.model,
		config: config,
	}, nil
}

// ensureClient creates the shared genai client on first use. Concurrent
// callers all observe the single create attempt and its error.
func (g *Gemini) ensureClient(ctx context.Context) (*genai.Client, error) {
	g.initOnce.Do(func() {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			g.initErr = fmt.Errorf("llm: create gemini client: %w", err)
			return
		}
		g.client = client
	})
	return g.client, g.initErr
}

// geminiSession holds one turn's conversation state. Contents accumulate
// across the function-call loop and are resent on every model call.
type geminiSession struct {
	logger   *slog.Logger
	client   *genai.Client
	model    string
	config   *genai.GenerateContentConfig
	contents []*genai.Content
}

// SendText implements Session.
func (s *geminiSession) SendText(ctx context.Context, text string) (*Reply, error) {
	s.contents = append(s.contents, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: text}},
	})
	return s.generate(ctx)
}

// SendToolResults implements Session. All results for one iteration go
// back as a single user message, preserving call order.
func (s *geminiSession) SendToolResults(ctx context.Context, results []ToolResult) (*Reply, error) {
	parts := make([]*genai.Part, 0, len(results))
	for i := range results {
		r := &results[i]
		parts = append(parts, &genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				ID:   r.ID,
				Name: r.Name,
				Response: map[string]any{
					"content":  r.Content,
					"is_error": r.IsError,
				},
			},
		})
	}
	s.contents = append(s.contents, &genai.Content{
		Role:  "user",
		Parts: parts,
	})
	return s.generate(ctx)
}

// generate performs one model call and folds the candidate back into the
// conversation history for the next round.
func (s *geminiSession) generate(ctx context.Context) (*Reply, error) {
	result, err := s.client.Models.GenerateContent(ctx, s.model, s.contents, s.config)
	if err != nil {
		return nil, fmt.Errorf("llm: gemini: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("llm: gemini: empty response")
	}

	// Keep the model's own content in history so later rounds see the
	// function calls they are responding to.
	if len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		s.contents = append(s.contents, result.Candidates[0].Content)
	}

	reply := &Reply{
		Text:    result.Text(),
		Calls:   convertFunctionCalls(result.FunctionCalls()),
		Sources: extractSources(result),
	}

	s.logger.Log(ctx, slog.LevelDebug, "model reply",
		"model", s.model,
		"tool_calls", len(reply.Calls),
		"sources", len(reply.Sources),
	)

	return reply, nil
}

// convertDeclarations maps the tool declaration table to Gemini function
// declarations.
func convertDeclarations(decls []tools.Tool) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, len(decls))
	for i, d := range decls {
		out[i] = &genai.FunctionDeclaration{
			Name:        string(d.Name),
			Description: d.Description,
			Parameters:  convertSchema(d.Parameters),
		}
	}
	return out
}

// convertSchema converts a JSON-schema parameter map to the genai schema
// type. Only the subset used by the declaration table (object, string)
// is handled; unknown types fall back to string.
func convertSchema(params map[string]any) *genai.Schema {
	schema := &genai.Schema{}

	if desc, ok := params["description"].(string); ok {
		schema.Description = desc
	}

	switch params["type"] {
	case "object":
		schema.Type = genai.TypeObject
		if props, ok := params["properties"].(map[string]any); ok {
			schema.Properties = make(map[string]*genai.Schema, len(props))
			for name, raw := range props {
				if child, ok := raw.(map[string]any); ok {
					schema.Properties[name] = convertSchema(child)
				}
			}
		}
		if required, ok := params["required"].([]string); ok {
			schema.Required = required
		}
	default:
		schema.Type = genai.TypeString
	}

	return schema
}

// convertFunctionCalls maps Gemini function calls to ToolCalls. Gemini
// does not always assign call IDs; the tool name stands in so results
// can still be paired.
func convertFunctionCalls(calls []*genai.FunctionCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, call := range calls {
		id := call.ID
		if id == "" {
			id = call.Name
		}
		out[i] = ToolCall{
			ID:   id,
			Name: call.Name,
			Args: call.Args,
		}
	}
	return out
}

// extractSources collects the grounding chunks that carry a web citation,
// in the order the model returned them.
func extractSources(result *genai.GenerateContentResponse) []Source {
	var sources []Source
	for _, cand := range result.Candidates {
		if cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil {
				continue
			}
			sources = append(sources, Source{
				URI:   chunk.Web.URI,
				Title: chunk.Web.Title,
			})
		}
	}
	return sources
}
