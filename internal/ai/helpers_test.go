package ai

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/require"

	"github.com/lojasmm/sqldash/internal/config"
)

type reply struct {
	text string
	err  error
}

// scripted replays canned replies in order; the last one repeats.
type scripted struct {
	mu      sync.Mutex
	replies []reply
	convs   [][]Message
	tools   [][]ToolSpec
}

func script(replies ...reply) *scripted {
	return &scripted{replies: replies}
}

func (s *scripted) Complete(_ context.Context, conversation []Message, tools []ToolSpec) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs = append(s.convs, append([]Message(nil), conversation...))
	s.tools = append(s.tools, tools)
	r := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return r.text, r.err
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

func text(s string) reply { return reply{text: s} }

func textEnvelope(t *testing.T, content string) string {
	t.Helper()
	return envelope(t, map[string]any{"role": "assistant", "content": content})
}

func toolEnvelope(t *testing.T, calls ...ToolCall) string {
	t.Helper()
	return envelope(t, map[string]any{"role": "assistant", "content": nil, "tool_calls": calls})
}

func envelope(t *testing.T, message map[string]any) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"choices": []any{map[string]any{"index": 0, "message": message}},
	})
	require.NoError(t, err)
	return string(b)
}

func call(id, name, args string) ToolCall {
	return ToolCall{ID: id, Type: "function", Function: FunctionCall{Name: name, Arguments: args}}
}

type queryArgs struct {
	Query string `json:"query" jsonschema:"description=SELECT statement to run"`
}

type noArgs struct{}

// fakeTool records the arguments it was called with.
type fakeTool struct {
	name   string
	params *jsonschema.Schema
	fn     func(args json.RawMessage) (string, error)

	mu   sync.Mutex
	args []string
}

func (f *fakeTool) Name() string                   { return f.name }
func (f *fakeTool) Description() string            { return "fake " + f.name }
func (f *fakeTool) Parameters() *jsonschema.Schema { return f.params }

func (f *fakeTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	f.mu.Lock()
	f.args = append(f.args, string(args))
	f.mu.Unlock()
	return f.fn(args)
}

func (f *fakeTool) executions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.args...)
}

// newTestRegistry registers get_schema and read_query fakes.
func newTestRegistry(t *testing.T) (*Registry, *fakeTool, *fakeTool) {
	t.Helper()
	schemaTool := &fakeTool{
		name:   ToolGetSchema,
		params: ParametersFor(&noArgs{}),
		fn: func(json.RawMessage) (string, error) {
			return `[{"table_name":"sales","column_name":"amount","data_type":"numeric"}]`, nil
		},
	}
	queryTool := &fakeTool{
		name:   ToolReadQuery,
		params: ParametersFor(&queryArgs{}),
		fn: func(json.RawMessage) (string, error) {
			return `[{"name":"A","total_sales":10.5}]`, nil
		},
	}
	r := NewRegistry()
	require.NoError(t, r.Register(schemaTool))
	require.NoError(t, r.Register(queryTool))
	return r, schemaTool, queryTool
}

var testInstructions = config.Instructions{
	Agent:              "You answer questions about the shop database.",
	Analysis:           "Plan the SQL for a dashboard.",
	Metrics:            "Run the SQL and return metrics JSON only.",
	Render:             "Render the metrics as an HTML dashboard.",
	VisualizationTypes: json.RawMessage(`["bar_chart","table"]`),
}
