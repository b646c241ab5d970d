package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/lojasmm/sqldash/internal/ai"
	"github.com/lojasmm/sqldash/internal/config"
)

type captured struct {
	path   string
	query  string
	header http.Header
	body   map[string]any
}

func newServer(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.header = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

type queryArgs struct {
	Query string `json:"query"`
}

func manifest() []ai.ToolSpec {
	return []ai.ToolSpec{{
		Type: "function",
		Function: ai.FunctionSpec{
			Name:        ai.ToolReadQuery,
			Description: "run a query",
			Parameters:  ai.ParametersFor(&queryArgs{}),
		},
	}}
}

const envelope = `{"id":"chatcmpl-1","choices":[{"index":0,"message":{"role":"assistant","content":"hi"}}]}`

func TestOpenAIComplete(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, envelope)
	c := NewOpenAI(config.LLM{APIKey: "sk-test", Model: "gpt-4.1-mini", BaseURL: srv.URL + "/v1", Timeout: time.Second})

	out, err := c.Complete(context.Background(), []ai.Message{ai.SystemMessage("sys"), ai.UserMessage("q")}, manifest())
	require.NoError(t, err)

	assert.Equal(t, envelope, out)
	assert.Equal(t, "/v1/chat/completions", got.path)
	assert.Equal(t, "Bearer sk-test", got.header.Get("Authorization"))
	assert.Equal(t, "gpt-4.1-mini", got.body["model"])
	assert.Equal(t, "auto", got.body["tool_choice"])
	require.Len(t, got.body["tools"], 1)
	require.Len(t, got.body["messages"], 2)
}

func TestOpenAIOmitsToolsWhenNoneOffered(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, envelope)
	c := NewOpenAI(config.LLM{APIKey: "k", Model: "m", BaseURL: srv.URL})

	_, err := c.Complete(context.Background(), []ai.Message{ai.UserMessage("q")}, nil)
	require.NoError(t, err)
	assert.NotContains(t, got.body, "tools")
	assert.NotContains(t, got.body, "tool_choice")
}

func TestOpenAISendsToolRounds(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, envelope)
	c := NewOpenAI(config.LLM{APIKey: "k", Model: "m", BaseURL: srv.URL})

	call := ai.ToolCall{ID: "call_1", Type: "function", Function: ai.FunctionCall{Name: ai.ToolReadQuery, Arguments: `{"query":"SELECT 1"}`}}
	conversation := []ai.Message{
		ai.UserMessage("q"),
		{Role: ai.RoleAssistant, ToolCalls: []ai.ToolCall{call}},
		ai.ToolMessage(call, `[{"n":1}]`),
	}
	_, err := c.Complete(context.Background(), conversation, manifest())
	require.NoError(t, err)

	messages, ok := got.body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 3)

	assistant := messages[1].(map[string]any)
	assert.Equal(t, "assistant", assistant["role"])
	calls := assistant["tool_calls"].([]any)
	require.Len(t, calls, 1)
	fn := calls[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "read_query", fn["name"])
	assert.Equal(t, `{"query":"SELECT 1"}`, fn["arguments"])

	tool := messages[2].(map[string]any)
	assert.Equal(t, "tool", tool["role"])
	assert.Equal(t, "call_1", tool["tool_call_id"])
	assert.Equal(t, `[{"n":1}]`, tool["content"])
}

func TestAzureComplete(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, envelope)
	c := NewAzure(config.LLM{Endpoint: srv.URL, APIKey: "az-key", Deployment: "gpt-4", APIVersion: "2024-02-15-preview"})

	out, err := c.Complete(context.Background(), []ai.Message{ai.UserMessage("q")}, nil)
	require.NoError(t, err)
	assert.Equal(t, envelope, out)

	assert.Equal(t, "/openai/deployments/gpt-4/chat/completions", got.path)
	assert.Equal(t, "api-version=2024-02-15-preview", got.query)
	assert.Equal(t, "az-key", got.header.Get("api-key"))
	assert.Empty(t, got.header.Get("Authorization"))
}

func TestChatClientStatusError(t *testing.T) {
	srv, _ := newServer(t, http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`)
	c := NewOpenAI(config.LLM{APIKey: "k", BaseURL: srv.URL})

	_, err := c.Complete(context.Background(), []ai.Message{ai.UserMessage("q")}, nil)
	require.Error(t, err)

	var apiErr *openai.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "slow down")
}

func TestNewValidatesProvider(t *testing.T) {
	_, err := New(context.Background(), config.LLM{Provider: config.ProviderOpenAI})
	require.Error(t, err)
	assert.Equal(t, ai.KindConfig, ai.KindOf(err))

	_, err = New(context.Background(), config.LLM{})
	assert.Error(t, err)

	c, err := New(context.Background(), config.LLM{Provider: config.ProviderAzure, Endpoint: "https://x", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &ChatClient{}, c)
}

func TestToContents(t *testing.T) {
	calls := ai.Message{
		Role: ai.RoleAssistant,
		ToolCalls: []ai.ToolCall{
			{ID: "c1", Function: ai.FunctionCall{Name: ai.ToolGetSchema, Arguments: `{}`}},
			{ID: "c2", Function: ai.FunctionCall{Name: ai.ToolReadQuery, Arguments: `{"query":"SELECT 1"}`}},
		},
	}
	conv := []ai.Message{
		ai.SystemMessage("be precise"),
		ai.UserMessage("how many?"),
		calls,
		ai.ToolMessage(calls.ToolCalls[0], `[{"table_name":"t"}]`),
		ai.ToolMessage(calls.ToolCalls[1], `{"error":"query error: boom"}`),
	}

	system, contents, err := toContents(conv)
	require.NoError(t, err)

	assert.Equal(t, "be precise", system.Parts[0].Text)
	require.Len(t, contents, 3)

	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, "how many?", contents[0].Parts[0].Text)

	assert.Equal(t, genai.RoleModel, contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, map[string]any{"query": "SELECT 1"}, contents[1].Parts[1].FunctionCall.Args)

	// both tool results share one user turn
	require.Len(t, contents[2].Parts, 2)
	first := contents[2].Parts[0].FunctionResponse
	assert.Equal(t, "c1", first.ID)
	assert.Equal(t, ai.ToolGetSchema, first.Name)
	assert.Equal(t, map[string]any{"output": []any{map[string]any{"table_name": "t"}}}, first.Response)
	assert.Equal(t, map[string]any{"error": "query error: boom"}, contents[2].Parts[1].FunctionResponse.Response)
}

func TestEncodeReply(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
				{Text: "thinking", Thought: true},
				{FunctionCall: &genai.FunctionCall{Name: ai.ToolReadQuery, Args: map[string]any{"query": "SELECT 1"}}},
				{FunctionCall: &genai.FunctionCall{ID: "fc-2", Name: ai.ToolGetSchema}},
			}},
		}},
	}

	raw, err := encodeReply(resp)
	require.NoError(t, err)

	msg, err := ai.ParseCompletion(raw)
	require.NoError(t, err)
	assert.Nil(t, msg.Content)
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, "call_1", msg.ToolCalls[0].ID)
	assert.JSONEq(t, `{"query":"SELECT 1"}`, msg.ToolCalls[0].Function.Arguments)
	assert.Equal(t, "fc-2", msg.ToolCalls[1].ID)
	assert.Equal(t, `{}`, msg.ToolCalls[1].Function.Arguments)
}

func TestGeminiComplete(t *testing.T) {
	reply := `{"candidates":[{"content":{"role":"model","parts":[{"text":"Three tables."}]},"finishReason":"STOP"}]}`
	srv, got := newServer(t, http.StatusOK, reply)

	g, err := newGemini(context.Background(),
		config.LLM{APIKey: "g-key", Model: "gemini-2.0-flash"},
		genai.HTTPOptions{BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	out, err := g.Complete(context.Background(), []ai.Message{ai.SystemMessage("sys"), ai.UserMessage("q")}, manifest())
	require.NoError(t, err)

	msg, err := ai.ParseCompletion(out)
	require.NoError(t, err)
	assert.Equal(t, "Three tables.", msg.Text())

	assert.True(t, strings.HasSuffix(got.path, "models/gemini-2.0-flash:generateContent"), got.path)
	assert.Contains(t, got.body, "systemInstruction")
	assert.Contains(t, got.body, "tools")
}
