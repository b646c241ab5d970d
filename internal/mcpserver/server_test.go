package mcpserver

import (
	"context"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	queries []string
}

func (g *fakeGateway) SchemaJSON(context.Context) string {
	return `[{"table_name":"products","column_name":"id","data_type":"INTEGER"}]`
}

func (g *fakeGateway) QueryJSON(_ context.Context, q string) string {
	g.queries = append(g.queries, q)
	if q == "DELETE FROM products" {
		return `{"error":"query error: only SELECT queries are allowed"}`
	}
	return `[{"n":1}]`
}

func connect(t *testing.T, g *fakeGateway) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverT, clientT := mcp.NewInMemoryTransports()

	ss, err := New(g, "test").Connect(ctx, serverT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestListTools(t *testing.T) {
	cs := connect(t, &fakeGateway{})

	res, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"get_schema", "read_query"}, names)
}

func TestCallTools(t *testing.T) {
	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"schema", "get_schema", map[string]any{}, `[{"table_name":"products","column_name":"id","data_type":"INTEGER"}]`},
		{"select", "read_query", map[string]any{"query": "SELECT 1 AS n"}, `[{"n":1}]`},
		{"guard rejection is data", "read_query", map[string]any{"query": "DELETE FROM products"}, `{"error":"query error: only SELECT queries are allowed"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := connect(t, &fakeGateway{})
			res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: tt.tool, Arguments: tt.args})
			require.NoError(t, err)
			assert.False(t, res.IsError)
			assert.Equal(t, tt.want, text(t, res))
		})
	}
}

func TestReadQueryForwardsStatement(t *testing.T) {
	g := &fakeGateway{}
	cs := connect(t, g)

	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "read_query",
		Arguments: map[string]any{"query": "SELECT name FROM products"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT name FROM products"}, g.queries)
}
