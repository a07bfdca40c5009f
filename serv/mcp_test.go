package serv

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func newTestMCP(t *testing.T, yaml string, exec *fakeExec) *mcpServer {
	t.Helper()
	s1 := newTestService(t, yaml, exec)
	return s1.Load().(*service).newMCPServer()
}

// newToolRequest builds a CallToolRequest with the given arguments
func newToolRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func toolText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", res.Content[0])
	return tc.Text
}

// assertToolError asserts that the result is an error containing the given substring
func assertToolError(t *testing.T, res *mcp.CallToolResult, contains string) {
	t.Helper()
	require.NotNil(t, res)
	assert.True(t, res.IsError, "expected error result")
	assert.Contains(t, toolText(t, res), contains)
}

func TestMCPListSchemas(t *testing.T) {
	ms := newTestMCP(t, blogYAML, newBlogExec())

	res, err := ms.handleListSchemas(context.Background(), newToolRequest(nil))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolText(t, res)), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "posts", out[1]["name"])
}

func TestMCPExplainPopulate(t *testing.T) {
	ms := newTestMCP(t, blogYAML, newBlogExec())

	res, err := ms.handleExplainPopulate(context.Background(), newToolRequest(map[string]any{
		"schema": "posts",
		"query":  map[string]any{"populate": map[string]any{"author": true}},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, toolText(t, res))
	assert.Contains(t, toolText(t, res), `"$lookup"`)
	assert.Contains(t, toolText(t, res), `"depth": 1`)
}

func TestMCPToolErrors(t *testing.T) {
	ms := newTestMCP(t, blogYAML, newBlogExec())
	ctx := context.Background()

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]any
		want    string
	}{
		{"explain without schema", ms.handleExplainPopulate, map[string]any{}, "schema is required"},
		{"explain unknown relation", ms.handleExplainPopulate, map[string]any{
			"schema": "posts",
			"query":  map[string]any{"populate": map[string]any{"editor": true}},
		}, "explain failed"},
		{"populate unknown schema", ms.handlePopulate, map[string]any{"schema": "nope"}, "populate failed"},
		{"populate bad query", ms.handlePopulate, map[string]any{
			"schema": "posts",
			"query":  map[string]any{"where": map[string]any{}},
		}, "where"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.handler(ctx, newToolRequest(tt.args))
			require.NoError(t, err)
			assertToolError(t, res, tt.want)
		})
	}
}

func TestMCPPopulate(t *testing.T) {
	exec := newBlogExec()
	ms := newTestMCP(t, blogYAML+"\nmcp:\n  max_results: 5\n", exec)

	res, err := ms.handlePopulate(context.Background(), newToolRequest(map[string]any{
		"schema": "posts",
		"query": map[string]any{
			"populate": map[string]any{"author": true},
			"limit":    50,
		},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, toolText(t, res))

	var out struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(t, res)), &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, "Ada", out.Data[0]["author"].(map[string]any)["name"])

	assert.Contains(t, exec.last(), bson.D{{Key: "$limit", Value: int64(5)}})
}

func TestMCPQueriesDisabled(t *testing.T) {
	ms := newTestMCP(t, blogYAML+"\nmcp:\n  allow_queries: false\n", newBlogExec())

	assert.Equal(t, []string{"list_schemas", "explain_populate"}, mcpToolList(ms.service.conf))

	res, err := ms.handlePopulate(context.Background(), newToolRequest(map[string]any{"schema": "posts"}))
	require.NoError(t, err)
	assertToolError(t, res, "not allowed")
}

func TestMCPHandlerDisabled(t *testing.T) {
	s1 := newTestService(t, blogYAML+"\nmcp:\n  disable: true\n", newBlogExec())
	ts := newTestServer(t, s1)

	res, _ := post(t, ts.URL+routeMCP, `{}`)
	assert.Equal(t, 404, res.StatusCode)
	assert.True(t, strings.HasPrefix(mcpMode(s1.Config()), "disabled"))
}
