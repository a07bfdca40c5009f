package serv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dosco/graphjin/populate/v3/core"
	"github.com/mark3labs/mcp-go/mcp"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const queryHelp = "Query object with optional keys: filter (extended JSON document), " +
	"select or omit ({field: true}), populate ({relation: true} or " +
	"{relation: {select, omit, populate, sort, skip, limit}}), sort ({field: 1|-1}), skip, limit."

// registerTools registers all MCP tools with the server
func (ms *mcpServer) registerTools() {
	ms.srv.AddTool(mcp.NewTool(
		"list_schemas",
		mcp.WithDescription("List the configured schemas with their collections, "+
			"virtual fields and relations. Call this first to learn which relations can be populated."),
	), ms.handleListSchemas)

	ms.srv.AddTool(mcp.NewTool(
		"explain_populate",
		mcp.WithDescription("Compile a query with populated relations WITHOUT executing it. "+
			"Returns the single aggregation pipeline that would be sent and its join depth."),
		mcp.WithString("schema",
			mcp.Required(),
			mcp.Description("Name of the root schema"),
		),
		mcp.WithObject("query",
			mcp.Description(queryHelp),
		),
	), ms.handleExplainPopulate)

	if ms.service.conf.MCP.AllowQueries {
		ms.srv.AddTool(mcp.NewTool(
			"populate",
			mcp.WithDescription("Run a query and return the documents with their requested "+
				"relations populated in place."),
			mcp.WithString("schema",
				mcp.Required(),
				mcp.Description("Name of the root schema"),
			),
			mcp.WithObject("query",
				mcp.Description(queryHelp),
			),
			mcp.WithBoolean("one",
				mcp.Description("Return only the first document, or null"),
			),
		), ms.handlePopulate)
	}
}

// mcpToolList returns the names of the tools registered for conf
func mcpToolList(conf *Config) []string {
	tools := []string{"list_schemas", "explain_populate"}
	if conf.MCP.AllowQueries {
		tools = append(tools, "populate")
	}
	return tools
}

func (ms *mcpServer) handleListSchemas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := mcpMarshalJSON(ms.service.engine.Schemas(), true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (ms *mcpServer) handleExplainPopulate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	schema, q, err := toolQuery(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	c, err := ms.service.engine.Explain(schema, q)
	if err != nil {
		return mcp.NewToolResultError("explain failed: " + err.Error()), nil
	}

	data, err := mcpMarshalJSON(c, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (ms *mcpServer) handlePopulate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !ms.service.conf.MCP.AllowQueries {
		return mcp.NewToolResultError("queries are not allowed. Enable mcp.allow_queries in config."), nil
	}

	schema, q, err := toolQuery(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if limit := ms.service.conf.MCP.MaxResults; limit > 0 {
		if q.Limit == nil || *q.Limit > limit {
			q.Limit = &limit
		}
	}

	one, _ := req.GetArguments()["one"].(bool)

	var out any
	if one {
		out, err = ms.service.engine.FindOne(ctx, schema, q)
	} else {
		out, err = ms.service.engine.Find(ctx, schema, q)
	}
	if err != nil {
		return mcp.NewToolResultError("populate failed: " + err.Error()), nil
	}

	data, err := bson.MarshalExtJSON(bson.D{{Key: "data", Value: out}}, false, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

// toolQuery reads the schema and query arguments of a tool call
func toolQuery(req mcp.CallToolRequest) (string, core.Query, error) {
	args := req.GetArguments()

	schema, _ := args["schema"].(string)
	if schema == "" {
		return "", core.Query{}, fmt.Errorf("schema is required")
	}

	v, ok := args["query"]
	if !ok || v == nil {
		return schema, core.Query{}, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "", core.Query{}, fmt.Errorf("invalid query: %w", err)
	}

	q, err := core.ParseQueryJSON(b)
	if err != nil {
		return "", core.Query{}, core.WithSchema(err, schema)
	}
	return schema, q, nil
}
