package serv

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// mcpMarshalJSON marshals data to JSON without HTML escaping
func mcpMarshalJSON(v any, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// mcpServer wraps the MCP server instance
type mcpServer struct {
	srv     *server.MCPServer
	service *service
}

func (s *service) newMCPServer() *mcpServer {
	// Some clients prefix tool names with "server_name:"
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		if idx := strings.LastIndex(req.Params.Name, ":"); idx != -1 {
			req.Params.Name = req.Params.Name[idx+1:]
		}
	})

	mcpSrv := server.NewMCPServer(
		"populate",
		version,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)

	ms := &mcpServer{srv: mcpSrv, service: s}
	ms.registerTools()
	return ms
}

// RunMCPStdio runs the MCP server using stdio transport
func (s1 *HttpService) RunMCPStdio(ctx context.Context) error {
	s := s1.Load().(*service)

	if s.conf.MCP.Disable {
		s.log.Warn("MCP is disabled in configuration")
	}
	return server.NewStdioServer(s.newMCPServer().srv).Listen(ctx, os.Stdin, os.Stdout)
}

// MCPHandler returns a stateless streamable HTTP handler for MCP
func (s1 *HttpService) MCPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)

		if s.conf.MCP.Disable {
			http.Error(w, "MCP is disabled", http.StatusNotFound)
			return
		}

		ms := s.newMCPServer()
		httpServer := server.NewStreamableHTTPServer(ms.srv, server.WithStateLess(true))
		httpServer.ServeHTTP(w, r)
	})
}
