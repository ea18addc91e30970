// Package mcptools exposes repository reads and writes as MCP tools.
package mcptools

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewGraphMCPServer creates an MCP server with all graph tools registered.
func NewGraphMCPServer(svc *GraphService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "graphogm",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "graph_stats",
		Description: "Count all vertices and the vertices of each registered entity label.",
	}, svc.GraphStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_vertices",
		Description: "List vertices of a label in insertion order, optionally filtered by exact property values.",
	}, svc.FindVertices)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_vertex",
		Description: "Read one vertex and its properties by identity.",
	}, svc.GetVertex)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_vertex",
		Description: "Create a vertex with a label and properties. Returns the new identity.",
	}, svc.CreateVertex)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_vertex",
		Description: "Merge properties into an existing vertex. Reports false when the vertex does not exist.",
	}, svc.UpdateVertex)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_edge",
		Description: "Create an edge between two existing vertices. Direction both creates one edge each way.",
	}, svc.AddEdge)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "link",
		Description: "Find or create both endpoint vertices by label and properties, then add an edge from the first to the second.",
	}, svc.Link)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "traverse",
		Description: "Return the distinct neighbours of a vertex one hop away, or up to depth outgoing hops.",
	}, svc.Traverse)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_path",
		Description: "Enumerate the simple outgoing paths between two vertices up to a maximum number of hops.",
	}, svc.FindPath)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_vertex",
		Description: "Delete a vertex and its edges.",
	}, svc.DeleteVertex)

	return server
}

// RunMCPServer starts an HTTP server exposing the graph MCP tools.
func RunMCPServer(ctx context.Context, svc *GraphService, addr string) error {
	server := NewGraphMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RunMCPServerStdio runs the MCP server on stdio transport, blocking until
// stdin is closed or the context is cancelled.
func RunMCPServerStdio(ctx context.Context, svc *GraphService) error {
	return NewGraphMCPServer(svc).Run(ctx, &mcp.StdioTransport{})
}
