// Package mcptools exposes a hydration cache to external agents as an MCP
// server.
package mcptools

import (
	"context"
	"net/http"

	"github.com/dusk-indust/jitcap/internal/hydration"
	"github.com/dusk-indust/jitcap/internal/orchestrator"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// version is set by the linker at build time.
var version = "dev"

// NewGatewayMCPServer creates an MCP server with the 6 gateway tools registered.
func NewGatewayMCPServer(svc *GatewayService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "jitcap-gateway",
		Version: version,
	}, nil)

	discover := orchestrator.DiscoveryTool()
	mcp.AddTool(server, &mcp.Tool{
		Name:        discover.Name,
		Description: discover.Description,
		InputSchema: orchestrator.DiscoveryInputSchema(),
	}, svc.DiscoverTools)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "preview_tools",
		Description: "Search the capability registry without loading anything. Returns name, description, category and origin of each candidate.",
	}, svc.PreviewTools)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "hydrate_tool",
		Description: "Load one registered capability by exact name. Other tools of the same origin may be loaded with it.",
	}, svc.HydrateTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "execute_tool",
		Description: "Invoke a tool previously loaded with discover_tools. Fails with the list of loaded tools if the name was never loaded.",
	}, svc.ExecuteTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_active_tools",
		Description: "List the tools currently loaded and the origins they came from.",
	}, svc.ListActiveTools)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_tools",
		Description: "Unload every tool. Origins are contacted again on the next discovery.",
	}, svc.ClearTools)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// NewHTTPHandler serves the gateway over streamable HTTP. Every MCP session
// gets its own cache from newCache, so one agent clearing its tools does not
// affect another.
func NewHTTPHandler(newCache func() *hydration.Cache, logger *zap.Logger) http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return NewGatewayMCPServer(NewGatewayService(newCache(), logger))
		},
		nil,
	)
}

// RunHTTP serves handler on addr until ctx is cancelled.
func RunHTTP(ctx context.Context, handler http.Handler, addr string) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
