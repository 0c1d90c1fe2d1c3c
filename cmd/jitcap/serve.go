package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dusk-indust/jitcap/internal/mcptools"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr string
		demo bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the hydration cache as an MCP server",
		Long: `Serve runs the jitcap gateway: discover_tools, preview_tools,
hydrate_tool, execute_tool, list_active_tools and clear_tools. Stdio is used
unless --http is given; over HTTP every MCP session has its own tool set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := a.open(ctx, demo)
			if err != nil {
				return err
			}
			defer e.Close()

			logger := a.logger.Named("gateway")
			if addr != "" {
				logger.Info("serving MCP over HTTP", zap.String("addr", addr))
				return mcptools.RunHTTP(ctx, mcptools.NewHTTPHandler(e.newCache, logger), addr)
			}

			server := mcptools.NewGatewayMCPServer(mcptools.NewGatewayService(e.cache, logger))
			logger.Info("serving MCP over stdio")
			err = mcptools.RunStdio(ctx, server)
			if err != nil && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "http", "", "serve streamable HTTP on this address instead of stdio")
	cmd.Flags().BoolVar(&demo, "demo", false, "use the built-in demo catalog and in-process tools")
	return cmd
}
