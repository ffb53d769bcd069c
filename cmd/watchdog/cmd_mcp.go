package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/run-bigpig/watchdog/internal/metrics"
	"github.com/run-bigpig/watchdog/internal/store"
)

// mcpServerCmd serves the local tools to external MCP clients
var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Serve the local tools over stdio",
	Long: `Runs the local tool provider (news memory, risk, trading, alerts) as an
MCP server on stdin/stdout. Logs go to stderr.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		db, err := store.Open(ctx, cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		server, err := newLocalServer(ctx, db, metrics.New(prometheus.NewRegistry()))
		if err != nil {
			return err
		}
		log.Info("serving local tools on stdio")
		return server.Run(ctx, &mcp.StdioTransport{})
	},
}
