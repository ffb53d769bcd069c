// Command watchdog runs the portfolio watchdog agent.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/watchdog/internal/config"
	"github.com/run-bigpig/watchdog/internal/logger"
)

var (
	// Global flags
	logLevel    string
	metricsAddr string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "watchdog",
	Short: "Autonomous portfolio manager agent",
	Long: `watchdog is a conversational portfolio manager.

It reasons over your holdings with an LLM, calling local tools (news memory,
risk metrics, trading, alerts) and optional web search tools.

Run "watchdog chat --user <name>" to start an interactive session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.App.LogLevel = logLevel
		}
		if metricsAddr != "" {
			cfg.App.MetricsAddr = metricsAddr
		}
		if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(chatCmd, askCmd, toolsCmd, userCmd, mcpServerCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
