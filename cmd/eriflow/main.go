// CLAUDE:SUMMARY CLI entry point for eriflow: batch runs, journal queries, HTTP and MCP servers, Sheets sync.
// Command eriflow automates ERI assessor lookups.
//
// Usage:
//
//	eriflow run "ERI Code=4006, ERI Location=Dallas, Texas, Revenue=565000000, Industry=All Industries - Diversified, Years of Experience=11, Mean"
//	eriflow run --input records.csv --keep-open
//	pbpaste | eriflow run                  # tab-separated rows from a spreadsheet
//	eriflow results [batch-id]
//	eriflow lookup 4006 --statistic Mean
//	eriflow serve
//	eriflow mcp
//	eriflow sheets push|pull|column ...
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/eriflow/config"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "eriflow",
		Short:         "eriflow drives the ERI assessor web form and journals the results.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.logger = newLogger(a.logLevel)
			slog.SetDefault(a.logger)
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "eriflow.yaml", "configuration file (eriflow.local.yaml overrides it)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		a.runCmd(),
		a.resultsCmd(),
		a.lookupCmd(),
		a.serveCmd(),
		a.mcpCmd(),
		a.sheetsCmd(),
	)
	return root
}

func newLogger(name string) *slog.Logger {
	var level slog.Level
	switch name {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
