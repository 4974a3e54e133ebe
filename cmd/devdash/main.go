package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var (
	flagAddr     string
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "devdash",
	Short: "Run and watch local development servers",
	Long: `devdash supervises the dev servers of your projects: it starts them on
free ports, keeps their recent output, and streams it to the dashboard.

Projects are read from devdash.yaml (see DEVDASH_CONFIG). Running devdash
without a subcommand starts the dashboard server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "project configuration file (default $DEVDASH_CONFIG or devdash.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error (default $DEVDASH_LOG_LEVEL or info)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		logger.Warn("unknown log level, using info", "level", level)
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
