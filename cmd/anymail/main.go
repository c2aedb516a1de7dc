// Package main is the entry point for the anymail command line tool.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/shineum/anymail-lite/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "anymail",
		Short: "Send email through a transactional email provider",
		Long: `Send one message through SendGrid, Amazon SES or Microsoft Graph and print
the normalized delivery status.

Configuration is read from an optional YAML file and ANYMAIL_* environment
variables, which take precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to YAML configuration file (optional)")

	root.AddCommand(newSendCmd())
	root.AddCommand(newProvidersCmd())
	return root
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger configures the global slog logger with JSON output at the
// configured level. Logs go to stderr unless a log file is configured; the
// returned func releases it.
func setupLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, func()) {
	out := stderr
	closeLog := func() {}
	if cfg.Logging.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		out = rotating
		closeLog = func() { _ = rotating.Close() }
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	return logger, closeLog
}
