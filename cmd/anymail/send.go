package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shineum/anymail-lite/internal/dispatch"
	"github.com/shineum/anymail-lite/internal/message"
	"github.com/shineum/anymail-lite/internal/provider"
	"github.com/shineum/anymail-lite/internal/transport"
)

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one message and print its delivery status",
		Long: `Send one message through the configured provider and print the normalized
status as JSON.

Examples:
  anymail send --config anymail.yaml --message welcome.yaml
  anymail send --config anymail.yaml --eml outgoing.eml
  anymail send --config anymail.yaml --message welcome.yaml --dry-run`,
		Args: cobra.NoArgs,
		RunE: runSend,
	}
	cmd.Flags().String("message", "", "path to a YAML message file")
	cmd.Flags().String("eml", "", "path to a raw RFC 5322 message")
	cmd.Flags().Bool("dry-run", false, "print the provider request instead of sending it")
	cmd.MarkFlagsMutuallyExclusive("message", "eml")
	cmd.MarkFlagsOneRequired("message", "eml")
	return cmd
}

func runSend(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog := setupLogger(cfg, cmd.ErrOrStderr())
	defer closeLog()

	msg, err := readMessage(cmd)
	if err != nil {
		return err
	}

	var t provider.Transport
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		t = transport.NewStdoutWithWriter(cmd.OutOrStdout())
	} else {
		t = transport.NewHTTP(cfg.HTTP.Timeout)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := dispatch.New(t, dispatch.WithLogger(logger)).Send(ctx, msg, cfg.Dispatch())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func readMessage(cmd *cobra.Command) (*message.Message, error) {
	if path, _ := cmd.Flags().GetString("eml"); path != "" {
		return loadEML(path)
	}
	path, _ := cmd.Flags().GetString("message")
	return loadMessageFile(path)
}

