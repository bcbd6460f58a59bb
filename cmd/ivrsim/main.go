// Command ivrsim drives the IVR dialogue engine from a terminal, without a
// telephony provider, and mints operator tokens for the admin API.
package main

import (
	"log/slog"
	"os"

	"ivr-platform/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	// Logs go to stderr so they never interleave with the conversation.
	slog.SetDefault(logger.NewWriter(os.Stderr, os.Getenv("APP_ENV")))

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ivrsim",
		Short: "Talk to the railway IVR from a terminal",
		Long: `ivrsim runs the IVR dialogue engine in-process.

Type what a caller would say or the keypad digit they would press.
Each line is one turn; an empty line is a silent turn.`,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildChatCmd(), buildTokenCmd())
	return rootCmd
}
