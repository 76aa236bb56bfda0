package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	tlog "github.com/nao1215/threadtracker/internal/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for threadtracker.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threadtracker",
		Short: "Role-play thread tracker for Jcink forums",
		Long: `threadtracker lists the threads a Jcink forum user has posted in and
marks each one as owed (someone else posted last) or completed (the user
posted last). Closed threads and threads in archive forums are listed
separately.

Runs are kept in a local history database so that successive runs can be
compared with 'threadtracker history'.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")

	cmd.AddCommand(NewTrackCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	return getGlobalBool(cmd, "verbose")
}

// getLogJSONFlag retrieves the log-json flag from the command or its parent.
func getLogJSONFlag(cmd *cobra.Command) bool {
	return getGlobalBool(cmd, "log-json")
}

func getGlobalBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// setupLogger creates the process logger. Credentials in cookies, headers
// and proxy URLs are masked before anything reaches stderr.
func setupLogger(w io.Writer, verbose, jsonFormat bool) *slog.Logger {
	if jsonFormat {
		return tlog.NewSecureJSONLogger(w, verbose)
	}
	return tlog.NewSecureLogger(w, verbose)
}
