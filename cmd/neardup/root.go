package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	nlog "github.com/nao1215/neardup/internal/log"
)

// Exit codes of the neardup binary.
const (
	exitOK        = 0
	exitError     = 1
	exitCancelled = 130
)

// NewRootCmd creates the neardup command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neardup",
		Short: "Exact-line and near-duplicate removal for text corpora",
		Long: `neardup deduplicates a corpus of text documents.

It removes lines that occur in more than one document, then finds
near-duplicate documents with MinHash signatures and locality-sensitive
hashing, keeping one representative per group of similar documents.
An optional quality stage drops documents that fail simple heuristics.

Every run is recorded in a local history database so that you can later
find out why a document is missing from an output.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Log debug messages and list every group in reports")
	pf.Bool("log-json", false, "Write logs to stderr as JSON lines")

	cmd.AddCommand(
		NewRunCmd(),
		NewHistoryCmd(),
		NewInitCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// Execute runs the CLI and exits the process with exitCode of the result.
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "neardup:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process exit status. An interrupted
// run exits like a process killed by SIGINT.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitCancelled
	default:
		return exitError
	}
}

// getVerboseFlag reports whether --verbose is set. Subcommands see the
// persistent flag after parsing; a command used on its own has none.
func getVerboseFlag(cmd *cobra.Command) bool {
	if v, err := cmd.Flags().GetBool("verbose"); err == nil {
		return v
	}
	if v, err := cmd.Root().PersistentFlags().GetBool("verbose"); err == nil {
		return v
	}
	return false
}

// setupLogger builds the process logger on the command's stderr.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	verbose := getVerboseFlag(cmd)
	if jsonLogs, err := cmd.Flags().GetBool("log-json"); err == nil && jsonLogs {
		return nlog.NewJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return nlog.NewLogger(cmd.ErrOrStderr(), verbose)
}
