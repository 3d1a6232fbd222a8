package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/neardup/internal/config"
	"github.com/nao1215/neardup/internal/database"
	"github.com/nao1215/neardup/internal/model"
	"github.com/nao1215/neardup/internal/report"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// This command reads past runs from the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs and document provenance",
		Long: `History displays runs recorded in the history database.

Without flags it lists recent runs. With --run-id it prints the full report
of one run. With --doc it shows every recorded decision about a document,
answering why a document was removed and which document replaced it.

Examples:
  # List the 20 most recent runs
  neardup history

  # Show the report of run 7 as Markdown
  neardup history --run-id 7 --markdown

  # Show only the counters of run 7
  neardup history --run-id 7 --summary

  # Find out what happened to a document
  neardup history --doc news/2024/article-17.txt

  # Output the run list as JSON
  neardup history --json --limit 100`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("run-id", "i", 0,
		"Show the full report of a specific run")
	cmd.Flags().StringP("doc", "d", "",
		"Show every recorded decision about a document ID")
	cmd.Flags().BoolP("summary", "s", false,
		"With --run-id, show only the summary of the run")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of runs to list (0 for all)")
	cmd.Flags().String("db-dir", "",
		"Directory of the run history database (default: XDG data directory)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	runID    int64
	docID    string
	summary  bool
	limit    int
	dbDir    string
	json     bool
	markdown bool
	verbose  bool
}

// parseHistoryFlags reads and checks the history flags.
func parseHistoryFlags(cmd *cobra.Command) (*historyOptions, error) {
	opts := &historyOptions{verbose: getVerboseFlag(cmd)}
	var err error

	if opts.runID, err = cmd.Flags().GetInt64("run-id"); err != nil {
		return nil, err
	}
	if opts.docID, err = cmd.Flags().GetString("doc"); err != nil {
		return nil, err
	}
	if opts.summary, err = cmd.Flags().GetBool("summary"); err != nil {
		return nil, err
	}
	if opts.limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return nil, err
	}
	if opts.dbDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return nil, err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}

	if opts.json && opts.markdown {
		return nil, config.ErrConflictingReportFormats
	}
	if opts.runID != 0 && opts.docID != "" {
		return nil, fmt.Errorf("--run-id and --doc cannot be used together")
	}
	if opts.summary && opts.runID == 0 {
		return nil, fmt.Errorf("--summary requires --run-id")
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}
	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	// Validate flags before opening the database
	opts, err := parseHistoryFlags(cmd)
	if err != nil {
		return err
	}

	db, err := database.Open(opts.dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database (no runs recorded yet?): %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	switch {
	case opts.runID != 0:
		return showRun(ctx, db, opts, out)
	case opts.docID != "":
		return lookupDocument(ctx, db, opts, out)
	default:
		return listRuns(ctx, db, opts, out)
	}
}

// showRun prints the full report of one run.
func showRun(ctx context.Context, db *database.RunDB, opts *historyOptions, out io.Writer) error {
	runReport, err := db.GetRun(ctx, opts.runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	if runReport == nil {
		return fmt.Errorf("run %d not found (use 'neardup history' to list runs)", opts.runID)
	}

	var w report.Writer
	switch {
	case opts.json:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(opts.verbose))
	}
	if opts.summary {
		_, err = w.WriteSummary(model.NewSummary(runReport))
		return err
	}
	_, err = w.Write(runReport)
	return err
}

// listRuns prints recent runs.
func listRuns(ctx context.Context, db *database.RunDB, opts *historyOptions, out io.Writer) error {
	runs, err := db.ListRuns(ctx, opts.limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if opts.json {
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(runs)
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found in the database.")
		fmt.Fprintln(out, "\nUse 'neardup run' to deduplicate a corpus.")
		return nil
	}

	if opts.markdown {
		rows := make([][]string, len(runs))
		for i, r := range runs {
			rows[i] = []string{
				strconv.FormatInt(r.ID, 10),
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				strconv.Itoa(r.DocumentsRead),
				strconv.Itoa(r.DocumentsWritten),
				strconv.Itoa(r.DocumentsRemoved),
				runStatus(r),
			}
		}
		md := markdown.NewMarkdown(out)
		md.H2("Run History")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"ID", "Started", "Read", "Written", "Removed", "Status"},
			Rows:   rows,
		})
		return md.Build()
	}

	fmt.Fprintf(out, "Run history (%d runs):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-19s  %8s  %8s  %8s  %s\n", "ID", "Started", "Read", "Written", "Removed", "Status")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))
	for _, r := range runs {
		fmt.Fprintf(out, "  %-6d  %-19s  %8d  %8d  %8d  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.DocumentsRead,
			r.DocumentsWritten,
			r.DocumentsRemoved,
			runStatus(r),
		)
	}
	fmt.Fprintln(out, "\nUse 'neardup history --run-id <id>' to see the report of a run.")
	return nil
}

// runStatus summarizes how a run ended.
func runStatus(r database.RunRecord) string {
	switch {
	case r.TimedOut:
		return "cancelled"
	case r.Error != "":
		return "failed"
	case r.Failures > 0:
		return fmt.Sprintf("ok (%d failures)", r.Failures)
	default:
		return "ok"
	}
}

// lookupDocument prints the provenance of a document.
func lookupDocument(ctx context.Context, db *database.RunDB, opts *historyOptions, out io.Writer) error {
	records, err := db.LookupDocument(ctx, opts.docID)
	if err != nil {
		return fmt.Errorf("failed to look up document: %w", err)
	}

	if opts.json {
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(records)
		return err
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No decisions recorded for %s.\n", opts.docID)
		fmt.Fprintln(out, "\nDocuments that were kept without being part of a duplicate group are not recorded.")
		return nil
	}

	fmt.Fprintf(out, "Decisions for %s (%d):\n\n", opts.docID, len(records))
	for _, rec := range records {
		fmt.Fprintf(out, "  run %-6d %s  [%s] %s\n",
			rec.RunID,
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Step,
			describeDecision(rec),
		)
	}
	return nil
}

// describeDecision renders one decision as a sentence.
func describeDecision(rec database.DocumentRecord) string {
	switch {
	case rec.Retained:
		return "retained as group representative"
	case rec.SupersededBy != "":
		return fmt.Sprintf("removed, near-duplicate of %s (similarity %.3f)", rec.SupersededBy, rec.Similarity)
	case rec.Reason != "":
		return "dropped by quality rule " + rec.Reason
	default:
		return "removed"
	}
}
