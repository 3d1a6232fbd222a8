package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/neardup/internal/config"
	"github.com/nao1215/neardup/internal/corpus"
	"github.com/nao1215/neardup/internal/database"
	"github.com/nao1215/neardup/internal/model"
	"github.com/nao1215/neardup/internal/pipeline"
	"github.com/nao1215/neardup/internal/report"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [input]...",
		Short: "Deduplicate a corpus of text documents",
		Long: `Run reads every file under the given inputs, removes duplicated content
and writes the surviving documents to the output directory.

Stages (run in the order given by --stages):
- lines:   remove lines that occur in more than one document
- minhash: remove near-duplicate documents, keeping the lowest ID per group
- quality: drop documents that fail the Gopher quality heuristics

A document ID is its path relative to the input directory (or its file
name for file arguments). The same relative path is used in the output.
Inputs are never modified.

Examples:
  # Deduplicate a directory with the default stages
  neardup run -o deduped corpus/

  # Stricter near-duplicate matching on 3-word shingles
  neardup run -o deduped -n 3 -t 0.9 corpus/

  # 20 bands of 5 rows over 100 hashes, quality filter first
  neardup run -o deduped -k 100 -b 20 --stages quality,lines,minhash corpus/

  # Write a Markdown report to a file
  neardup run -o deduped --markdown --report run.md corpus/

Configuration file (.neardup) example:
  num_hashes: 128
  num_bands: 16
  ngram_size: 5
  jaccard_threshold: 0.8
  stages: [lines, minhash]`,
		Args: cobra.ArbitraryArgs,
		RunE: runRunCmd,
	}

	// MinHash / LSH flags
	cmd.Flags().IntP("num-hashes", "k", config.DefaultNumHashes,
		"Number of MinHash permutations (signature length)")
	cmd.Flags().IntP("num-bands", "b", config.DefaultNumBands,
		"Number of LSH bands (should divide --num-hashes)")
	cmd.Flags().IntP("ngram", "n", config.DefaultNgramSize,
		"Shingle width in words")
	cmd.Flags().Float64P("threshold", "t", config.DefaultJaccardThreshold,
		"Jaccard similarity at or above which documents are duplicates")
	cmd.Flags().Int64P("seed", "s", config.DefaultRandomSeed,
		"Seed of the MinHash permutation family")
	cmd.Flags().Bool("allow-unused-rows", false,
		"Accept a band count that does not divide --num-hashes")
	cmd.Flags().Bool("exact", false,
		"Verify candidates with exact Jaccard similarity instead of the estimate")

	// Pipeline flags
	cmd.Flags().StringSlice("stages", config.DefaultStages,
		"Comma-separated stage order (lines, minhash, quality)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers(),
		"Maximum number of documents processed concurrently")
	cmd.Flags().StringP("output-dir", "o", "",
		"Directory for the filtered documents (must differ from the inputs)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .neardup in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report", "r", "",
		"Write report to specified file path (creates directories if needed)")

	// History flags
	cmd.Flags().String("db-dir", "",
		"Directory of the run history database (default: XDG data directory)")
	cmd.Flags().Bool("no-db", false,
		"Do not record this run in the history database")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runDedup(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildConfig creates a Config from defaults, the configuration file and
// the command flags, in increasing order of precedence.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file path, error if not found.
	// If no path was specified, silently use defaults when no file is found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	flags := cmd.Flags()
	if flags.Changed("num-hashes") {
		if cfg.NumHashes, err = flags.GetInt("num-hashes"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("num-bands") {
		if cfg.NumBands, err = flags.GetInt("num-bands"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("ngram") {
		if cfg.NgramSize, err = flags.GetInt("ngram"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("threshold") {
		if cfg.JaccardThreshold, err = flags.GetFloat64("threshold"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("seed") {
		if cfg.RandomSeed, err = flags.GetInt64("seed"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("allow-unused-rows") {
		if cfg.AllowUnusedRows, err = flags.GetBool("allow-unused-rows"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("exact") {
		if cfg.ExactVerify, err = flags.GetBool("exact"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("stages") {
		if cfg.Stages, err = flags.GetStringSlice("stages"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("output-dir") {
		if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	cfg.JSONReport, err = flags.GetBool("json")
	if err != nil {
		return nil, err
	}
	cfg.MarkdownReport, err = flags.GetBool("markdown")
	if err != nil {
		return nil, err
	}
	cfg.ReportFile, err = flags.GetString("report")
	if err != nil {
		return nil, err
	}

	cfg.Inputs = args
	return cfg, nil
}

// runDedup executes the pipeline, writes the report and records the run.
// The report is written and saved even when the run fails or is
// cancelled, so partial results stay traceable.
func runDedup(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	logger.Info("starting run",
		"inputs", cfg.Inputs,
		"output", cfg.OutputDir,
		"stages", cfg.Stages,
		"workers", cfg.Workers,
	)

	var db *database.RunDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	source := corpus.NewDirSource(cfg.Inputs,
		corpus.WithSourceWorkers(cfg.Workers),
		corpus.WithSourceLogger(logger),
	)
	sink := corpus.NewDirSink(cfg.OutputDir)

	p, err := pipeline.DefaultPipeline(cfg, source, sink,
		[]pipeline.Option{pipeline.WithLogger(logger)},
		pipeline.WithPipelineLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	run := pipeline.NewRun(cfg)
	startTime := time.Now()
	execErr := p.Execute(ctx, run)
	logger.Info("run finished",
		"elapsed", time.Since(startTime).Round(time.Millisecond),
		"read", run.Report.DocumentsRead,
		"written", run.Report.DocumentsWritten,
	)

	if err := outputReport(cfg, run.Report, stdout); err != nil {
		logger.Error("report failed", "error", err)
	}

	// Record the run even after cancellation
	if err := saveRunReport(context.WithoutCancel(ctx), db, run.Report, logger); err != nil {
		logger.Error("failed to save run", "error", err)
	}

	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			return fmt.Errorf("run cancelled: %w", execErr)
		}
		return fmt.Errorf("run failed: %w", execErr)
	}
	return nil
}

// outputReport writes the run report in the requested format. With a
// report file the full report goes to the file and a text summary to
// stdout.
func outputReport(cfg *config.Config, runReport *model.RunReport, stdout io.Writer) error {
	if cfg.ReportFile == "" {
		_, err := newReportWriter(cfg, stdout).Write(runReport)
		return err
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	// Reports list document paths, so keep them readable by the owner only
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if _, err := newReportWriter(cfg, f).Write(runReport); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close report file: %w", err)
	}

	if _, err := report.NewSimpleWriter(stdout).WriteSummary(model.NewSummary(runReport)); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Report written to %s\n", cfg.ReportFile)
	return nil
}

// newReportWriter selects the writer for the configured format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithEnvelope(getVersion()), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// saveRunReport saves the run report to the database if enabled.
// If db is nil, this function is a no-op.
func saveRunReport(ctx context.Context, db *database.RunDB, runReport *model.RunReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	id, err := db.SaveRun(ctx, runReport)
	if err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}

	logger.Info("run saved to database", "run_id", id)
	return nil
}
