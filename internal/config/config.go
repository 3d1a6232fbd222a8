package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/adrg/xdg"
)

// Stage names accepted in the stage list.
const (
	// StageLines is the exact-line dedup stage.
	StageLines = "lines"

	// StageMinHash is the MinHash/LSH near-duplicate stage.
	StageMinHash = "minhash"

	// StageQuality is the optional heuristic quality filter.
	StageQuality = "quality"
)

// Default configuration values.
const (
	// DefaultNumHashes is the signature length k. 128 permutations give an
	// estimator standard deviation of about 0.035 around a Jaccard of 0.8.
	DefaultNumHashes = 128

	// DefaultNumBands is the LSH band count b. With k=128 this gives r=8,
	// placing the S-curve midpoint near (1/16)^(1/8) ~= 0.71.
	DefaultNumBands = 16

	// DefaultNgramSize is the shingle width in words.
	DefaultNgramSize = 5

	// DefaultJaccardThreshold is the estimated similarity at or above which
	// two documents are treated as duplicates.
	DefaultJaccardThreshold = 0.8

	// DefaultRandomSeed seeds the hash family. Identical seeds give identical
	// signatures across runs and machines.
	DefaultRandomSeed int64 = 42

	// AppName is the application name used for XDG directory paths.
	AppName = "neardup"
)

// DefaultStages is the stage order used when none is configured.
var DefaultStages = []string{StageLines, StageMinHash}

// knownStages lists every stage name the pipeline can build.
var knownStages = []string{StageLines, StageMinHash, StageQuality}

// DefaultWorkers returns the default concurrency limit.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// Config holds all configuration options for a dedup run.
// It is populated from defaults, then the configuration file, then CLI
// flags, and passed through the application explicitly.
//
// Design decision: A single flat struct, like the rest of the CLI options.
// Quality thresholds are the one nested group because they only matter
// when the quality stage is enabled.
type Config struct {
	// NumHashes is the signature length k.
	NumHashes int

	// NumBands is the LSH band count b. b should divide k.
	NumBands int

	// NgramSize is the shingle width n in words.
	NgramSize int

	// JaccardThreshold is in [0, 1].
	JaccardThreshold float64

	// RandomSeed seeds the hash family.
	RandomSeed int64

	// AllowUnusedRows permits a band count that does not divide k.
	// The trailing k - b*(k div b) signature rows are then ignored, which is
	// logged and recorded in the report.
	AllowUnusedRows bool

	// ExactVerify checks LSH candidates with the exact Jaccard similarity of
	// their shingle sets instead of the signature estimate. It removes
	// estimator noise but keeps every shingle set in memory.
	ExactVerify bool

	// Stages is the stage order. Each name appears at most once.
	Stages []string

	// Workers bounds per-document concurrency.
	Workers int

	// Inputs are the input files and directories.
	Inputs []string

	// OutputDir is where filtered documents are written. It must not be
	// one of the inputs.
	OutputDir string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .neardup is searched in the current directory and then in
	// the user's home directory.
	ConfigFilePath string

	// JSONReport enables JSON report output. Mutually exclusive with
	// MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output. Mutually exclusive
	// with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// DBDir is the directory of the run history database.
	// Defaults to the XDG data directory (~/.local/share/neardup on Linux).
	DBDir string

	// SaveToDB indicates whether to record the run in the history database.
	SaveToDB bool

	// Quality holds the quality stage thresholds.
	Quality QualityConfig
}

// QualityConfig holds the thresholds of the heuristic quality filter.
type QualityConfig struct {
	// MinWords and MaxWords bound the whitespace word count.
	MinWords int
	MaxWords int

	// MinMeanWordLength and MaxMeanWordLength bound the mean word length
	// in characters.
	MinMeanWordLength float64
	MaxMeanWordLength float64

	// MaxEllipsisLineRatio is the largest tolerated fraction of lines that
	// end with "...".
	MaxEllipsisLineRatio float64

	// MinAlphaWordRatio is the smallest tolerated fraction of words that
	// contain at least one letter.
	MinAlphaWordRatio float64
}

// NewQualityConfig returns the Gopher rule thresholds.
func NewQualityConfig() QualityConfig {
	return QualityConfig{
		MinWords:             50,
		MaxWords:             100000,
		MinMeanWordLength:    3,
		MaxMeanWordLength:    10,
		MaxEllipsisLineRatio: 0.3,
		MinAlphaWordRatio:    0.8,
	}
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because most defaults are non-zero.
func NewConfig() *Config {
	return &Config{
		NumHashes:        DefaultNumHashes,
		NumBands:         DefaultNumBands,
		NgramSize:        DefaultNgramSize,
		JaccardThreshold: DefaultJaccardThreshold,
		RandomSeed:       DefaultRandomSeed,
		Stages:           slices.Clone(DefaultStages),
		Workers:          DefaultWorkers(),
		DBDir:            XDGDataDir(),
		SaveToDB:         true,
		Quality:          NewQualityConfig(),
	}
}

// XDGDataDir returns the XDG data directory for neardup.
// On Linux: ~/.local/share/neardup
// On macOS: ~/Library/Application Support/neardup
// On Windows: %LOCALAPPDATA%\neardup
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for neardup.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// RowsPerBand returns r = k div b, or 0 when b is not positive.
func (c *Config) RowsPerBand() int {
	if c.NumBands <= 0 {
		return 0
	}
	return c.NumHashes / c.NumBands
}

// UnusedRows returns the number of trailing signature rows that no band
// covers.
func (c *Config) UnusedRows() int {
	return c.NumHashes - c.NumBands*c.RowsPerBand()
}

// HasStage reports whether the named stage is configured.
func (c *Config) HasStage(name string) bool {
	return slices.Contains(c.Stages, name)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error (or a
// *BandingError), so callers can use errors.Is and errors.As.
//
// Design decision: We validate once, after flags and the configuration
// file are merged and before any document is read, so that a bad
// parameter never costs a pass over the corpus.
func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		return ErrNoInput
	}
	if c.OutputDir == "" {
		return ErrNoOutput
	}
	if err := c.validateOutputDir(); err != nil {
		return err
	}

	if c.NumHashes <= 0 {
		return ErrInvalidNumHashes
	}
	// Bands must be in [1, k]; more bands than rows would leave empty bands
	if c.NumBands <= 0 || c.NumBands > c.NumHashes {
		return ErrInvalidNumBands
	}
	if c.NgramSize <= 0 {
		return ErrInvalidNgramSize
	}
	if t := c.JaccardThreshold; math.IsNaN(t) || t < 0 || t > 1 {
		return ErrInvalidThreshold
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.HasStage(StageQuality) {
		if err := c.Quality.Validate(); err != nil {
			return err
		}
	}

	if unused := c.UnusedRows(); unused != 0 && !c.AllowUnusedRows {
		return &BandingError{
			NumHashes:   c.NumHashes,
			NumBands:    c.NumBands,
			RowsPerBand: c.RowsPerBand(),
			UnusedRows:  unused,
		}
	}
	return nil
}

func (c *Config) validateStages() error {
	if len(c.Stages) == 0 {
		return fmt.Errorf("%w: stage list is empty", ErrUnknownStage)
	}
	seen := make(map[string]struct{}, len(c.Stages))
	for _, s := range c.Stages {
		if !slices.Contains(knownStages, s) {
			return fmt.Errorf("%w: %q", ErrUnknownStage, s)
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateStage, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// validateOutputDir rejects an output directory that overlaps an input:
// equal to it, nested inside an input directory, or containing an input
// file or directory. Paths are compared after resolving symlinks.
func (c *Config) validateOutputDir() error {
	out, err := resolvePath(c.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	for _, in := range c.Inputs {
		abs, err := resolvePath(in)
		if err != nil {
			return fmt.Errorf("failed to resolve input %s: %w", in, err)
		}
		switch {
		case abs == out:
			return fmt.Errorf("%w: %s is an input", ErrOutputIsInput, c.OutputDir)
		case isWithin(abs, out):
			return fmt.Errorf("%w: %s is inside input %s", ErrOutputIsInput, c.OutputDir, in)
		case isWithin(out, abs):
			return fmt.Errorf("%w: input %s is inside %s", ErrOutputIsInput, in, c.OutputDir)
		}
	}
	return nil
}

// resolvePath returns the absolute, symlink-free form of path. A path that
// does not exist yet is resolved through its nearest existing ancestor.
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	var rest []string
	for dir := abs; ; {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = append([]string{filepath.Base(dir)}, rest...)
		dir = parent
	}
}

// isWithin reports whether child lies strictly below parent.
func isWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// Validate checks the quality thresholds.
func (q QualityConfig) Validate() error {
	if q.MinWords < 0 || q.MaxWords < q.MinWords {
		return fmt.Errorf("%w: word count bounds %d..%d", ErrInvalidQualityRule, q.MinWords, q.MaxWords)
	}
	if q.MinMeanWordLength < 0 || q.MaxMeanWordLength < q.MinMeanWordLength {
		return fmt.Errorf("%w: mean word length bounds %.1f..%.1f", ErrInvalidQualityRule, q.MinMeanWordLength, q.MaxMeanWordLength)
	}
	if q.MaxEllipsisLineRatio < 0 || q.MaxEllipsisLineRatio > 1 {
		return fmt.Errorf("%w: ellipsis line ratio %.2f", ErrInvalidQualityRule, q.MaxEllipsisLineRatio)
	}
	if q.MinAlphaWordRatio < 0 || q.MinAlphaWordRatio > 1 {
		return fmt.Errorf("%w: alphabetic word ratio %.2f", ErrInvalidQualityRule, q.MinAlphaWordRatio)
	}
	return nil
}
