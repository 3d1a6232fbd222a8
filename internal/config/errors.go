package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoInput is returned when no input file or directory is given.
	ErrNoInput = errors.New("no input specified: provide at least one file or directory")

	// ErrNoOutput is returned when no output directory is given.
	ErrNoOutput = errors.New("no output directory specified: use --output-dir")

	// ErrOutputIsInput is returned when the output directory is one of the
	// inputs. Inputs are never modified.
	ErrOutputIsInput = errors.New("output directory must differ from every input")

	// ErrInvalidNumHashes is returned when the signature length is not positive.
	ErrInvalidNumHashes = errors.New("invalid number of hashes: must be positive")

	// ErrInvalidNumBands is returned when the band count is outside [1, num_hashes].
	ErrInvalidNumBands = errors.New("invalid number of bands: must be between 1 and the number of hashes")

	// ErrBandsDoNotDivide is wrapped by BandingError.
	ErrBandsDoNotDivide = errors.New("number of bands does not divide number of hashes")

	// ErrInvalidNgramSize is returned when the shingle width is not positive.
	ErrInvalidNgramSize = errors.New("invalid n-gram size: must be positive")

	// ErrInvalidThreshold is returned when the Jaccard threshold is outside [0, 1] or NaN.
	ErrInvalidThreshold = errors.New("invalid jaccard threshold: must be in [0, 1]")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid number of workers: must be positive")

	// ErrUnknownStage is returned for a stage name the pipeline does not know.
	ErrUnknownStage = errors.New("unknown stage: valid stages are lines, minhash, quality")

	// ErrDuplicateStage is returned when a stage appears twice in the list.
	ErrDuplicateStage = errors.New("duplicate stage")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidQualityRule is returned for inconsistent quality thresholds.
	ErrInvalidQualityRule = errors.New("invalid quality rule")
)

// BandingError reports a band count that does not divide the signature
// length. It carries the effective rows per band and the rows that would
// be ignored, so the user can pick a better pair.
type BandingError struct {
	NumHashes   int
	NumBands    int
	RowsPerBand int
	UnusedRows  int
}

// Error implements the error interface.
func (e *BandingError) Error() string {
	return fmt.Sprintf("%s: %d hashes in %d bands gives %d rows per band and leaves %d rows unused (use --allow-unused-rows to accept)",
		ErrBandsDoNotDivide, e.NumHashes, e.NumBands, e.RowsPerBand, e.UnusedRows)
}

// Unwrap returns ErrBandsDoNotDivide.
func (e *BandingError) Unwrap() error {
	return ErrBandsDoNotDivide
}
