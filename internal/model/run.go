package model

import (
	"sync"
	"time"
)

// Params are the effective parameters of a run, recorded in the report so
// that a run can be reproduced exactly.
type Params struct {
	// NumHashes is the signature length k.
	NumHashes int `json:"num_hashes"`

	// NumBands is the LSH band count b.
	NumBands int `json:"num_bands"`

	// RowsPerBand is r = k div b.
	RowsPerBand int `json:"rows_per_band"`

	// UnusedRows is k - b*r. Non-zero only when unused rows were allowed.
	UnusedRows int `json:"unused_rows,omitempty"`

	// NgramSize is the shingle width n in words.
	NgramSize int `json:"ngram_size"`

	// JaccardThreshold is the estimated similarity at or above which two
	// documents are duplicates.
	JaccardThreshold float64 `json:"jaccard_threshold"`

	// RandomSeed seeds the hash family.
	RandomSeed int64 `json:"random_seed"`

	// Stages is the configured stage order.
	Stages []string `json:"stages"`

	// Workers is the concurrency limit.
	Workers int `json:"workers"`
}

// LineStats summarizes the exact-line stage.
type LineStats struct {
	// Documents is the number of documents filtered.
	Documents int `json:"documents"`

	// DistinctLines is the number of distinct non-blank normalized lines.
	DistinctLines int `json:"distinct_lines"`

	// RepeatedLines is the number of distinct lines seen more than once.
	RepeatedLines int `json:"repeated_lines"`

	// LinesKept counts non-blank lines kept across all documents.
	LinesKept int `json:"lines_kept"`

	// LinesRemoved counts lines removed across all documents.
	LinesRemoved int `json:"lines_removed"`

	// BlankLines counts blank lines passed through unchanged.
	BlankLines int `json:"blank_lines"`

	// DocumentsEmptied counts documents whose text became empty.
	DocumentsEmptied int `json:"documents_emptied"`
}

// NearDupStats summarizes the MinHash/LSH stage.
type NearDupStats struct {
	// Documents is the number of documents signed.
	Documents int `json:"documents"`

	// EmptyDocuments counts documents with no shingles. They are never
	// bucketed and never marked as duplicates.
	EmptyDocuments int `json:"empty_documents"`

	// Candidates is the number of distinct candidate pairs from LSH.
	Candidates int `json:"candidates"`

	// VerifiedPairs is the number of candidates at or above the threshold.
	VerifiedPairs int `json:"verified_pairs"`

	// Groups is the number of duplicate groups.
	Groups int `json:"groups"`

	// DocumentsRemoved is the number of non-representative group members.
	DocumentsRemoved int `json:"documents_removed"`
}

// QualityStats summarizes the quality stage.
type QualityStats struct {
	Documents int            `json:"documents"`
	Kept      int            `json:"kept"`
	Dropped   int            `json:"dropped"`
	Reasons   map[string]int `json:"reasons,omitempty"`
}

// StepResult records how one pipeline step changed the document set.
type StepResult struct {
	Name         string `json:"name"`
	DocumentsIn  int    `json:"documents_in"`
	DocumentsOut int    `json:"documents_out"`

	// ElapsedMS is the wall time of the step in milliseconds.
	ElapsedMS int64 `json:"elapsed_ms"`

	// Failed is true when the step returned an error.
	Failed bool `json:"failed,omitempty"`
}

// Elapsed returns the step wall time.
func (s StepResult) Elapsed() time.Duration {
	return time.Duration(s.ElapsedMS) * time.Millisecond
}

// RunReport is the serializable outcome of one run.
//
// Design decision: One flat struct with optional per-stage sections (nil
// when the stage did not run). JSON output and the database both store it
// as is.
type RunReport struct {
	// === Basic Information ===

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run ended.
	FinishedAt time.Time `json:"finished_at"`

	// Inputs are the input paths as given.
	Inputs []string `json:"inputs,omitempty"`

	// OutputDir is the output destination.
	OutputDir string `json:"output_dir,omitempty"`

	// Params are the effective parameters.
	Params Params `json:"params"`

	// === Counters ===

	// DocumentsRead is the number of documents loaded successfully.
	DocumentsRead int `json:"documents_read"`

	// DocumentsWritten is the number of documents persisted.
	DocumentsWritten int `json:"documents_written"`

	// === Stage Results ===

	Lines   *LineStats    `json:"lines,omitempty"`
	NearDup *NearDupStats `json:"near_dup,omitempty"`
	Quality *QualityStats `json:"quality,omitempty"`

	// Groups are the duplicate groups found by the near-dup stage.
	Groups []DuplicateGroup `json:"groups,omitempty"`

	// Decisions records every document excluded from the output and why,
	// plus the retained representatives of duplicate groups.
	Decisions []Decision `json:"decisions,omitempty"`

	// === Problems ===

	// Failures are per-document errors. They never abort a run.
	Failures []Failure `json:"failures,omitempty"`

	// Warnings are run-level notices, such as unused signature rows.
	Warnings []string `json:"warnings,omitempty"`

	// PerformedSteps lists the steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// StepResults has one entry per attempted step, including a failed one.
	StepResults []StepResult `json:"step_results,omitempty"`

	// TimedOut is true when the run was canceled before completion.
	TimedOut bool `json:"timed_out,omitempty"`

	// Error is the first fatal step error, if any.
	Error string `json:"error,omitempty"`
}

// NewRunReport creates a report stamped with the current time.
func NewRunReport(params Params) *RunReport {
	return &RunReport{
		StartedAt: time.Now(),
		Params:    params,
	}
}

// Duration returns the wall time of the run. It is zero until the run
// has finished.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RemovedIDs returns the IDs of every document excluded from the output.
func (r *RunReport) RemovedIDs() []string {
	var ids []string
	for _, d := range r.Decisions {
		if !d.Retained {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Run is the mutable working state of one pipeline run.
// Steps replace Documents as they filter; the Report accumulates results.
// Failures and warnings may be added concurrently by workers.
type Run struct {
	// Documents is the current document set, sorted by ID.
	Documents []*Document

	// Report is the outcome being built.
	Report *RunReport

	mu sync.Mutex
}

// NewRun creates a run with an empty document set.
func NewRun(params Params) *Run {
	return &Run{Report: NewRunReport(params)}
}

// AddFailure records a per-document failure. Safe for concurrent use.
func (r *Run) AddFailure(f Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Report.Failures = append(r.Report.Failures, f)
}

// AddWarning records a run-level warning. Safe for concurrent use.
func (r *Run) AddWarning(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Report.Warnings = append(r.Report.Warnings, msg)
}

// AddDecisions appends decisions. Safe for concurrent use.
func (r *Run) AddDecisions(ds ...Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Report.Decisions = append(r.Report.Decisions, ds...)
}

// IDs returns the IDs of the current documents in order.
func (r *Run) IDs() []string {
	ids := make([]string, len(r.Documents))
	for i, d := range r.Documents {
		ids[i] = d.ID
	}
	return ids
}
