package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/nao1215/neardup/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so that output can be piped to files or other tools.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether empty sections are shown.
	showEmpty bool

	// verbose lists every group and failure instead of the largest few.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// maxListedFailures bounds the failures listed without verbose output.
const maxListedFailures = 10

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder
	summary := model.NewSummary(report)

	w.writeHeader(&sb, report)
	w.writeParams(&sb, report.Params)
	w.writeCounts(&sb, summary)
	w.writeStages(&sb, report)
	if w.verbose {
		w.writeGroups(&sb, report.Groups)
	} else {
		w.writeGroups(&sb, summary.LargestGroups)
	}
	w.writeProblems(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs only the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	var sb strings.Builder
	w.writeCounts(&sb, summary)
	w.writeGroups(&sb, summary.LargestGroups)
	return w.output.Write([]byte(sb.String()))
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          NEARDUP REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Started:   %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:  %s\n", report.Duration().Round(time.Millisecond))
	if len(report.Inputs) > 0 {
		fmt.Fprintf(sb, "Inputs:    %s\n", strings.Join(report.Inputs, ", "))
	}
	if report.OutputDir != "" {
		fmt.Fprintf(sb, "Output:    %s\n", report.OutputDir)
	}
	fmt.Fprintf(sb, "Status:    %s\n", statusText(report))
	sb.WriteString("\n")
}

// writeParams writes the effective parameters.
func (w *SimpleWriter) writeParams(sb *strings.Builder, p model.Params) {
	section(sb, "PARAMETERS")

	fmt.Fprintf(sb, "  Stages:        %s\n", strings.Join(p.Stages, " -> "))
	fmt.Fprintf(sb, "  Hashes (k):    %d\n", p.NumHashes)
	fmt.Fprintf(sb, "  Bands (b):     %d x %d rows", p.NumBands, p.RowsPerBand)
	if p.UnusedRows > 0 {
		fmt.Fprintf(sb, " (%d unused)", p.UnusedRows)
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  N-gram size:   %d\n", p.NgramSize)
	fmt.Fprintf(sb, "  Threshold:     %.2f\n", p.JaccardThreshold)
	fmt.Fprintf(sb, "  Seed:          %d\n", p.RandomSeed)
	fmt.Fprintf(sb, "  Workers:       %d\n", p.Workers)
	sb.WriteString("\n")
}

// writeCounts writes the document counters.
func (w *SimpleWriter) writeCounts(sb *strings.Builder, s *model.Summary) {
	section(sb, "SUMMARY")

	fmt.Fprintf(sb, "  DOCUMENTS READ:     %d\n", s.DocumentsRead)
	fmt.Fprintf(sb, "  DOCUMENTS WRITTEN:  %d\n", s.DocumentsWritten)
	fmt.Fprintf(sb, "  LINES REMOVED:      %d\n", s.LinesRemoved)
	fmt.Fprintf(sb, "  NEAR-DUPLICATES:    %d\n", s.NearDuplicatesRemoved)
	fmt.Fprintf(sb, "  QUALITY DROPS:      %d\n", s.QualityDropped)
	fmt.Fprintf(sb, "  DUPLICATE GROUPS:   %d\n", s.Groups)
	fmt.Fprintf(sb, "  FAILURES:           %d\n", s.Failures)
	sb.WriteString("\n")

	if len(s.DropReasons) > 0 {
		reasons := make([]string, 0, len(s.DropReasons))
		for r := range s.DropReasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		sb.WriteString("  Quality drops by rule:\n")
		for _, r := range reasons {
			fmt.Fprintf(sb, "    %-18s %d\n", r, s.DropReasons[r])
		}
		sb.WriteString("\n")
	}
}

// writeStages writes per-stage statistics.
func (w *SimpleWriter) writeStages(sb *strings.Builder, report *model.RunReport) {
	if report.Lines == nil && report.NearDup == nil && report.Quality == nil {
		return
	}
	section(sb, "STAGES")

	if l := report.Lines; l != nil {
		fmt.Fprintf(sb, "[lines]   distinct=%d repeated=%d kept=%d removed=%d blank=%d emptied=%d\n",
			l.DistinctLines, l.RepeatedLines, l.LinesKept, l.LinesRemoved, l.BlankLines, l.DocumentsEmptied)
	}
	if n := report.NearDup; n != nil {
		fmt.Fprintf(sb, "[minhash] documents=%d empty=%d candidates=%d verified=%d groups=%d removed=%d\n",
			n.Documents, n.EmptyDocuments, n.Candidates, n.VerifiedPairs, n.Groups, n.DocumentsRemoved)
	}
	if q := report.Quality; q != nil {
		fmt.Fprintf(sb, "[quality] documents=%d kept=%d dropped=%d\n", q.Documents, q.Kept, q.Dropped)
	}

	// Per-step document flow and timing only in verbose mode
	if w.verbose && len(report.StepResults) > 0 {
		sb.WriteString("\n")
		for _, r := range report.StepResults {
			mark := ""
			if r.Failed {
				mark = "  FAILED"
			}
			fmt.Fprintf(sb, "  %-8s %7d -> %-7d %s%s\n", r.Name, r.DocumentsIn, r.DocumentsOut, r.Elapsed(), mark)
		}
	}
	sb.WriteString("\n")
}

// writeGroups writes duplicate groups.
func (w *SimpleWriter) writeGroups(sb *strings.Builder, groups []model.DuplicateGroup) {
	if len(groups) == 0 && !w.showEmpty {
		return
	}
	section(sb, "DUPLICATE GROUPS")

	if len(groups) == 0 {
		sb.WriteString("  No duplicate groups\n\n")
		return
	}
	for _, g := range groups {
		fmt.Fprintf(sb, "  [+] %s (%d documents)\n", g.Representative, len(g.Members))
		for _, m := range g.Removed() {
			fmt.Fprintf(sb, "      - %s\n", m)
		}
	}
	sb.WriteString("\n")
}

// writeProblems writes warnings and failures.
func (w *SimpleWriter) writeProblems(sb *strings.Builder, report *model.RunReport) {
	if len(report.Warnings) == 0 && len(report.Failures) == 0 && !w.showEmpty {
		return
	}
	section(sb, "WARNINGS AND FAILURES")

	for _, warn := range report.Warnings {
		fmt.Fprintf(sb, "  [!] %s\n", warn)
	}
	failures := report.Failures
	if !w.verbose && len(failures) > maxListedFailures {
		failures = failures[:maxListedFailures]
	}
	for _, f := range failures {
		fmt.Fprintf(sb, "  [x] %s (%s): %s\n", f.ID, f.Step, f.Message)
	}
	if hidden := len(report.Failures) - len(failures); hidden > 0 {
		fmt.Fprintf(sb, "  ... and %d more (use --verbose)\n", hidden)
	}
	if len(report.Warnings) == 0 && len(report.Failures) == 0 {
		sb.WriteString("  None\n")
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by neardup\n")
	sb.WriteString("https://github.com/nao1215/neardup\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
