package report

import (
	"io"

	"github.com/nao1215/neardup/internal/model"
)

// Writer renders run reports in one output format.
type Writer interface {
	// Write renders the full report and returns the bytes written.
	Write(report *model.RunReport) (int, error)

	// WriteSummary renders the condensed view only. The run command uses
	// it for the terminal when the full report goes to a file.
	WriteSummary(summary *model.Summary) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText returns a one-line run status.
func statusText(report *model.RunReport) string {
	switch {
	case report.TimedOut:
		return "CANCELLED (partial results)"
	case report.Error != "":
		return "ERROR - " + report.Error
	default:
		return "Complete"
	}
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
