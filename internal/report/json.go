package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/neardup/internal/model"
)

// JSONWriter renders reports as JSON for scripts and other tools.
//
// HTML escaping is disabled, so document IDs such as "q&a/1.txt" appear
// verbatim.
type JSONWriter struct {
	baseWriter

	prefix string
	indent string

	// envelope wraps full reports in a JSONReport when set.
	envelope bool
	version  string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent indents nested values with indent, each line starting with
// prefix.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithEnvelope makes Write emit a JSONReport carrying the tool version and
// the summary next to the report.
func WithEnvelope(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.envelope = true
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders the report, wrapped in a JSONReport with WithEnvelope.
func (w *JSONWriter) Write(report *model.RunReport) (int, error) {
	if w.envelope {
		return w.WriteValue(NewJSONReport(report, w.version))
	}
	return w.WriteValue(report)
}

// WriteSummary renders the summary.
func (w *JSONWriter) WriteSummary(summary *model.Summary) (int, error) {
	return w.WriteValue(summary)
}

// WriteValue renders any value with the writer's settings. The output ends
// with a newline.
func (w *JSONWriter) WriteValue(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(w.prefix, w.indent)
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

// JSONReport is the document written by `neardup run --json`.
type JSONReport struct {
	Version string           `json:"version"`
	Report  *model.RunReport `json:"report"`
	Summary *model.Summary   `json:"summary"`
}

// NewJSONReport wraps a report with its summary.
func NewJSONReport(report *model.RunReport, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Report:  report,
		Summary: model.NewSummary(report),
	}
}
