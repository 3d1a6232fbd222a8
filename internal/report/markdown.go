package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/neardup/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, alerts and mermaid charts
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := model.NewSummary(report)

	w.writeHeader(md, report)
	w.writeSummary(md, summary)
	w.writeAlert(md, report, summary)
	w.writeParams(md, report.Params)
	w.writeSteps(md, report.StepResults)
	w.writeGroups(md, report.Groups)
	w.writeProblems(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs only the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)
	w.writeSummary(md, summary)
	w.writeGroups(md, summary.LargestGroups)
	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("neardup Report")
	md.PlainText("")

	inputs := "-"
	if len(report.Inputs) > 0 {
		inputs = "`" + strings.Join(report.Inputs, "`, `") + "`"
	}
	output := "-"
	if report.OutputDir != "" {
		output = "`" + report.OutputDir + "`"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().String()},
			{"Inputs", inputs},
			{"Output", output},
			{"Steps", strings.Join(report.PerformedSteps, " → ")},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.RunReport) string {
	if report.TimedOut {
		return "⚠️ Cancelled (partial results)"
	}
	if report.Error != "" {
		return "❌ Error - " + report.Error
	}
	return "✅ Complete"
}

// writeSummary writes the counters and the document pie chart.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s *model.Summary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Documents read", strconv.Itoa(s.DocumentsRead)},
			{"Documents written", strconv.Itoa(s.DocumentsWritten)},
			{"Lines removed", strconv.Itoa(s.LinesRemoved)},
			{"Near-duplicates removed", strconv.Itoa(s.NearDuplicatesRemoved)},
			{"Quality drops", strconv.Itoa(s.QualityDropped)},
			{"Duplicate groups", strconv.Itoa(s.Groups)},
			{"Failures", strconv.Itoa(s.Failures)},
		},
	})
	md.PlainText("")

	if s.DocumentsRead > 0 {
		w.writePieChart(md, s)
	}

	if len(s.DropReasons) > 0 {
		reasons := make([]string, 0, len(s.DropReasons))
		for r := range s.DropReasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		rows := make([][]string, len(reasons))
		for i, r := range reasons {
			rows[i] = []string{"`" + r + "`", strconv.Itoa(s.DropReasons[r])}
		}
		md.PlainText("### Quality drops by rule")
		md.PlainText("")
		md.Table(markdown.TableSet{Header: []string{"Rule", "Documents"}, Rows: rows})
		md.PlainText("")
	}
}

// writePieChart writes a mermaid pie chart of what happened to documents.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Document Outcome"),
		piechart.WithShowData(true),
	)

	retained := s.DocumentsRead - s.DocumentsRemoved()
	if retained > 0 {
		chart.LabelAndIntValue("Retained", uint64(retained))
	}
	if s.NearDuplicatesRemoved > 0 {
		chart.LabelAndIntValue("Near-duplicate", uint64(s.NearDuplicatesRemoved))
	}
	if s.QualityDropped > 0 {
		chart.LabelAndIntValue("Quality drop", uint64(s.QualityDropped))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert describing the overall outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.RunReport, s *model.Summary) {
	switch {
	case report.Error != "" && !report.TimedOut:
		md.Cautionf("The run failed: %s. The output directory may be incomplete.", report.Error)
	case report.TimedOut:
		md.Warningf("The run was cancelled before completion after %d step(s). Results are partial.", len(report.PerformedSteps))
	case s.Failures > 0:
		md.Importantf("%d document(s) could not be processed. See the failures section.", s.Failures)
	case s.DocumentsRemoved() > 0:
		md.Note(fmt.Sprintf("%d of %d document(s) were removed.", s.DocumentsRemoved(), s.DocumentsRead))
	default:
		md.Tip("No duplicate or low-quality documents found.")
	}
	md.PlainText("")
}

// writeParams writes the effective parameters.
func (w *MarkdownWriter) writeParams(md *markdown.Markdown, p model.Params) {
	md.H2("Parameters")
	md.PlainText("")

	bands := strconv.Itoa(p.NumBands) + " × " + strconv.Itoa(p.RowsPerBand)
	if p.UnusedRows > 0 {
		bands += " (" + strconv.Itoa(p.UnusedRows) + " unused rows)"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Parameter", "Value"},
		Rows: [][]string{
			{"Stages", strings.Join(p.Stages, " → ")},
			{"Hashes (k)", strconv.Itoa(p.NumHashes)},
			{"Bands × rows", bands},
			{"N-gram size", strconv.Itoa(p.NgramSize)},
			{"Jaccard threshold", strconv.FormatFloat(p.JaccardThreshold, 'f', 2, 64)},
			{"Seed", strconv.FormatInt(p.RandomSeed, 10)},
			{"Workers", strconv.Itoa(p.Workers)},
		},
	})
	md.PlainText("")
}

// writeSteps writes the document flow through the pipeline steps.
func (w *MarkdownWriter) writeSteps(md *markdown.Markdown, results []model.StepResult) {
	if len(results) == 0 {
		return
	}
	md.H2("Steps")
	md.PlainText("")

	rows := make([][]string, len(results))
	for i, r := range results {
		status := "ok"
		if r.Failed {
			status = "failed"
		}
		rows[i] = []string{
			"`" + r.Name + "`",
			strconv.Itoa(r.DocumentsIn),
			strconv.Itoa(r.DocumentsOut),
			r.Elapsed().String(),
			status,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Step", "In", "Out", "Elapsed", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeGroups writes the duplicate group table.
func (w *MarkdownWriter) writeGroups(md *markdown.Markdown, groups []model.DuplicateGroup) {
	md.H2("Duplicate Groups")
	md.PlainText("")

	if len(groups) == 0 {
		md.PlainText("No duplicate groups found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(groups))
	for i, g := range groups {
		rows[i] = []string{
			"`" + g.Representative + "`",
			strconv.Itoa(len(g.Members)),
			truncateString(strings.Join(g.Removed(), ", "), 80),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Retained", "Size", "Removed"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeProblems writes warnings and failures.
func (w *MarkdownWriter) writeProblems(md *markdown.Markdown, report *model.RunReport) {
	if len(report.Warnings) == 0 && len(report.Failures) == 0 {
		return
	}

	md.H2("Warnings and Failures")
	md.PlainText("")

	if len(report.Warnings) > 0 {
		md.BulletList(report.Warnings...)
		md.PlainText("")
	}
	if len(report.Failures) == 0 {
		return
	}

	rows := make([][]string, len(report.Failures))
	for i, f := range report.Failures {
		rows[i] = []string{"`" + f.ID + "`", f.Step, truncateString(f.Message, 80)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Document", "Step", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [neardup](https://github.com/nao1215/neardup)*")
}
