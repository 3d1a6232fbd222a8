// Package report renders run reports for people and tools.
//
// SimpleWriter prints a fixed-width terminal report, JSONWriter emits the
// report (optionally wrapped with the tool version and summary) and
// MarkdownWriter produces a shareable document with tables, alerts and a
// mermaid chart of where the documents went. All of them render
// model.RunReport and model.Summary; the data types stay in the model
// package so that the history database and the writers agree on one shape.
package report
