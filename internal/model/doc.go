// Package model defines the core data structures shared by the dedup pipeline.
//
// This package contains the following main types:
//   - Document: A corpus entry identified by a stable ID
//   - Run: The working state of one pipeline run
//   - RunReport: The serializable outcome of a run
//   - Decision: What happened to one document and why
//   - Summary: A condensed, human-readable view of a RunReport
//
// Multiple packages (pipeline, report, database) need these types, so they
// live here to avoid import cycles. Reports are designed to be serialized to
// JSON for report output and database storage.
package model
