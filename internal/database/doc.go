// Package database keeps the run history of neardup in a SQLite file.
//
// Each run is stored once in the runs table (parameters, counters and the
// full JSON report) and each recorded decision once in the decisions table,
// indexed by document ID. That index answers provenance questions such as
// "why is this document missing from last week's output, and which
// document replaced it" without keeping report files around.
//
// The driver is modernc.org/sqlite, so the binary stays CGO-free. A
// single connection serializes writers; WAL mode lets `neardup history`
// read while a run is being saved.
package database
