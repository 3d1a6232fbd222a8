// Package corpus provides the document boundary of a dedup run: sources
// that load documents as text and sinks that persist the filtered result.
//
// Every document is identified by a stable ID. For directory inputs the ID
// is the slash-separated path relative to the input root; for file inputs
// it is the base name. Sinks map the ID back to a relative output path, so
// an output file can always be traced to its input.
//
// Inputs are never modified. Documents that cannot be read or decoded are
// reported as model.Failure values and skipped; they never abort a run.
package corpus
