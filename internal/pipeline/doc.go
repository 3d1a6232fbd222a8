// Package pipeline provides a framework for executing dedup steps in
// sequence.
//
// A run loads a document set, passes it through the configured stages
// (exact-line dedup, near-duplicate removal, optional quality filtering)
// in the configured order, and writes the survivors. Each stage is a Step
// that receives the current model.Run and replaces its document set.
//
// Design decision: We use a pipeline pattern instead of direct function
// calls because:
// 1. The stage order is configuration, not code
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context between long-running stages
//
// Per-document work inside a step runs through BatchProcessor, which bounds
// concurrency with errgroup and writes each result into its own slot so the
// outcome never depends on scheduling.
package pipeline
