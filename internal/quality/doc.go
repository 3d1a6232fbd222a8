// Package quality provides document quality classifiers used as an
// optional filter stage before or after deduplication.
//
// The built-in Gopher classifier applies the heuristic rules of the Gopher
// training-data pipeline: word count, mean word length, share of lines
// ending in an ellipsis, and share of words containing a letter. Other
// classifiers (for example model-backed ones) implement the same
// Classifier interface and may report ErrModelUnavailable.
package quality
