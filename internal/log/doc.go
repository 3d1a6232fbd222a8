// Package log provides logging for neardup, built on top of the standard
// slog package.
//
// This package extends slog to provide:
//   - Automatic truncation of corpus content in log attributes
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Content Truncation
//
// A dedup run touches millions of lines of text. The ContentHandler keeps
// that text out of the logs:
//   - Attributes whose key names document content (text, line, shingle,
//     content, snippet) are reduced to a short preview
//   - Any other string value longer than MaxValueLength is truncated
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, true) // verbose=true
//
//	logger.Debug("line removed",
//	    "doc", "a/b.txt",
//	    "line", longLine, // logged as a preview with its length
//	)
//
//	slog.SetDefault(logger)
package log
