package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// contentKeys contains attribute keys whose values are corpus text.
var contentKeys = map[string]bool{
	"text":     true,
	"line":     true,
	"lines":    true,
	"shingle":  true,
	"shingles": true,
	"content":  true,
	"snippet":  true,
	"body":     true,
}

const (
	// PreviewLength is the number of runes kept from a content attribute.
	PreviewLength = 32

	// MaxValueLength is the longest string value logged unchanged.
	MaxValueLength = 256
)

// ContentHandler wraps an slog.Handler to keep document content out of the
// logs. Content attributes become a short preview followed by the original
// length, and overlong string values are truncated.
//
// Design decision: We use a handler wrapper rather than a custom logger
// because:
//  1. It integrates seamlessly with standard slog APIs
//  2. It works with any underlying handler (text, JSON, etc.)
//  3. Components just accept a *slog.Logger and need no special care
type ContentHandler struct {
	// handler is the underlying slog handler that receives truncated records.
	handler slog.Handler
}

// NewContentHandler creates a new ContentHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewContentHandler(handler slog.Handler) *ContentHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &ContentHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
func (h *ContentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle truncates the record's attributes and passes it on.
func (h *ContentHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.shortenAttr(a))
		return true
	})
	return h.handler.Handle(ctx, out)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *ContentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	shortened := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		shortened[i] = h.shortenAttr(a)
	}
	return &ContentHandler{handler: h.handler.WithAttrs(shortened)}
}

// WithGroup returns a new handler with the given group name.
func (h *ContentHandler) WithGroup(name string) slog.Handler {
	return &ContentHandler{handler: h.handler.WithGroup(name)}
}

// shortenAttr shortens a single attribute, recursively handling groups.
func (h *ContentHandler) shortenAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		shortened := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			shortened[i] = h.shortenAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(shortened...)}
	}

	if a.Value.Kind() != slog.KindString {
		return a
	}
	s := a.Value.String()
	if contentKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, Preview(s, PreviewLength))
	}
	if len(s) > MaxValueLength {
		return slog.String(a.Key, Preview(s, MaxValueLength))
	}
	return a
}

// Preview returns at most n runes of s. When s is longer, the result ends
// with an ellipsis and the original length in bytes.
func Preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := 0
	for i := 0; i < n; i++ {
		_, size := utf8.DecodeRuneInString(s[cut:])
		cut += size
	}
	return fmt.Sprintf("%s...(%d bytes)", s[:cut], len(s))
}

// NewLogger creates a new text slog.Logger that keeps corpus content out
// of its output.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewContentHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewJSONLogger is like NewLogger but outputs JSON. Useful for structured
// log aggregation of long batch runs.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewContentHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
