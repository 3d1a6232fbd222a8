package quality

import (
	"context"
	"errors"
)

// ErrModelUnavailable is returned by classifiers whose backing model cannot
// be loaded. A run that needs the classifier cannot continue.
var ErrModelUnavailable = errors.New("quality model unavailable")

// Label is a classification outcome.
type Label string

// Labels.
const (
	LabelKeep Label = "keep"
	LabelDrop Label = "drop"
)

// Result is the outcome of classifying one document.
type Result struct {
	Label Label

	// Reason names the rule that failed. Empty for LabelKeep.
	Reason string
}

// Keep reports whether the document passes.
func (r Result) Keep() bool {
	return r.Label == LabelKeep
}

// Classifier labels document text. Implementations must be safe for
// concurrent use.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}
