package quality

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Reasons reported by Gopher.
const (
	ReasonEmpty          = "empty"
	ReasonWordCount      = "word_count"
	ReasonMeanWordLength = "mean_word_length"
	ReasonEllipsisLines  = "ellipsis_lines"
	ReasonAlphaWords     = "alpha_words"
)

// Rules are the Gopher thresholds.
type Rules struct {
	MinWords             int
	MaxWords             int
	MinMeanWordLength    float64
	MaxMeanWordLength    float64
	MaxEllipsisLineRatio float64
	MinAlphaWordRatio    float64
}

// DefaultRules returns the published Gopher thresholds.
func DefaultRules() Rules {
	return Rules{
		MinWords:             50,
		MaxWords:             100000,
		MinMeanWordLength:    3,
		MaxMeanWordLength:    10,
		MaxEllipsisLineRatio: 0.3,
		MinAlphaWordRatio:    0.8,
	}
}

// Stats are the measurements the rules are applied to.
type Stats struct {
	Words             int
	MeanWordLength    float64
	EllipsisLineRatio float64
	AlphaWordRatio    float64
}

// Measure computes Stats for text. Words are whitespace-separated tokens;
// lengths are counted in runes.
func Measure(text string) Stats {
	var st Stats
	words := strings.Fields(text)
	st.Words = len(words)
	if len(words) > 0 {
		total, alpha := 0, 0
		for _, w := range words {
			total += utf8.RuneCountInString(w)
			if strings.IndexFunc(w, unicode.IsLetter) >= 0 {
				alpha++
			}
		}
		st.MeanWordLength = float64(total) / float64(len(words))
		st.AlphaWordRatio = float64(alpha) / float64(len(words))
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")
	ellipsis := 0
	for _, l := range lines {
		if strings.HasSuffix(strings.TrimRightFunc(l, unicode.IsSpace), "...") {
			ellipsis++
		}
	}
	st.EllipsisLineRatio = float64(ellipsis) / float64(len(lines))
	return st
}

// Gopher is a rule-based Classifier. It is stateless and safe for
// concurrent use.
type Gopher struct {
	rules Rules
}

// NewGopher creates a Gopher classifier with the given thresholds.
func NewGopher(rules Rules) *Gopher {
	return &Gopher{rules: rules}
}

// Classify applies the rules in order and reports the first that fails.
func (g *Gopher) Classify(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(text) == "" {
		return drop(ReasonEmpty), nil
	}

	st := Measure(text)
	r := g.rules
	switch {
	case st.Words < r.MinWords || st.Words > r.MaxWords:
		return drop(ReasonWordCount), nil
	case st.MeanWordLength < r.MinMeanWordLength || st.MeanWordLength > r.MaxMeanWordLength:
		return drop(ReasonMeanWordLength), nil
	case st.EllipsisLineRatio > r.MaxEllipsisLineRatio:
		return drop(ReasonEllipsisLines), nil
	case st.AlphaWordRatio < r.MinAlphaWordRatio:
		return drop(ReasonAlphaWords), nil
	}
	return Result{Label: LabelKeep}, nil
}

func drop(reason string) Result {
	return Result{Label: LabelDrop, Reason: reason}
}
