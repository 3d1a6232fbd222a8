package lines

import "strings"

// Split cuts text into lines, each keeping its terminator ("\n", "\r\n"
// or "\r"). The last line has no terminator when text does not end with
// one. Concatenating the result yields text.
func Split(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			out = append(out, text[start:i+1])
			start = i + 1
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			out = append(out, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// terminator returns the line terminator at the end of s, if any.
func terminator(s string) string {
	switch {
	case strings.HasSuffix(s, "\r\n"):
		return "\r\n"
	case strings.HasSuffix(s, "\n"):
		return "\n"
	case strings.HasSuffix(s, "\r"):
		return "\r"
	}
	return ""
}

// FilterResult is the outcome of filtering one document.
type FilterResult struct {
	// Text is the filtered text. It is empty when every line was removed.
	Text string

	// Kept counts non-blank lines kept.
	Kept int

	// Removed counts lines removed.
	Removed int

	// Blank counts blank lines passed through.
	Blank int
}

// Filter keeps the blank lines of text and the non-blank lines whose
// corpus-wide count is exactly one, in their original order.
//
// When text does not end with a line terminator but the kept output does,
// the trailing terminator is trimmed, so a document never gains a final
// newline it did not have.
func Filter(text string, counts *Counts) FilterResult {
	var (
		b   strings.Builder
		res FilterResult
	)
	b.Grow(len(text))

	for _, line := range Split(text) {
		norm := Normalize(line)
		if norm == "" {
			res.Blank++
			b.WriteString(line)
			continue
		}
		if counts.Get(FingerprintOf(norm)) == 1 {
			res.Kept++
			b.WriteString(line)
			continue
		}
		res.Removed++
	}

	out := b.String()
	if terminator(text) == "" {
		out = strings.TrimSuffix(out, terminator(out))
	}
	res.Text = out
	return res
}
