// Package shingle extracts word n-gram shingles from document text.
package shingle

import (
	"sort"
	"strings"
)

// separator joins the words of a shingle.
const separator = " "

// Set is a set of shingles.
type Set map[string]struct{}

// Words splits text on Unicode whitespace. No other normalization is
// applied: case and punctuation are kept.
func Words(text string) []string {
	return strings.Fields(text)
}

// Extract returns the distinct contiguous n-word shingles of text.
//
// A text with fewer than n words (but at least one) yields a single shingle
// made of all its words, so short documents can still be compared. A text
// without words yields an empty set.
func Extract(text string, n int) Set {
	return FromWords(Words(text), n)
}

// FromWords is Extract over pre-split words.
func FromWords(words []string, n int) Set {
	if len(words) == 0 {
		return Set{}
	}
	if n <= 0 {
		n = 1
	}
	if len(words) < n {
		return Set{strings.Join(words, separator): {}}
	}

	set := make(Set, len(words)-n+1)
	for i := 0; i+n <= len(words); i++ {
		set[strings.Join(words[i:i+n], separator)] = struct{}{}
	}
	return set
}

// Len returns the number of shingles.
func (s Set) Len() int {
	return len(s)
}

// Contains reports whether sh is in the set.
func (s Set) Contains(sh string) bool {
	_, ok := s[sh]
	return ok
}

// Sorted returns the shingles in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for sh := range s {
		out = append(out, sh)
	}
	sort.Strings(out)
	return out
}

// Jaccard returns |s ∩ other| / |s ∪ other|. Two empty sets have
// similarity 0, matching the rule that empty documents never duplicate
// each other.
func (s Set) Jaccard(other Set) float64 {
	if len(s) == 0 || len(other) == 0 {
		return 0
	}
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for sh := range small {
		if large.Contains(sh) {
			inter++
		}
	}
	union := len(s) + len(other) - inter
	return float64(inter) / float64(union)
}
