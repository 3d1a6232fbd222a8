package model

// Decision records the outcome for one document in a filtering step.
type Decision struct {
	// ID is the document ID.
	ID string `json:"id"`

	// Retained is false when the document is excluded from the output.
	Retained bool `json:"retained"`

	// SupersededBy is the ID of the group representative that replaced this
	// document. Empty for retained documents and quality drops.
	SupersededBy string `json:"superseded_by,omitempty"`

	// Similarity is the estimated Jaccard similarity to SupersededBy.
	Similarity float64 `json:"similarity,omitempty"`

	// Step is the pipeline step that made the decision.
	Step string `json:"step"`

	// Reason explains a quality drop (for example "word_count").
	Reason string `json:"reason,omitempty"`
}

// DuplicateGroup is one connected component of verified near-duplicates.
type DuplicateGroup struct {
	// Representative is the retained document, the lowest ID in the group.
	Representative string `json:"representative"`

	// Members lists every document of the group in ID order, including
	// the representative.
	Members []string `json:"members"`
}

// Removed returns the members that are excluded from the output.
func (g DuplicateGroup) Removed() []string {
	out := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		if m != g.Representative {
			out = append(out, m)
		}
	}
	return out
}
