package resolve

import (
	"sort"

	"github.com/nao1215/neardup/internal/lsh"
	"github.com/nao1215/neardup/internal/minhash"
	"github.com/nao1215/neardup/internal/model"
	"github.com/nao1215/neardup/internal/shingle"
)

// Scorer returns the similarity of documents a and b.
type Scorer func(a, b int) float64

// SignatureScorer scores pairs by MinHash agreement.
func SignatureScorer(sigs []minhash.Signature) Scorer {
	return func(a, b int) float64 {
		return minhash.Similarity(sigs[a], sigs[b])
	}
}

// ExactScorer scores pairs by exact Jaccard similarity of their shingle
// sets. It removes estimator noise at the cost of keeping every set in
// memory.
func ExactScorer(sets []shingle.Set) Scorer {
	return func(a, b int) float64 {
		return sets[a].Jaccard(sets[b])
	}
}

// Match is a verified duplicate pair.
type Match struct {
	lsh.Pair
	Similarity float64
}

// Verify keeps the candidate pairs whose score is at least threshold.
// The output preserves the order of pairs.
func Verify(pairs []lsh.Pair, score Scorer, threshold float64) []Match {
	var out []Match
	for _, p := range pairs {
		if s := score(p.A, p.B); s >= threshold {
			out = append(out, Match{Pair: p, Similarity: s})
		}
	}
	return out
}

// Group is a set of two or more duplicate documents.
type Group struct {
	// Representative is the lowest member index; it is kept.
	Representative int

	// Members are all member indices in ascending order, including the
	// representative.
	Members []int
}

// Resolve merges matches over n documents and returns the groups of size
// two or more, ordered by representative.
func Resolve(n int, matches []Match) []Group {
	uf := NewUnionFind(n)
	for _, m := range matches {
		uf.Union(m.A, m.B)
	}

	byRoot := make(map[int][]int)
	for i := 0; i < n; i++ {
		if uf.Size(i) < 2 {
			continue
		}
		root := uf.Find(i)
		byRoot[root] = append(byRoot[root], i)
	}

	groups := make([]Group, 0, len(byRoot))
	for _, members := range byRoot {
		groups = append(groups, Group{Representative: members[0], Members: members})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Representative < groups[j].Representative
	})
	return groups
}

// Decisions returns one decision per document. Non-representative group
// members are not retained and record the representative they were
// replaced by, together with their score against it.
func Decisions(ids []string, groups []Group, score Scorer, step string) []model.Decision {
	out := make([]model.Decision, len(ids))
	for i, id := range ids {
		out[i] = model.Decision{ID: id, Retained: true, Step: step}
	}
	for _, g := range groups {
		for _, m := range g.Members {
			if m == g.Representative {
				continue
			}
			out[m].Retained = false
			out[m].SupersededBy = ids[g.Representative]
			out[m].Similarity = score(g.Representative, m)
		}
	}
	return out
}

// ToModel converts index groups to ID groups.
func ToModel(ids []string, groups []Group) []model.DuplicateGroup {
	out := make([]model.DuplicateGroup, len(groups))
	for i, g := range groups {
		members := make([]string, len(g.Members))
		for j, m := range g.Members {
			members[j] = ids[m]
		}
		out[i] = model.DuplicateGroup{Representative: ids[g.Representative], Members: members}
	}
	return out
}
