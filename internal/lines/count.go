package lines

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/neardup/internal/model"
)

// Counts maps line fingerprints to corpus-wide occurrence counts.
// It is read-only once Count returns.
type Counts struct {
	m map[Fingerprint]int
}

// NewCounts creates an empty table.
func NewCounts() *Counts {
	return &Counts{m: make(map[Fingerprint]int)}
}

// Get returns the occurrence count of a fingerprint.
func (c *Counts) Get(fp Fingerprint) int {
	return c.m[fp]
}

// Len returns the number of distinct lines.
func (c *Counts) Len() int {
	return len(c.m)
}

// Repeated returns the number of distinct lines seen more than once.
func (c *Counts) Repeated() int {
	n := 0
	for _, v := range c.m {
		if v > 1 {
			n++
		}
	}
	return n
}

// Add counts every non-blank line of text.
func (c *Counts) Add(text string) {
	for _, line := range Split(text) {
		norm := Normalize(line)
		if norm == "" {
			continue
		}
		c.m[FingerprintOf(norm)]++
	}
}

// merge folds other into c.
func (c *Counts) merge(other *Counts) {
	for k, v := range other.m {
		c.m[k] += v
	}
}

// checkEvery is how many documents a worker processes between context checks.
const checkEvery = 64

// Count builds the line table for docs using up to workers goroutines.
//
// Design decision: docs is cut into contiguous shards, one per worker, and
// each shard counts into a private table. The tables are merged once every
// shard is done, so no lock is taken per line and no count is lost or
// counted twice.
func Count(ctx context.Context, docs []*model.Document, workers int) (*Counts, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(docs) {
		workers = len(docs)
	}
	if workers == 0 {
		return NewCounts(), ctx.Err()
	}

	shardSize := (len(docs) + workers - 1) / workers
	partials := make([]*Counts, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * shardSize
		end := min(start+shardSize, len(docs))
		g.Go(func() error {
			local := NewCounts()
			for i := start; i < end; i++ {
				if (i-start)%checkEvery == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				local.Add(docs[i].Text)
			}
			partials[w] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := NewCounts()
	for _, p := range partials {
		if p != nil {
			total.merge(p)
		}
	}
	return total, nil
}
