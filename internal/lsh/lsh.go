package lsh

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/neardup/internal/minhash"
)

var (
	// ErrInvalidBanding is returned for a band count outside [1, k].
	ErrInvalidBanding = errors.New("number of bands must be between 1 and the signature length")

	// ErrSignatureLength is returned when a signature does not have length k.
	ErrSignatureLength = errors.New("signature length does not match")
)

// BandKey identifies a bucket: the band index plus the exact bytes of the
// band's rows. Equal keys mean equal rows; no lossy hashing is involved.
type BandKey struct {
	Band   int
	Values string
}

// Pair is an unordered candidate pair of document indices with A < B.
type Pair struct {
	A, B int
}

// Bander splits signatures into bands.
type Bander struct {
	k       int
	bands   int
	rows    int
	workers int
}

// Option configures a Bander.
type Option func(*Bander)

// WithWorkers bounds the number of bands bucketed concurrently.
// Values <= 0 are ignored.
func WithWorkers(n int) Option {
	return func(b *Bander) {
		if n > 0 {
			b.workers = n
		}
	}
}

// NewBander creates a Bander for signatures of length k cut into b bands.
// When b does not divide k the trailing UnusedRows rows are ignored; the
// caller decides whether that is acceptable.
func NewBander(k, b int, opts ...Option) (*Bander, error) {
	if k <= 0 || b <= 0 || b > k {
		return nil, fmt.Errorf("%w: k=%d b=%d", ErrInvalidBanding, k, b)
	}
	bd := &Bander{k: k, bands: b, rows: k / b, workers: b}
	for _, opt := range opts {
		opt(bd)
	}
	return bd, nil
}

// Bands returns b.
func (b *Bander) Bands() int { return b.bands }

// Rows returns r, the rows per band.
func (b *Bander) Rows() int { return b.rows }

// UnusedRows returns k - b*r.
func (b *Bander) UnusedRows() int { return b.k - b.bands*b.rows }

// Key returns the bucket key of one band of sig.
func (b *Bander) Key(band int, sig minhash.Signature) BandKey {
	buf := make([]byte, 8*b.rows)
	start := band * b.rows
	for j := 0; j < b.rows; j++ {
		binary.LittleEndian.PutUint64(buf[8*j:], sig[start+j])
	}
	return BandKey{Band: band, Values: string(buf)}
}

// Buckets holds, per band, the documents that share each bucket.
// Document indices inside a bucket are in ascending order.
type Buckets struct {
	bands []map[string][]int
}

// Build buckets every included signature.
//
// Design decision: Each band is bucketed by its own goroutine into its own
// map. Bands never share a bucket, so sharding by band needs no locking and
// the result is independent of scheduling.
func (b *Bander) Build(ctx context.Context, sigs []minhash.Signature, include func(int) bool) (*Buckets, error) {
	for i, sig := range sigs {
		if len(sig) != b.k {
			return nil, fmt.Errorf("%w: signature %d has length %d, want %d", ErrSignatureLength, i, len(sig), b.k)
		}
	}
	if include == nil {
		include = func(int) bool { return true }
	}

	out := &Buckets{bands: make([]map[string][]int, b.bands)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for band := 0; band < b.bands; band++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m := make(map[string][]int)
			for i, sig := range sigs {
				if !include(i) {
					continue
				}
				key := b.Key(band, sig).Values
				m[key] = append(m[key], i)
			}
			out.bands[band] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Bucket returns the documents in the bucket identified by key.
func (bk *Buckets) Bucket(key BandKey) []int {
	if key.Band < 0 || key.Band >= len(bk.bands) {
		return nil
	}
	return bk.bands[key.Band][key.Values]
}

// Len returns the total number of buckets over all bands.
func (bk *Buckets) Len() int {
	n := 0
	for _, m := range bk.bands {
		n += len(m)
	}
	return n
}

// Candidates returns every pair of documents that share at least one
// bucket, each pair once, sorted by (A, B).
func (bk *Buckets) Candidates() []Pair {
	seen := make(map[Pair]struct{})
	for _, m := range bk.bands {
		for _, members := range m {
			for x := 0; x < len(members); x++ {
				for y := x + 1; y < len(members); y++ {
					seen[Pair{A: members[x], B: members[y]}] = struct{}{}
				}
			}
		}
	}

	pairs := make([]Pair, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs
}

// CollisionProbability returns 1 - (1 - s^r)^b, the probability that two
// documents with Jaccard similarity s share at least one of b bands of r
// rows.
func CollisionProbability(s float64, b, r int) float64 {
	return 1 - math.Pow(1-math.Pow(s, float64(r)), float64(b))
}

// Threshold returns (1/b)^(1/r), the approximate similarity at which the
// S-curve is steepest.
func Threshold(b, r int) float64 {
	return math.Pow(1/float64(b), 1/float64(r))
}
