package minhash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"math/rand/v2"

	"golang.org/x/crypto/blake2b"

	"github.com/nao1215/neardup/internal/shingle"
)

// Prime is the modulus of the hash family, 2^61 - 1.
const Prime uint64 = 1<<61 - 1

// ErrInvalidNumHashes is returned by NewFamily for a non-positive k.
var ErrInvalidNumHashes = errors.New("number of hash functions must be positive")

// Signature is a MinHash signature.
type Signature []uint64

// HashShingle maps a shingle to an integer: the first 8 bytes of its
// BLAKE2b-256 digest read as little endian.
func HashShingle(s string) uint64 {
	sum := blake2b.Sum256([]byte(s))
	return binary.LittleEndian.Uint64(sum[:8])
}

// coeff is one hash function of the family.
type coeff struct {
	a uint64 // in [1, Prime-1]
	b uint64 // in [0, Prime-1]
}

// Family is a set of k hash functions. It is read-only after NewFamily and
// safe to share between goroutines.
type Family struct {
	coeffs []coeff
	seed   uint64
}

// NewFamily draws k hash functions from a PCG generator seeded with seed.
func NewFamily(k int, seed uint64) (*Family, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNumHashes, k)
	}
	rng := rand.New(rand.NewPCG(seed, seed)) //nolint:gosec // Reproducible parameters, not secrets
	coeffs := make([]coeff, k)
	for i := range coeffs {
		coeffs[i] = coeff{
			a: 1 + rng.Uint64N(Prime-1),
			b: rng.Uint64N(Prime),
		}
	}
	return &Family{coeffs: coeffs, seed: seed}, nil
}

// Len returns k.
func (f *Family) Len() int {
	return len(f.coeffs)
}

// Seed returns the seed the family was drawn from.
func (f *Family) Seed() uint64 {
	return f.seed
}

// apply computes (a*x + b) mod Prime with a 128-bit intermediate.
// x must be below Prime, which keeps the high word below Prime as Div64
// requires.
func (c coeff) apply(x uint64) uint64 {
	hi, lo := bits.Mul64(c.a, x)
	var carry uint64
	lo, carry = bits.Add64(lo, c.b, 0)
	hi += carry
	_, rem := bits.Div64(hi, lo, Prime)
	return rem
}

// Sign computes the signature of a shingle set. An empty set yields the
// all-zero signature of length k.
func (f *Family) Sign(set shingle.Set) Signature {
	hashes := make([]uint64, 0, len(set))
	for s := range set {
		hashes = append(hashes, HashShingle(s))
	}
	return f.SignHashes(hashes)
}

// SignHashes is Sign over pre-hashed shingles.
func (f *Family) SignHashes(hashes []uint64) Signature {
	sig := make(Signature, len(f.coeffs))
	if len(hashes) == 0 {
		return sig
	}
	for i := range sig {
		sig[i] = math.MaxUint64
	}
	for _, h := range hashes {
		x := h % Prime
		for i, c := range f.coeffs {
			if v := c.apply(x); v < sig[i] {
				sig[i] = v
			}
		}
	}
	return sig
}

// Similarity returns the fraction of positions at which a and b agree.
// Signatures of different or zero length have similarity 0.
func Similarity(a, b Signature) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	same := 0
	for i := range a {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / float64(len(a))
}
