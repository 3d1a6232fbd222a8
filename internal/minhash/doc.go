// Package minhash computes MinHash signatures of shingle sets.
//
// A Family holds k universal hash functions h_i(x) = (a_i*x + b_i) mod M
// over the Mersenne prime M = 2^61 - 1. The fraction of positions at which
// two signatures agree is an unbiased estimate of the Jaccard similarity of
// the underlying sets.
//
// Shingles are mapped to integers with a fixed BLAKE2b-based hash, and the
// family parameters come from a seeded PCG generator, so signatures are
// reproducible across processes and machines for a given seed.
package minhash
