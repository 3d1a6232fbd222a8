// Package lines implements exact line-level deduplication across a corpus.
//
// Deduplication takes two passes. Count builds a corpus-wide table from
// line fingerprint to occurrence count, and Filter then keeps, per
// document, only the non-blank lines that occur exactly once in the whole
// corpus. Blank lines are never counted and never removed.
//
// Lines are compared after trimming surrounding whitespace. The comparison
// key is a 128-bit BLAKE2b fingerprint, which is stable across processes
// and machines.
package lines
