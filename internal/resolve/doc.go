// Package resolve turns LSH candidate pairs into duplicate groups.
//
// Candidates are verified against the similarity threshold, verified pairs
// are merged in a disjoint-set forest, and every connected component of
// two or more documents becomes a group. The group member with the lowest
// index is kept. Callers index documents in stable ID order, so the kept
// document is the one with the lowest ID, whatever order the pairs were
// found in. Resolution is transitive: if A~B and B~C, all three share one
// group even when A and C were never compared.
package resolve
