// Package lsh implements locality-sensitive hashing over MinHash signatures
// by banding.
//
// A signature of length k is cut into b bands of r = k div b rows. Two
// documents become candidates when all r rows of at least one band agree.
// For true Jaccard similarity s the probability of that is
// 1 - (1 - s^r)^b, an S-curve that separates similar from dissimilar
// pairs without comparing every pair.
package lsh
