// Package main provides the entry point for the neardup CLI.
//
// neardup removes exact duplicate lines and near-duplicate documents from
// a text corpus, writing the surviving documents to an output directory
// and recording every decision in a run report.
//
// Usage:
//
//	neardup run -o <output-dir> <input>...
//	neardup history
//
// See --help for all available options.
package main

// main is the entry point for neardup.
func main() {
	Execute()
}
