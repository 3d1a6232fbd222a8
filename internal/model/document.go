package model

import "sort"

// Document is a single corpus entry.
//
// ID is stable for the lifetime of a run and is used for every tie-break,
// so the outcome never depends on arrival order. Text is immutable once
// loaded: stages that rewrite text create a new Document with WithText.
type Document struct {
	// ID is the stable identifier, typically the slash-separated path
	// relative to the input root.
	ID string `json:"id"`

	// Path is the original location of the document, kept for provenance.
	// It is empty for documents that did not come from the filesystem.
	Path string `json:"path,omitempty"`

	// Text is the document content.
	Text string `json:"-"`
}

// NewDocument creates a Document.
func NewDocument(id, path, text string) *Document {
	return &Document{ID: id, Path: path, Text: text}
}

// WithText returns a copy of the document carrying the given text.
// The receiver is left untouched.
func (d *Document) WithText(text string) *Document {
	c := *d
	c.Text = text
	return &c
}

// SortDocuments orders documents by ID.
func SortDocuments(docs []*Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].ID < docs[j].ID
	})
}

// Failure records a document that could not be read or processed.
// A failed document is excluded from the output; it never aborts the run.
type Failure struct {
	// ID is the document ID, if one could be derived.
	ID string `json:"id,omitempty"`

	// Path is the location that failed.
	Path string `json:"path,omitempty"`

	// Step is the pipeline step that recorded the failure.
	Step string `json:"step"`

	// Message is the error text.
	Message string `json:"message"`
}
