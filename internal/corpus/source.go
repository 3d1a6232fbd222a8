package corpus

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/neardup/internal/model"
)

// ErrInvalidDocumentID is returned for an ID that cannot be mapped to a
// relative output path.
var ErrInvalidDocumentID = errors.New("invalid document id")

// Source loads a document set.
//
// Read returns the documents sorted by ID together with the documents that
// failed. The error is reserved for failures of the source as a whole, such
// as a canceled context or a missing input root.
type Source interface {
	Read(ctx context.Context) ([]*model.Document, []model.Failure, error)
}

// SliceSource serves documents held in memory. IDs are supplied by the
// caller.
type SliceSource struct {
	docs []*model.Document
}

// NewSliceSource creates a source over docs. The slice is not modified.
func NewSliceSource(docs []*model.Document) *SliceSource {
	return &SliceSource{docs: docs}
}

// Read returns the documents in ID order. A repeated ID is reported as a
// failure and the later occurrence is skipped.
func (s *SliceSource) Read(ctx context.Context) ([]*model.Document, []model.Failure, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	docs := make([]*model.Document, len(s.docs))
	copy(docs, s.docs)
	model.SortDocuments(docs)
	docs, failures := dedupeIDs(docs)
	return docs, failures, nil
}

// dedupeIDs drops documents whose ID repeats. docs must be sorted by ID.
func dedupeIDs(docs []*model.Document) ([]*model.Document, []model.Failure) {
	var failures []model.Failure
	out := docs[:0]
	for i, d := range docs {
		if i > 0 && d.ID == docs[i-1].ID {
			failures = append(failures, model.Failure{
				ID:      d.ID,
				Path:    d.Path,
				Step:    "load",
				Message: fmt.Sprintf("duplicate document id %q", d.ID),
			})
			continue
		}
		out = append(out, d)
	}
	return out, failures
}
