package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nao1215/neardup/internal/model"
)

// Sink persists filtered documents. Implementations must be safe for
// concurrent use.
type Sink interface {
	Write(ctx context.Context, doc *model.Document) error
}

// DirSink writes each document to <root>/<ID>.
type DirSink struct {
	root string
}

// NewDirSink creates a sink rooted at dir. The directory is created on the
// first write.
func NewDirSink(dir string) *DirSink {
	return &DirSink{root: dir}
}

// Root returns the output directory.
func (s *DirSink) Root() string {
	return s.root
}

// Write stores the document atomically: the text goes to a temporary file in
// the target directory, which is then renamed into place.
func (s *DirSink) Write(ctx context.Context, doc *model.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dest, err := s.mapPath(doc.ID)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".neardup-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.WriteString(doc.Text); err != nil {
		cleanup()
		return fmt.Errorf("failed to write %s: %w", doc.ID, err)
	}
	if err := tmp.Chmod(0o644); err != nil { //nolint:gosec // Output corpus files are meant to be shared
		cleanup()
		return fmt.Errorf("failed to set permissions on %s: %w", doc.ID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", doc.ID, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move %s into place: %w", doc.ID, err)
	}
	return nil
}

// mapPath turns an ID into a path under root, rejecting absolute paths and
// parent escapes.
func (s *DirSink) mapPath(id string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(id))
	if rel == "." || rel == "" || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentID, id)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentID, id)
	}
	return filepath.Join(s.root, rel), nil
}

// MemorySink collects documents in memory.
type MemorySink struct {
	mu   sync.Mutex
	docs map[string]*model.Document
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{docs: make(map[string]*model.Document)}
}

// Write stores doc, replacing any earlier document with the same ID.
func (s *MemorySink) Write(ctx context.Context, doc *model.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

// Documents returns the stored documents in ID order.
func (s *MemorySink) Documents() []*model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the document with the given ID.
func (s *MemorySink) Get(id string) (*model.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	return d, ok
}
