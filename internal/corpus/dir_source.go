package corpus

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/transform"

	"github.com/nao1215/neardup/internal/model"
)

// utf8BOM is stripped from decoded text.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DirSource reads documents from files and directory trees.
//
// Design decision: The whole input set is enumerated and sorted before any
// file is read, so IDs and duplicate-ID resolution never depend on the
// file system's iteration order. Files are then read concurrently, each
// worker writing into its own result slot.
type DirSource struct {
	paths   []string
	workers int
	logger  *slog.Logger
}

// DirSourceOption configures a DirSource.
type DirSourceOption func(*DirSource)

// WithSourceWorkers sets the number of concurrent file reads.
// Values <= 0 are ignored.
func WithSourceWorkers(n int) DirSourceOption {
	return func(s *DirSource) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithSourceLogger sets the logger.
func WithSourceLogger(logger *slog.Logger) DirSourceOption {
	return func(s *DirSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewDirSource creates a source over the given files and directories.
func NewDirSource(paths []string, opts ...DirSourceOption) *DirSource {
	s := &DirSource{
		paths:   paths,
		workers: 8,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// entry is one file to read.
type entry struct {
	id   string
	path string
}

// Read enumerates and loads every regular file under the configured paths.
func (s *DirSource) Read(ctx context.Context) ([]*model.Document, []model.Failure, error) {
	entries, err := s.enumerate()
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].id != entries[j].id {
			return entries[i].id < entries[j].id
		}
		return entries[i].path < entries[j].path
	})

	docs := make([]*model.Document, len(entries))
	errs := make([]error, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, e := range entries {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			text, err := ReadText(e.path)
			if err != nil {
				errs[i] = err
				return nil
			}
			docs[i] = model.NewDocument(e.id, e.path, text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var failures []model.Failure
	loaded := make([]*model.Document, 0, len(docs))
	for i, d := range docs {
		if errs[i] != nil {
			s.logger.Warn("failed to read document", "path", entries[i].path, "error", errs[i])
			failures = append(failures, model.Failure{
				ID:      entries[i].id,
				Path:    entries[i].path,
				Step:    "load",
				Message: errs[i].Error(),
			})
			continue
		}
		loaded = append(loaded, d)
	}

	loaded, dupes := dedupeIDs(loaded)
	for _, f := range dupes {
		s.logger.Warn("skipping document with duplicate id", "doc", f.ID, "path", f.Path)
	}
	failures = append(failures, dupes...)

	s.logger.Debug("documents loaded", "count", len(loaded), "failures", len(failures))
	return loaded, failures, nil
}

// enumerate lists every regular file with its ID.
func (s *DirSource) enumerate() ([]entry, error) {
	var entries []entry
	for _, root := range s.paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to stat input %s: %w", root, err)
		}
		if !info.IsDir() {
			entries = append(entries, entry{id: filepath.Base(root), path: root})
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			entries = append(entries, entry{id: filepath.ToSlash(rel), path: path})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk input %s: %w", root, err)
		}
	}
	return entries, nil
}

// ReadText reads a file and decodes it to UTF-8.
//
// Valid UTF-8 is used as is (minus a byte order mark). Anything else is
// decoded with the encoding sniffed from its byte order mark or HTML meta
// declaration, falling back to windows-1252.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Reading user-supplied inputs is the purpose
	if err != nil {
		return "", err
	}
	return Decode(data)
}

// Decode converts raw document bytes to UTF-8 text.
func Decode(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	}
	enc, name, _ := charset.DetermineEncoding(data, "text/plain")
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s text: %w", name, err)
	}
	// Sniffing only looks at a prefix, so invalid bytes may survive.
	if !utf8.Valid(out) {
		out = bytes.ToValidUTF8(out, []byte("\uFFFD"))
	}
	return string(bytes.TrimPrefix(out, utf8BOM)), nil
}
