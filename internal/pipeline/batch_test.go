package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/nao1215/neardup/internal/model"
)

func makeDocs(n int) []*model.Document {
	docs := make([]*model.Document, n)
	for i := range docs {
		docs[i] = model.NewDocument(fmt.Sprintf("doc-%03d", i), "", fmt.Sprintf("text %d", i))
	}
	return docs
}

func TestNewBatchProcessor(t *testing.T) {
	t.Parallel()

	t.Run("uses default concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor()
		if bp.Concurrency() != DefaultConcurrency {
			t.Errorf("expected %d, got %d", DefaultConcurrency, bp.Concurrency())
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(WithConcurrency(0))
		if bp.Concurrency() != DefaultConcurrency {
			t.Errorf("expected %d, got %d", DefaultConcurrency, bp.Concurrency())
		}
	})
}

func TestBatchProcessorProcessDocuments(t *testing.T) {
	t.Parallel()

	t.Run("visits every document once", func(t *testing.T) {
		t.Parallel()

		docs := makeDocs(100)
		seen := make([]int32, len(docs))
		bp := NewBatchProcessor(WithConcurrency(4), WithBatchLogger(discardLogger()))

		err := bp.ProcessDocuments(context.Background(), docs, func(_ context.Context, i int, doc *model.Document) error {
			if doc != docs[i] {
				return fmt.Errorf("index %d does not match document %s", i, doc.ID)
			}
			atomic.AddInt32(&seen[i], 1)
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i, n := range seen {
			if n != 1 {
				t.Errorf("document %d visited %d times", i, n)
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		bp := NewBatchProcessor(WithConcurrency(3), WithBatchLogger(discardLogger()))

		err := bp.ProcessDocuments(context.Background(), makeDocs(50), func(context.Context, int, *model.Document) error {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			current.Add(-1)
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 3 {
			t.Errorf("expected at most 3 concurrent calls, got %d", peak.Load())
		}
	})

	t.Run("returns first error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		bp := NewBatchProcessor(WithConcurrency(2), WithBatchLogger(discardLogger()))

		err := bp.ProcessDocuments(context.Background(), makeDocs(20), func(_ context.Context, i int, _ *model.Document) error {
			if i == 5 {
				return boom
			}
			return nil
		})
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})

	t.Run("returns context error when cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		bp := NewBatchProcessor(WithBatchLogger(discardLogger()))

		err := bp.ProcessDocuments(ctx, makeDocs(10), func(context.Context, int, *model.Document) error {
			return nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("handles empty input", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(WithBatchLogger(discardLogger()))
		err := bp.ProcessDocuments(context.Background(), nil, func(context.Context, int, *model.Document) error {
			t.Error("function should not be called")
			return nil
		})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
