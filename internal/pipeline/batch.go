package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/neardup/internal/model"
)

// DefaultConcurrency is used when no concurrency is configured.
const DefaultConcurrency = 10

// BatchProcessor runs a function over every document of a set concurrently.
// It uses errgroup to manage goroutines and respect the concurrency limit.
//
// Design decision: We use a separate BatchProcessor rather than having each
// step manage goroutines because:
// 1. Every per-document stage needs the same bounded fan-out
// 2. It keeps cancellation and progress logging in one place
type BatchProcessor struct {
	// concurrency is the maximum number of documents processed at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent documents.
// Default is 10 if not specified; values <= 0 are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// Concurrency returns the concurrency limit.
func (bp *BatchProcessor) Concurrency() int {
	return bp.concurrency
}

// DocumentFunc processes the document at index i. Results must be written
// to a slot owned by i. A returned error aborts the whole batch; problems
// with a single document should be recorded and nil returned.
type DocumentFunc func(ctx context.Context, i int, doc *model.Document) error

// progressEvery is how often progress is logged, in documents.
const progressEvery = 10000

// ProcessDocuments calls fn for every document, at most concurrency at a
// time. It returns the first error from fn or the context error.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
func (bp *BatchProcessor) ProcessDocuments(ctx context.Context, docs []*model.Document, fn DocumentFunc) error {
	bp.logger.Debug("starting batch",
		"documents", len(docs),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, doc := range docs {
		// Stop scheduling once the batch has failed or been cancelled
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			if err := fn(gctx, i, doc); err != nil {
				return err
			}
			if n := done.Add(1); n%progressEvery == 0 {
				bp.logger.Info("batch progress",
					"done", n,
					"total", len(docs),
				)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		// Scheduling stops silently once ctx is cancelled
		err = ctx.Err()
	}
	bp.logger.Debug("batch complete",
		"documents", len(docs),
		"elapsed", time.Since(startTime),
	)
	return err
}
