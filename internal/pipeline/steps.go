package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/nao1215/neardup/internal/config"
	"github.com/nao1215/neardup/internal/corpus"
	"github.com/nao1215/neardup/internal/lines"
	"github.com/nao1215/neardup/internal/lsh"
	"github.com/nao1215/neardup/internal/minhash"
	"github.com/nao1215/neardup/internal/model"
	"github.com/nao1215/neardup/internal/quality"
	"github.com/nao1215/neardup/internal/resolve"
	"github.com/nao1215/neardup/internal/shingle"
)

// Step names as recorded in the report.
const (
	StepLoad    = "load"
	StepLines   = config.StageLines
	StepMinHash = config.StageMinHash
	StepQuality = config.StageQuality
	StepWrite   = "write"
)

// LoadStep reads the document set from a corpus.Source.
type LoadStep struct {
	source corpus.Source
	logger *slog.Logger
}

// LoadStepOption configures a LoadStep.
type LoadStepOption func(*LoadStep)

// WithLoadLogger sets a custom logger for the load step.
func WithLoadLogger(logger *slog.Logger) LoadStepOption {
	return func(s *LoadStep) {
		s.logger = logger
	}
}

// NewLoadStep creates a step that loads documents from source.
func NewLoadStep(source corpus.Source, opts ...LoadStepOption) *LoadStep {
	s := &LoadStep{source: source, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return StepLoad
}

// Do loads the documents. Documents that fail to load are recorded as
// failures and left out of the run.
func (s *LoadStep) Do(ctx context.Context, run *model.Run) error {
	docs, failures, err := s.source.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	for _, f := range failures {
		run.AddFailure(f)
	}
	model.SortDocuments(docs)
	run.Documents = docs
	run.Report.DocumentsRead = len(docs)

	s.logger.Info("documents loaded",
		"documents", len(docs),
		"failures", len(failures),
	)
	return nil
}

// QualityStep drops documents rejected by a quality.Classifier.
//
// Design decision: Classification runs as its own stage, never inside the
// dedup stages, so the same classifier can be placed before dedup (to save
// work) or after it (to judge the final text).
type QualityStep struct {
	classifier quality.Classifier
	batch      *BatchProcessor
	logger     *slog.Logger
}

// QualityStepOption configures a QualityStep.
type QualityStepOption func(*QualityStep)

// WithQualityBatch sets the batch processor used for classification.
func WithQualityBatch(bp *BatchProcessor) QualityStepOption {
	return func(s *QualityStep) {
		s.batch = bp
	}
}

// WithQualityLogger sets a custom logger for the quality step.
func WithQualityLogger(logger *slog.Logger) QualityStepOption {
	return func(s *QualityStep) {
		s.logger = logger
	}
}

// NewQualityStep creates a quality filtering step.
func NewQualityStep(classifier quality.Classifier, opts ...QualityStepOption) *QualityStep {
	s := &QualityStep{classifier: classifier, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.batch == nil {
		s.batch = NewBatchProcessor(WithBatchLogger(s.logger))
	}
	return s
}

// Name returns the step name.
func (s *QualityStep) Name() string {
	return StepQuality
}

// Do classifies every document. An unavailable model aborts the run; any
// other classification error only excludes the affected document.
func (s *QualityStep) Do(ctx context.Context, run *model.Run) error {
	docs := run.Documents
	results := make([]quality.Result, len(docs))
	failed := make([]error, len(docs))

	err := s.batch.ProcessDocuments(ctx, docs, func(ctx context.Context, i int, doc *model.Document) error {
		res, err := s.classifier.Classify(ctx, doc.Text)
		if err != nil {
			if errors.Is(err, quality.ErrModelUnavailable) || ctx.Err() != nil {
				return err
			}
			failed[i] = err
			return nil
		}
		results[i] = res
		return nil
	})
	if err != nil {
		return fmt.Errorf("quality classification failed: %w", err)
	}

	stats := &model.QualityStats{Documents: len(docs), Reasons: make(map[string]int)}
	kept := make([]*model.Document, 0, len(docs))
	var decisions []model.Decision
	for i, doc := range docs {
		if failed[i] != nil {
			s.logger.Warn("failed to classify document", "doc", doc.ID, "error", failed[i])
			run.AddFailure(model.Failure{ID: doc.ID, Path: doc.Path, Step: s.Name(), Message: failed[i].Error()})
			continue
		}
		if results[i].Keep() {
			kept = append(kept, doc)
			stats.Kept++
			continue
		}
		stats.Dropped++
		stats.Reasons[results[i].Reason]++
		decisions = append(decisions, model.Decision{ID: doc.ID, Step: s.Name(), Reason: results[i].Reason})
		s.logger.Debug("document dropped", "doc", doc.ID, "reason", results[i].Reason)
	}

	run.AddDecisions(decisions...)
	run.Documents = kept
	run.Report.Quality = stats
	return nil
}

// ExactLineStep removes lines that occur more than once across the corpus.
type ExactLineStep struct {
	batch  *BatchProcessor
	logger *slog.Logger
}

// ExactLineStepOption configures an ExactLineStep.
type ExactLineStepOption func(*ExactLineStep)

// WithLinesBatch sets the batch processor used for filtering.
func WithLinesBatch(bp *BatchProcessor) ExactLineStepOption {
	return func(s *ExactLineStep) {
		s.batch = bp
	}
}

// WithLinesLogger sets a custom logger for the exact-line step.
func WithLinesLogger(logger *slog.Logger) ExactLineStepOption {
	return func(s *ExactLineStep) {
		s.logger = logger
	}
}

// NewExactLineStep creates an exact-line dedup step.
func NewExactLineStep(opts ...ExactLineStepOption) *ExactLineStep {
	s := &ExactLineStep{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.batch == nil {
		s.batch = NewBatchProcessor(WithBatchLogger(s.logger))
	}
	return s
}

// Name returns the step name.
func (s *ExactLineStep) Name() string {
	return StepLines
}

// Do counts lines over the whole document set, then filters each document.
// Documents whose every line was removed stay in the run with empty text.
func (s *ExactLineStep) Do(ctx context.Context, run *model.Run) error {
	docs := run.Documents
	counts, err := lines.Count(ctx, docs, s.batch.Concurrency())
	if err != nil {
		return fmt.Errorf("failed to count lines: %w", err)
	}

	results := make([]lines.FilterResult, len(docs))
	err = s.batch.ProcessDocuments(ctx, docs, func(_ context.Context, i int, doc *model.Document) error {
		results[i] = lines.Filter(doc.Text, counts)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to filter lines: %w", err)
	}

	stats := &model.LineStats{
		Documents:     len(docs),
		DistinctLines: counts.Len(),
		RepeatedLines: counts.Repeated(),
	}
	out := make([]*model.Document, len(docs))
	for i, doc := range docs {
		r := results[i]
		stats.LinesKept += r.Kept
		stats.LinesRemoved += r.Removed
		stats.BlankLines += r.Blank
		if r.Removed == 0 {
			out[i] = doc
			continue
		}
		if r.Text == "" {
			stats.DocumentsEmptied++
		}
		out[i] = doc.WithText(r.Text)
	}

	s.logger.Info("exact-line dedup complete",
		"distinct_lines", stats.DistinctLines,
		"repeated_lines", stats.RepeatedLines,
		"lines_removed", stats.LinesRemoved,
	)
	run.Documents = out
	run.Report.Lines = stats
	return nil
}

// NearDuplicateStep removes near-duplicate documents with MinHash and LSH,
// keeping the lowest ID of every duplicate group.
type NearDuplicateStep struct {
	family    *minhash.Family
	bander    *lsh.Bander
	ngram     int
	threshold float64
	exact     bool
	batch     *BatchProcessor
	logger    *slog.Logger
}

// NearDuplicateStepOption configures a NearDuplicateStep.
type NearDuplicateStepOption func(*NearDuplicateStep)

// WithNgramSize sets the shingle width in words.
func WithNgramSize(n int) NearDuplicateStepOption {
	return func(s *NearDuplicateStep) {
		if n > 0 {
			s.ngram = n
		}
	}
}

// WithThreshold sets the similarity at or above which candidates are
// duplicates.
func WithThreshold(t float64) NearDuplicateStepOption {
	return func(s *NearDuplicateStep) {
		s.threshold = t
	}
}

// WithExactVerify verifies candidates with exact Jaccard similarity.
func WithExactVerify(exact bool) NearDuplicateStepOption {
	return func(s *NearDuplicateStep) {
		s.exact = exact
	}
}

// WithNearDuplicateBatch sets the batch processor used for signing.
func WithNearDuplicateBatch(bp *BatchProcessor) NearDuplicateStepOption {
	return func(s *NearDuplicateStep) {
		s.batch = bp
	}
}

// WithNearDuplicateLogger sets a custom logger for the near-duplicate step.
func WithNearDuplicateLogger(logger *slog.Logger) NearDuplicateStepOption {
	return func(s *NearDuplicateStep) {
		s.logger = logger
	}
}

// NewNearDuplicateStep creates a near-duplicate step. The family and bander
// are shared read-only; the bander's signature length must match the
// family's.
func NewNearDuplicateStep(family *minhash.Family, bander *lsh.Bander, opts ...NearDuplicateStepOption) *NearDuplicateStep {
	s := &NearDuplicateStep{
		family:    family,
		bander:    bander,
		ngram:     config.DefaultNgramSize,
		threshold: config.DefaultJaccardThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.batch == nil {
		s.batch = NewBatchProcessor(WithBatchLogger(s.logger))
	}
	return s
}

// Name returns the step name.
func (s *NearDuplicateStep) Name() string {
	return StepMinHash
}

// Do signs every document, buckets the signatures, verifies candidate
// pairs and resolves duplicate groups with union-find.
//
// Documents without any shingle get the zero signature and are never
// bucketed, so empty documents never count as duplicates of each other.
func (s *NearDuplicateStep) Do(ctx context.Context, run *model.Run) error {
	docs := make([]*model.Document, len(run.Documents))
	copy(docs, run.Documents)
	if !sort.SliceIsSorted(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID }) {
		model.SortDocuments(docs)
	}

	n := len(docs)
	sigs := make([]minhash.Signature, n)
	empty := make([]bool, n)
	var sets []shingle.Set
	if s.exact {
		sets = make([]shingle.Set, n)
	}

	err := s.batch.ProcessDocuments(ctx, docs, func(_ context.Context, i int, doc *model.Document) error {
		set := shingle.Extract(doc.Text, s.ngram)
		empty[i] = set.Len() == 0
		sigs[i] = s.family.Sign(set)
		if sets != nil {
			sets[i] = set
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to compute signatures: %w", err)
	}

	if unused := s.bander.UnusedRows(); unused > 0 {
		msg := fmt.Sprintf("%d of %d signature rows are ignored: %d bands of %d rows",
			unused, s.family.Len(), s.bander.Bands(), s.bander.Rows())
		s.logger.Warn("unused signature rows", "unused_rows", unused, "bands", s.bander.Bands(), "rows", s.bander.Rows())
		run.AddWarning(msg)
	}

	buckets, err := s.bander.Build(ctx, sigs, func(i int) bool { return !empty[i] })
	if err != nil {
		return fmt.Errorf("failed to build LSH buckets: %w", err)
	}
	candidates := buckets.Candidates()

	score := resolve.SignatureScorer(sigs)
	if s.exact {
		score = resolve.ExactScorer(sets)
	}
	matches := resolve.Verify(candidates, score, s.threshold)
	groups := resolve.Resolve(n, matches)

	ids := make([]string, n)
	for i, d := range docs {
		ids[i] = d.ID
	}
	decisions := resolve.Decisions(ids, groups, score, s.Name())

	grouped := make([]bool, n)
	for _, g := range groups {
		for _, m := range g.Members {
			grouped[m] = true
		}
	}

	stats := &model.NearDupStats{
		Documents:     n,
		Candidates:    len(candidates),
		VerifiedPairs: len(matches),
		Groups:        len(groups),
	}
	retained := make([]*model.Document, 0, n)
	var recorded []model.Decision
	for i, d := range decisions {
		if empty[i] {
			stats.EmptyDocuments++
		}
		if grouped[i] {
			recorded = append(recorded, d)
		}
		if d.Retained {
			retained = append(retained, docs[i])
			continue
		}
		stats.DocumentsRemoved++
		s.logger.Debug("near-duplicate removed",
			"doc", d.ID,
			"superseded_by", d.SupersededBy,
			"similarity", d.Similarity,
		)
	}

	s.logger.Info("near-duplicate dedup complete",
		"candidates", stats.Candidates,
		"verified_pairs", stats.VerifiedPairs,
		"groups", stats.Groups,
		"removed", stats.DocumentsRemoved,
	)

	run.AddDecisions(recorded...)
	run.Report.Groups = append(run.Report.Groups, resolve.ToModel(ids, groups)...)
	run.Report.NearDup = stats
	run.Documents = retained
	return nil
}

// WriteStep persists the surviving documents to a corpus.Sink.
type WriteStep struct {
	sink   corpus.Sink
	batch  *BatchProcessor
	logger *slog.Logger
}

// WriteStepOption configures a WriteStep.
type WriteStepOption func(*WriteStep)

// WithWriteBatch sets the batch processor used for writing.
func WithWriteBatch(bp *BatchProcessor) WriteStepOption {
	return func(s *WriteStep) {
		s.batch = bp
	}
}

// WithWriteLogger sets a custom logger for the write step.
func WithWriteLogger(logger *slog.Logger) WriteStepOption {
	return func(s *WriteStep) {
		s.logger = logger
	}
}

// NewWriteStep creates a step that writes documents to sink.
func NewWriteStep(sink corpus.Sink, opts ...WriteStepOption) *WriteStep {
	s := &WriteStep{sink: sink, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.batch == nil {
		s.batch = NewBatchProcessor(WithBatchLogger(s.logger))
	}
	return s
}

// Name returns the step name.
func (s *WriteStep) Name() string {
	return StepWrite
}

// Do writes every document. A document that cannot be written is recorded
// as a failure; the others are still written.
func (s *WriteStep) Do(ctx context.Context, run *model.Run) error {
	docs := run.Documents
	errs := make([]error, len(docs))

	err := s.batch.ProcessDocuments(ctx, docs, func(ctx context.Context, i int, doc *model.Document) error {
		if err := s.sink.Write(ctx, doc); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs[i] = err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write documents: %w", err)
	}

	written := 0
	for i, doc := range docs {
		if errs[i] != nil {
			s.logger.Warn("failed to write document", "doc", doc.ID, "error", errs[i])
			run.AddFailure(model.Failure{ID: doc.ID, Path: doc.Path, Step: s.Name(), Message: errs[i].Error()})
			continue
		}
		written++
	}
	run.Report.DocumentsWritten = written
	return nil
}

// DefaultPipelineConfig holds collaborators that DefaultPipeline cannot
// derive from config.Config.
type DefaultPipelineConfig struct {
	// Classifier replaces the built-in Gopher classifier of the quality stage.
	Classifier quality.Classifier

	// Logger is passed to every step.
	Logger *slog.Logger
}

// DefaultPipelineOption configures DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineClassifier sets the quality classifier.
func WithPipelineClassifier(c quality.Classifier) DefaultPipelineOption {
	return func(cfg *DefaultPipelineConfig) {
		cfg.Classifier = c
	}
}

// WithPipelineLogger sets the logger of every step.
func WithPipelineLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(cfg *DefaultPipelineConfig) {
		cfg.Logger = logger
	}
}

// DefaultPipeline builds load, the configured stages in order, and write.
// The hash family and the quality classifier are built once here and
// shared by every worker of the run.
func DefaultPipeline(cfg *config.Config, source corpus.Source, sink corpus.Sink, pipelineOpts []Option, configOpts ...DefaultPipelineOption) (*Pipeline, error) {
	pc := &DefaultPipelineConfig{}
	for _, opt := range configOpts {
		opt(pc)
	}
	logger := pc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := New(pipelineOpts...)
	batch := NewBatchProcessor(WithConcurrency(cfg.Workers), WithBatchLogger(logger))

	p.AddStep(NewLoadStep(source, WithLoadLogger(logger)))
	for _, stage := range cfg.Stages {
		switch stage {
		case config.StageLines:
			p.AddStep(NewExactLineStep(WithLinesBatch(batch), WithLinesLogger(logger)))
		case config.StageMinHash:
			family, err := minhash.NewFamily(cfg.NumHashes, uint64(cfg.RandomSeed)) //nolint:gosec // Negative seeds are valid PCG seeds
			if err != nil {
				return nil, fmt.Errorf("failed to create hash family: %w", err)
			}
			bander, err := lsh.NewBander(cfg.NumHashes, cfg.NumBands, lsh.WithWorkers(cfg.Workers))
			if err != nil {
				return nil, fmt.Errorf("failed to create LSH bander: %w", err)
			}
			p.AddStep(NewNearDuplicateStep(family, bander,
				WithNgramSize(cfg.NgramSize),
				WithThreshold(cfg.JaccardThreshold),
				WithExactVerify(cfg.ExactVerify),
				WithNearDuplicateBatch(batch),
				WithNearDuplicateLogger(logger),
			))
		case config.StageQuality:
			classifier := pc.Classifier
			if classifier == nil {
				classifier = quality.NewCachedClassifier(quality.NewGopher(RulesFromConfig(cfg.Quality)))
			}
			p.AddStep(NewQualityStep(classifier, WithQualityBatch(batch), WithQualityLogger(logger)))
		default:
			return nil, fmt.Errorf("%w: %q", config.ErrUnknownStage, stage)
		}
	}
	p.AddStep(NewWriteStep(sink, WithWriteBatch(batch), WithWriteLogger(logger)))
	return p, nil
}

// RulesFromConfig converts configured thresholds to quality rules.
func RulesFromConfig(q config.QualityConfig) quality.Rules {
	return quality.Rules{
		MinWords:             q.MinWords,
		MaxWords:             q.MaxWords,
		MinMeanWordLength:    q.MinMeanWordLength,
		MaxMeanWordLength:    q.MaxMeanWordLength,
		MaxEllipsisLineRatio: q.MaxEllipsisLineRatio,
		MinAlphaWordRatio:    q.MinAlphaWordRatio,
	}
}

// NewParams records the effective parameters of cfg.
func NewParams(cfg *config.Config) model.Params {
	return model.Params{
		NumHashes:        cfg.NumHashes,
		NumBands:         cfg.NumBands,
		RowsPerBand:      cfg.RowsPerBand(),
		UnusedRows:       cfg.UnusedRows(),
		NgramSize:        cfg.NgramSize,
		JaccardThreshold: cfg.JaccardThreshold,
		RandomSeed:       cfg.RandomSeed,
		Stages:           append([]string(nil), cfg.Stages...),
		Workers:          cfg.Workers,
	}
}

// NewRun creates the run state for cfg.
func NewRun(cfg *config.Config) *model.Run {
	run := model.NewRun(NewParams(cfg))
	run.Report.Inputs = append([]string(nil), cfg.Inputs...)
	run.Report.OutputDir = cfg.OutputDir
	return run
}
