package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/neardup/internal/config"
	"github.com/nao1215/neardup/internal/corpus"
	"github.com/nao1215/neardup/internal/lsh"
	"github.com/nao1215/neardup/internal/minhash"
	"github.com/nao1215/neardup/internal/model"
	"github.com/nao1215/neardup/internal/quality"
)

// classifierFunc adapts a function to quality.Classifier.
type classifierFunc func(ctx context.Context, text string) (quality.Result, error)

func (f classifierFunc) Classify(ctx context.Context, text string) (quality.Result, error) {
	return f(ctx, text)
}

// failingSink rejects one document ID and stores the rest.
type failingSink struct {
	fail  string
	inner *corpus.MemorySink
}

func (s *failingSink) Write(ctx context.Context, doc *model.Document) error {
	if doc.ID == s.fail {
		return errors.New("disk full")
	}
	return s.inner.Write(ctx, doc)
}

// wordRange returns "w<from> ... w<to-1>" separated by spaces.
func wordRange(from, to int) string {
	words := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		words = append(words, fmt.Sprintf("w%d", i))
	}
	return strings.Join(words, " ")
}

func runWith(docs ...*model.Document) *model.Run {
	run := newTestRun()
	run.Documents = docs
	return run
}

func TestLoadStep(t *testing.T) {
	t.Parallel()

	t.Run("loads documents and records duplicate ids", func(t *testing.T) {
		t.Parallel()

		src := corpus.NewSliceSource([]*model.Document{
			model.NewDocument("b", "b.txt", "two"),
			model.NewDocument("a", "a.txt", "one"),
			model.NewDocument("a", "other/a.txt", "again"),
		})
		run := newTestRun()

		if err := NewLoadStep(src, WithLoadLogger(discardLogger())).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := run.IDs(); !slices.Equal(got, []string{"a", "b"}) {
			t.Errorf("expected [a b], got %v", got)
		}
		if run.Report.DocumentsRead != 2 {
			t.Errorf("expected 2 documents read, got %d", run.Report.DocumentsRead)
		}
		if len(run.Report.Failures) != 1 {
			t.Fatalf("expected 1 failure, got %d", len(run.Report.Failures))
		}
	})

	t.Run("returns source error", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := NewLoadStep(corpus.NewSliceSource(nil)).Do(ctx, newTestRun())
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestExactLineStep(t *testing.T) {
	t.Parallel()

	t.Run("removes lines repeated across documents", func(t *testing.T) {
		t.Parallel()

		run := runWith(
			model.NewDocument("1", "", "the quick fox\nalpha line\n"),
			model.NewDocument("2", "", "beta line\nthe quick fox\n"),
			model.NewDocument("3", "", "gamma line\n"),
		)
		step := NewExactLineStep(WithLinesLogger(discardLogger()))

		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := map[string]string{"1": "alpha line\n", "2": "beta line\n", "3": "gamma line\n"}
		for _, d := range run.Documents {
			if d.Text != want[d.ID] {
				t.Errorf("document %s: got %q, expected %q", d.ID, d.Text, want[d.ID])
			}
		}
		stats := run.Report.Lines
		if stats == nil {
			t.Fatal("expected line stats")
		}
		if stats.LinesRemoved != 2 || stats.RepeatedLines != 1 {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})

	t.Run("keeps emptied documents with empty text", func(t *testing.T) {
		t.Parallel()

		run := runWith(
			model.NewDocument("1", "", "same"),
			model.NewDocument("2", "", "same"),
		)
		if err := NewExactLineStep(WithLinesLogger(discardLogger())).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Documents) != 2 {
			t.Fatalf("expected 2 documents, got %d", len(run.Documents))
		}
		for _, d := range run.Documents {
			if d.Text != "" {
				t.Errorf("document %s: expected empty text, got %q", d.ID, d.Text)
			}
		}
		if run.Report.Lines.DocumentsEmptied != 2 {
			t.Errorf("expected 2 emptied documents, got %d", run.Report.Lines.DocumentsEmptied)
		}
	})
}

func newNearDupStep(t *testing.T, k, b int, opts ...NearDuplicateStepOption) *NearDuplicateStep {
	t.Helper()

	family, err := minhash.NewFamily(k, 7)
	if err != nil {
		t.Fatalf("failed to create family: %v", err)
	}
	bander, err := lsh.NewBander(k, b)
	if err != nil {
		t.Fatalf("failed to create bander: %v", err)
	}
	opts = append([]NearDuplicateStepOption{WithNearDuplicateLogger(discardLogger())}, opts...)
	return NewNearDuplicateStep(family, bander, opts...)
}

func TestNearDuplicateStep(t *testing.T) {
	t.Parallel()

	t.Run("removes identical documents keeping the lowest id", func(t *testing.T) {
		t.Parallel()

		text := wordRange(0, 30)
		run := runWith(
			model.NewDocument("c", "", text),
			model.NewDocument("a", "", text),
			model.NewDocument("b", "", wordRange(100, 130)),
		)
		step := newNearDupStep(t, 128, 16, WithNgramSize(3))

		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := run.IDs(); !slices.Equal(got, []string{"a", "b"}) {
			t.Errorf("expected [a b], got %v", got)
		}
		if len(run.Report.Groups) != 1 || run.Report.Groups[0].Representative != "a" {
			t.Fatalf("unexpected groups: %+v", run.Report.Groups)
		}
		var removed *model.Decision
		for i := range run.Report.Decisions {
			if run.Report.Decisions[i].ID == "c" {
				removed = &run.Report.Decisions[i]
			}
		}
		if removed == nil || removed.Retained || removed.SupersededBy != "a" || removed.Similarity != 1 {
			t.Errorf("unexpected decision for c: %+v", removed)
		}
	})

	t.Run("groups transitively through a shared neighbour", func(t *testing.T) {
		t.Parallel()

		// J(a,b) = J(b,c) = 9/11, J(a,c) = 8/12.
		run := runWith(
			model.NewDocument("a", "", wordRange(0, 10)),
			model.NewDocument("b", "", wordRange(1, 11)),
			model.NewDocument("c", "", wordRange(2, 12)),
		)
		step := newNearDupStep(t, 200, 100,
			WithNgramSize(1),
			WithThreshold(0.75),
			WithExactVerify(true),
		)

		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := run.IDs(); !slices.Equal(got, []string{"a"}) {
			t.Fatalf("expected only a to remain, got %v", got)
		}
		groups := run.Report.Groups
		if len(groups) != 1 || !slices.Equal(groups[0].Members, []string{"a", "b", "c"}) {
			t.Fatalf("unexpected groups: %+v", groups)
		}
		for _, d := range run.Report.Decisions {
			if d.ID == "c" && d.SupersededBy != "a" {
				t.Errorf("expected c to be superseded by a, got %q", d.SupersededBy)
			}
		}
	})

	t.Run("never groups empty documents", func(t *testing.T) {
		t.Parallel()

		run := runWith(
			model.NewDocument("a", "", ""),
			model.NewDocument("b", "", "   "),
			model.NewDocument("c", "", "\n\t\n"),
		)
		step := newNearDupStep(t, 128, 16)

		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Documents) != 3 {
			t.Errorf("expected 3 documents, got %d", len(run.Documents))
		}
		if run.Report.NearDup.EmptyDocuments != 3 {
			t.Errorf("expected 3 empty documents, got %d", run.Report.NearDup.EmptyDocuments)
		}
		if run.Report.NearDup.Candidates != 0 {
			t.Errorf("expected no candidates, got %d", run.Report.NearDup.Candidates)
		}
	})

	t.Run("warns about unused signature rows", func(t *testing.T) {
		t.Parallel()

		run := runWith(model.NewDocument("a", "", wordRange(0, 20)))
		step := newNearDupStep(t, 100, 15)

		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Report.Warnings) != 1 {
			t.Errorf("expected 1 warning, got %v", run.Report.Warnings)
		}
	})

	t.Run("same result for any input order and worker count", func(t *testing.T) {
		t.Parallel()

		var docs []*model.Document
		for g := range 4 {
			base := g * 100
			for m := range 3 {
				docs = append(docs, model.NewDocument(
					fmt.Sprintf("g%d-m%d", g, m), "", wordRange(base+m, base+m+40)))
			}
		}
		for u := range 3 {
			docs = append(docs, model.NewDocument(
				fmt.Sprintf("u%d", u), "", wordRange(1000+u*100, 1040+u*100)))
		}

		permuted := slices.Clone(docs)
		rng := rand.New(rand.NewPCG(3, 5)) //nolint:gosec // Fixed shuffle
		rng.Shuffle(len(permuted), func(i, j int) { permuted[i], permuted[j] = permuted[j], permuted[i] })
		reversed := slices.Clone(docs)
		slices.Reverse(reversed)

		type outcome struct {
			ids    []string
			groups []model.DuplicateGroup
		}
		runOnce := func(input []*model.Document, workers int) outcome {
			run := runWith(slices.Clone(input)...)
			step := newNearDupStep(t, 128, 32,
				WithNgramSize(2),
				WithThreshold(0.7),
				WithNearDuplicateBatch(NewBatchProcessor(WithConcurrency(workers), WithBatchLogger(discardLogger()))),
			)
			if err := step.Do(context.Background(), run); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			return outcome{ids: run.IDs(), groups: run.Report.Groups}
		}

		want := runOnce(docs, 1)
		wantIDs := []string{"g0-m0", "g1-m0", "g2-m0", "g3-m0", "u0", "u1", "u2"}
		if !slices.Equal(want.ids, wantIDs) {
			t.Fatalf("expected %v, got %v", wantIDs, want.ids)
		}

		inputs := map[string][]*model.Document{
			"sorted":   docs,
			"shuffled": permuted,
			"reversed": reversed,
		}
		for name, input := range inputs {
			for _, workers := range []int{1, 8} {
				got := runOnce(input, workers)
				if !slices.Equal(got.ids, want.ids) {
					t.Errorf("%s/workers=%d: retained %v, want %v", name, workers, got.ids, want.ids)
				}
				if len(got.groups) != len(want.groups) {
					t.Errorf("%s/workers=%d: %d groups, want %d", name, workers, len(got.groups), len(want.groups))
					continue
				}
				for i := range got.groups {
					if got.groups[i].Representative != want.groups[i].Representative ||
						!slices.Equal(got.groups[i].Members, want.groups[i].Members) {
						t.Errorf("%s/workers=%d: group %d = %+v, want %+v", name, workers, i, got.groups[i], want.groups[i])
					}
				}
			}
		}
	})
}

func TestQualityStep(t *testing.T) {
	t.Parallel()

	t.Run("drops rejected documents with reason", func(t *testing.T) {
		t.Parallel()

		classifier := classifierFunc(func(_ context.Context, text string) (quality.Result, error) {
			if strings.Contains(text, "spam") {
				return quality.Result{Label: quality.LabelDrop, Reason: "spam"}, nil
			}
			return quality.Result{Label: quality.LabelKeep}, nil
		})
		run := runWith(
			model.NewDocument("a", "", "good text"),
			model.NewDocument("b", "", "spam spam"),
		)

		if err := NewQualityStep(classifier, WithQualityLogger(discardLogger())).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := run.IDs(); !slices.Equal(got, []string{"a"}) {
			t.Errorf("expected [a], got %v", got)
		}
		q := run.Report.Quality
		if q.Dropped != 1 || q.Kept != 1 || q.Reasons["spam"] != 1 {
			t.Errorf("unexpected stats: %+v", q)
		}
		if len(run.Report.Decisions) != 1 || run.Report.Decisions[0].Reason != "spam" {
			t.Errorf("unexpected decisions: %+v", run.Report.Decisions)
		}
	})

	t.Run("records classification errors as failures", func(t *testing.T) {
		t.Parallel()

		classifier := classifierFunc(func(_ context.Context, text string) (quality.Result, error) {
			if text == "bad" {
				return quality.Result{}, errors.New("cannot classify")
			}
			return quality.Result{Label: quality.LabelKeep}, nil
		})
		run := runWith(
			model.NewDocument("a", "", "fine"),
			model.NewDocument("b", "", "bad"),
		)

		if err := NewQualityStep(classifier, WithQualityLogger(discardLogger())).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Documents) != 1 || len(run.Report.Failures) != 1 {
			t.Errorf("expected 1 document and 1 failure, got %d and %d", len(run.Documents), len(run.Report.Failures))
		}
	})

	t.Run("aborts when the model is unavailable", func(t *testing.T) {
		t.Parallel()

		classifier := classifierFunc(func(context.Context, string) (quality.Result, error) {
			return quality.Result{}, quality.ErrModelUnavailable
		})
		run := runWith(model.NewDocument("a", "", "text"))

		err := NewQualityStep(classifier, WithQualityLogger(discardLogger())).Do(context.Background(), run)
		if !errors.Is(err, quality.ErrModelUnavailable) {
			t.Errorf("expected ErrModelUnavailable, got %v", err)
		}
	})
}

func TestWriteStep(t *testing.T) {
	t.Parallel()

	sink := &failingSink{fail: "b", inner: corpus.NewMemorySink()}
	run := runWith(
		model.NewDocument("a", "", "one"),
		model.NewDocument("b", "", "two"),
		model.NewDocument("c", "", "three"),
	)

	if err := NewWriteStep(sink, WithWriteLogger(discardLogger())).Do(context.Background(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Report.DocumentsWritten != 2 {
		t.Errorf("expected 2 documents written, got %d", run.Report.DocumentsWritten)
	}
	if len(run.Report.Failures) != 1 || run.Report.Failures[0].ID != "b" {
		t.Errorf("unexpected failures: %+v", run.Report.Failures)
	}
	if _, ok := sink.inner.Get("c"); !ok {
		t.Error("expected c to be written")
	}
}

func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	t.Run("builds steps in stage order", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Stages = []string{config.StageQuality, config.StageMinHash}

		p, err := DefaultPipeline(cfg, corpus.NewSliceSource(nil), corpus.NewMemorySink(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{StepLoad, StepQuality, StepMinHash, StepWrite}
		if got := p.StepNames(); !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("rejects unknown stage", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Stages = []string{"fasttext"}

		_, err := DefaultPipeline(cfg, corpus.NewSliceSource(nil), corpus.NewMemorySink(), nil)
		if !errors.Is(err, config.ErrUnknownStage) {
			t.Errorf("expected ErrUnknownStage, got %v", err)
		}
	})

	t.Run("runs lines then minhash end to end", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Inputs = []string{"in"}
		cfg.OutputDir = "out"
		cfg.NumHashes = 200
		cfg.NumBands = 100
		cfg.NgramSize = 1
		cfg.JaccardThreshold = 0.7
		cfg.Workers = 4

		src := corpus.NewSliceSource([]*model.Document{
			model.NewDocument("a", "", "shared header\n"+wordRange(0, 10)+"\n"),
			model.NewDocument("b", "", "shared header\n"+wordRange(0, 9)+" w99\n"),
			model.NewDocument("c", "", wordRange(200, 220)+"\n"),
		})
		sink := corpus.NewMemorySink()

		p, err := DefaultPipeline(cfg, src, sink,
			[]Option{WithLogger(discardLogger())},
			WithPipelineLogger(discardLogger()),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		run := NewRun(cfg)
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var ids []string
		for _, d := range sink.Documents() {
			ids = append(ids, d.ID)
		}
		if !slices.Equal(ids, []string{"a", "c"}) {
			t.Fatalf("expected [a c] written, got %v", ids)
		}
		a, _ := sink.Get("a")
		if a.Text != wordRange(0, 10)+"\n" {
			t.Errorf("unexpected text of a: %q", a.Text)
		}

		report := run.Report
		wantSteps := []string{StepLoad, StepLines, StepMinHash, StepWrite}
		if !slices.Equal(report.PerformedSteps, wantSteps) {
			t.Errorf("expected steps %v, got %v", wantSteps, report.PerformedSteps)
		}
		if report.Params.RowsPerBand != 2 {
			t.Errorf("expected 2 rows per band, got %d", report.Params.RowsPerBand)
		}
		if !slices.Equal(report.RemovedIDs(), []string{"b"}) {
			t.Errorf("expected b removed, got %v", report.RemovedIDs())
		}
	})

	t.Run("quality stage uses injected classifier", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Stages = []string{config.StageQuality}
		calls := 0
		classifier := classifierFunc(func(context.Context, string) (quality.Result, error) {
			calls++
			return quality.Result{Label: quality.LabelKeep}, nil
		})
		cfg.Workers = 1

		src := corpus.NewSliceSource([]*model.Document{model.NewDocument("a", "", "x")})
		p, err := DefaultPipeline(cfg, src, corpus.NewMemorySink(),
			[]Option{WithLogger(discardLogger())},
			WithPipelineClassifier(classifier),
			WithPipelineLogger(discardLogger()),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := p.Execute(context.Background(), NewRun(cfg)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 classifier call, got %d", calls)
		}
	})
}
