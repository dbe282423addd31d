package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/matsen/arxgraph/internal/arxiv"
	"github.com/matsen/arxgraph/internal/checkpoint"
	"github.com/matsen/arxgraph/internal/graph"
	"github.com/matsen/arxgraph/internal/logging"
)

// fakeSource serves canned papers per day and records which days were asked.
type fakeSource struct {
	byDay   map[string][]arxiv.Paper
	queried []string
}

func (f *fakeSource) Day(ctx context.Context, day time.Time) ([]arxiv.Paper, error) {
	key := day.Format("2006-01-02")
	f.queried = append(f.queried, key)
	return f.byDay[key], nil
}

// fakeWriter records written batches and plays back a configured earliest date.
type fakeWriter struct {
	earliest string
	written  []graph.PaperInput
}

func (f *fakeWriter) WritePapers(ctx context.Context, papers []graph.PaperInput) (graph.WriteStats, error) {
	f.written = append(f.written, papers...)
	return graph.WriteStats{PapersCreated: len(papers)}, nil
}

func (f *fakeWriter) EarliestPaperDate(ctx context.Context) (string, error) {
	return f.earliest, nil
}

func paperOn(id, date string) arxiv.Paper {
	d, _ := time.Parse("2006-01-02", date)
	return arxiv.Paper{
		ArxivID:         id,
		Title:           "Paper " + id,
		Categories:      []string{"cs.LG"},
		PrimaryCategory: "cs.LG",
		PublishedDate:   d,
		Authors:         []arxiv.Authorship{{Name: "Alice Zhang", Position: 1}},
	}
}

func date(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func newBackfiller(t *testing.T, source *fakeSource, writer *fakeWriter, opts Options) (*Backfiller, *checkpoint.Store) {
	t.Helper()
	ckpts, err := checkpoint.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(source, writer, ckpts, logging.Nop(), opts), ckpts
}

func TestRunBudgetExhaustedMidWindow(t *testing.T) {
	source := &fakeSource{byDay: map[string][]arxiv.Paper{
		"2025-06-02": {paperOn("2506.00001", "2025-06-02"), paperOn("2506.00002", "2025-06-02")},
		"2025-06-01": {paperOn("2506.00003", "2025-06-01")},
	}}
	writer := &fakeWriter{}
	bf, ckpts := newBackfiller(t, source, writer, Options{
		AnchorDate:   date("2025-06-02"),
		LookbackDays: 5,
		Limit:        2,
	})

	res, err := bf.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.PapersFetched != 2 || res.Completed {
		t.Errorf("result = %+v, want 2 fetched and not completed", res)
	}
	if len(writer.written) != 2 {
		t.Errorf("wrote %d papers, want 2", len(writer.written))
	}

	rec, ok, err := ckpts.Load(JobID)
	if err != nil || !ok {
		t.Fatalf("checkpoint missing: %v", err)
	}
	if rec.Cursor.LastEndDate != "2025-06-01" {
		t.Errorf("last_end_date = %s, want 2025-06-01", rec.Cursor.LastEndDate)
	}
	if rec.Cursor.Completed {
		t.Error("completed = true, want false with budget exhausted")
	}
}

func TestRunWalksToTargetAndCompletes(t *testing.T) {
	source := &fakeSource{byDay: map[string][]arxiv.Paper{
		"2025-06-02": {paperOn("2506.00001", "2025-06-02")},
		"2025-06-01": {paperOn("2506.00002", "2025-06-01")},
	}}
	writer := &fakeWriter{}
	bf, ckpts := newBackfiller(t, source, writer, Options{
		AnchorDate:   date("2025-06-02"),
		LookbackDays: 1,
		Limit:        1000,
	})

	res, err := bf.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Completed {
		t.Error("run should have completed the window")
	}
	if res.DaysWalked != 2 {
		t.Errorf("walked %d days, want 2", res.DaysWalked)
	}

	rec, ok, _ := ckpts.Load(JobID)
	if !ok || !rec.Cursor.Completed {
		t.Errorf("checkpoint = %+v, want completed=true", rec)
	}

	// A second invocation is a no-op.
	source.queried = nil
	res2, err := bf.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !res2.Completed || len(source.queried) != 0 {
		t.Errorf("second run queried %v, want no queries", source.queried)
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	source := &fakeSource{byDay: map[string][]arxiv.Paper{
		"2025-06-02": {paperOn("2506.00001", "2025-06-02")},
		"2025-06-01": {paperOn("2506.00002", "2025-06-01")},
		"2025-05-31": {paperOn("2505.00003", "2025-05-31")},
	}}
	writer := &fakeWriter{}
	bf, _ := newBackfiller(t, source, writer, Options{
		AnchorDate:   date("2025-06-02"),
		LookbackDays: 2,
		Limit:        1,
	})

	ctx := context.Background()
	// Three budget-1 runs should together cover the three-day window.
	for i := 0; i < 3; i++ {
		if _, err := bf.Run(ctx); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	want := []string{"2025-06-02", "2025-06-01", "2025-05-31"}
	if len(source.queried) != 3 {
		t.Fatalf("queried days %v, want %v", source.queried, want)
	}
	for i, day := range want {
		if source.queried[i] != day {
			t.Errorf("query %d = %s, want %s", i, source.queried[i], day)
		}
	}
	if len(writer.written) != 3 {
		t.Errorf("wrote %d papers, want 3", len(writer.written))
	}
}

func TestRunResumesInsidePartialDay(t *testing.T) {
	source := &fakeSource{byDay: map[string][]arxiv.Paper{
		"2025-06-02": {paperOn("2506.00001", "2025-06-02"), paperOn("2506.00002", "2025-06-02")},
		"2025-06-01": {paperOn("2506.00003", "2025-06-01")},
	}}
	writer := &fakeWriter{}
	bf, ckpts := newBackfiller(t, source, writer, Options{
		AnchorDate:   date("2025-06-02"),
		LookbackDays: 1,
		Limit:        1,
	})

	ctx := context.Background()
	if _, err := bf.Run(ctx); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// Budget expired after one paper of a two-paper day: the cursor must
	// stay on that day instead of skipping its second paper.
	rec, ok, _ := ckpts.Load(JobID)
	if !ok {
		t.Fatal("checkpoint missing after first run")
	}
	if rec.Cursor.LastEndDate != "2025-06-02" || rec.Cursor.Offset != 1 {
		t.Errorf("cursor = last_end %s offset %d, want 2025-06-02 / 1",
			rec.Cursor.LastEndDate, rec.Cursor.Offset)
	}

	// Budget-1 runs must eventually ingest every paper in the window.
	for i := 0; i < 3; i++ {
		if _, err := bf.Run(ctx); err != nil {
			t.Fatalf("run %d: %v", i+2, err)
		}
	}

	want := map[string]bool{"2506.00001": true, "2506.00002": true, "2506.00003": true}
	for _, p := range writer.written {
		delete(want, p.ArxivID)
	}
	if len(want) != 0 {
		t.Errorf("papers never written: %v", want)
	}

	rec, _, _ = ckpts.Load(JobID)
	if !rec.Cursor.Completed || rec.Cursor.Offset != 0 {
		t.Errorf("final cursor = %+v, want completed with offset 0", rec.Cursor)
	}
}

func TestRunReconcilesWithGraph(t *testing.T) {
	source := &fakeSource{byDay: map[string][]arxiv.Paper{
		"2025-05-30": {paperOn("2505.00009", "2025-05-30")},
	}}
	// Graph already holds data back to 2025-05-31.
	writer := &fakeWriter{earliest: "2025-05-31"}
	bf, ckpts := newBackfiller(t, source, writer, Options{
		AnchorDate:   date("2025-06-02"),
		LookbackDays: 3,
		Limit:        100,
	})

	if _, err := bf.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Only the day before the graph's earliest should have been queried.
	if len(source.queried) != 1 || source.queried[0] != "2025-05-30" {
		t.Errorf("queried = %v, want [2025-05-30]", source.queried)
	}
	rec, _, _ := ckpts.Load(JobID)
	if !rec.Cursor.Completed {
		t.Error("window should be complete after reconciled walk")
	}
}

func TestRunDryRunSkipsWrites(t *testing.T) {
	source := &fakeSource{byDay: map[string][]arxiv.Paper{
		"2025-06-02": {paperOn("2506.00001", "2025-06-02")},
	}}
	writer := &fakeWriter{}
	bf, _ := newBackfiller(t, source, writer, Options{
		AnchorDate:   date("2025-06-02"),
		LookbackDays: 0,
		Limit:        10,
		DryRun:       true,
	})

	res, err := bf.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.PapersFetched != 1 {
		t.Errorf("fetched %d, want 1", res.PapersFetched)
	}
	if len(writer.written) != 0 {
		t.Errorf("dry run wrote %d papers, want 0", len(writer.written))
	}
}

func TestRunDeduplicatesWithinRun(t *testing.T) {
	dup := paperOn("2506.00001", "2025-06-02")
	source := &fakeSource{byDay: map[string][]arxiv.Paper{
		"2025-06-02": {dup, dup},
	}}
	writer := &fakeWriter{}
	bf, _ := newBackfiller(t, source, writer, Options{
		AnchorDate:   date("2025-06-02"),
		LookbackDays: 0,
		Limit:        10,
	})

	if _, err := bf.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(writer.written) != 1 {
		t.Errorf("wrote %d papers, want 1 after dedupe", len(writer.written))
	}
}

func TestMaterialisePaper(t *testing.T) {
	p := arxiv.Paper{
		ArxivID:         "2506.01234",
		Version:         "2",
		Title:           "T",
		Abstract:        "A",
		Categories:      []string{"cs.LG", "stat.ML"},
		PrimaryCategory: "cs.LG",
		PublishedDate:   date("2025-06-02"),
		PDFURL:          "http://arxiv.org/pdf/2506.01234v2",
		Authors: []arxiv.Authorship{
			{Name: "Alice Zhang", Affiliation: "MIT", Position: 1},
			{Name: "Bob Liu", Position: 2},
		},
	}

	in := MaterialisePaper(p)
	if in.PublishedDate != "2025-06-02" {
		t.Errorf("PublishedDate = %s", in.PublishedDate)
	}
	if len(in.Authors) != 2 || in.Authors[1].Position != 2 {
		t.Errorf("Authors = %+v", in.Authors)
	}
	if in.Authors[0].Affiliation != "MIT" {
		t.Errorf("affiliation lost: %+v", in.Authors[0])
	}
}
