// Package ingest implements the backfill ingester: a date-walking crawler
// that pulls papers backward through time under a lookback budget,
// resumable across runs and idempotent against the graph.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/matsen/arxgraph/internal/arxiv"
	"github.com/matsen/arxgraph/internal/checkpoint"
	"github.com/matsen/arxgraph/internal/graph"
	"github.com/matsen/arxgraph/internal/logging"
)

// JobID is the backfill checkpoint key.
const JobID = "backfill"

const dateLayout = "2006-01-02"

// PaperSource yields all papers submitted on one day.
type PaperSource interface {
	Day(ctx context.Context, day time.Time) ([]arxiv.Paper, error)
}

// GraphWriter persists paper batches and answers the reconciliation read.
type GraphWriter interface {
	WritePapers(ctx context.Context, papers []graph.PaperInput) (graph.WriteStats, error)
	EarliestPaperDate(ctx context.Context) (string, error)
}

// Options configure one backfill invocation.
type Options struct {
	// AnchorDate is D0, the newest date of the lookback window.
	AnchorDate time.Time

	// LookbackDays is the total window the job may traverse across runs.
	LookbackDays int

	// Limit caps how many papers this invocation processes.
	Limit int

	// DryRun fetches and serialises but skips graph writes.
	DryRun bool

	// Reset deletes the checkpoint before running.
	Reset bool
}

// Backfiller walks days backward from the anchor, ingesting each day's
// papers in one batch and checkpointing after every committed day.
type Backfiller struct {
	source PaperSource
	writer GraphWriter
	ckpts  *checkpoint.Store
	log    *logging.Logger
	opts   Options
}

// New creates a Backfiller.
func New(source PaperSource, writer GraphWriter, ckpts *checkpoint.Store, log *logging.Logger, opts Options) *Backfiller {
	return &Backfiller{
		source: source,
		writer: writer,
		ckpts:  ckpts,
		log:    log.With("job", JobID),
		opts:   opts,
	}
}

// Result summarises one backfill run.
type Result struct {
	PapersFetched  int
	PapersCreated  int
	PapersExisting int
	Skipped        int
	DaysWalked     int
	Completed      bool
}

// Run executes one budgeted invocation.
func (b *Backfiller) Run(ctx context.Context) (Result, error) {
	var res Result

	if b.opts.Reset {
		if err := b.ckpts.Clear(JobID); err != nil {
			return res, err
		}
	}

	rec, found, err := b.ckpts.Load(JobID)
	if err != nil {
		return res, err
	}
	if found && rec.Cursor.Completed {
		b.log.Info("backfill already complete", "anchor", rec.Cursor.AnchorDate)
		res.Completed = true
		return res, nil
	}

	anchor := b.opts.AnchorDate
	lastEnd := anchor
	off := 0
	if found {
		off = rec.Cursor.Offset
		if anchor, err = time.Parse(dateLayout, rec.Cursor.AnchorDate); err != nil {
			return res, fmt.Errorf("corrupt checkpoint anchor: %w", err)
		}
		if lastEnd, err = time.Parse(dateLayout, rec.Cursor.LastEndDate); err != nil {
			return res, fmt.Errorf("corrupt checkpoint cursor: %w", err)
		}
	} else {
		rec = &checkpoint.Record{
			JobID:     JobID,
			Direction: "reverse",
			Stats:     map[string]int{},
			Cursor: checkpoint.Cursor{
				AnchorDate:  anchor.Format(dateLayout),
				LastEndDate: lastEnd.Format(dateLayout),
			},
		}
	}
	target := anchor.AddDate(0, 0, -b.opts.LookbackDays)

	// Reconcile with the graph: if it already holds older data than the
	// cursor suggests, skip ahead of it. A mid-day cursor is authoritative;
	// the earliest day in the graph is then only partially ingested and
	// must be walked again.
	if off == 0 {
		earliest, err := b.writer.EarliestPaperDate(ctx)
		if err != nil {
			return res, fmt.Errorf("reconciling with graph: %w", err)
		}
		if earliest != "" {
			earliestDate, err := time.Parse(dateLayout, earliest)
			if err == nil && earliestDate.AddDate(0, 0, -1).Before(lastEnd) {
				lastEnd = earliestDate.AddDate(0, 0, -1)
				b.log.Info("cursor advanced past data already in graph",
					"earliest_in_graph", earliest, "last_end", lastEnd.Format(dateLayout))
			}
		}
	}

	if lastEnd.Before(target) {
		return res, b.finish(rec, &res)
	}

	budget := b.opts.Limit
	seen := make(map[string]bool)

	for day := lastEnd; !day.Before(target) && budget > 0; day = day.AddDate(0, 0, -1) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		papers, err := b.source.Day(ctx, day)
		if err != nil {
			return res, fmt.Errorf("fetching %s: %w", day.Format(dateLayout), err)
		}

		candidates := make([]graph.PaperInput, 0, len(papers))
		for _, p := range papers {
			if seen[p.ArxivID] {
				continue
			}
			seen[p.ArxivID] = true
			candidates = append(candidates, MaterialisePaper(p))
		}
		if off > len(candidates) {
			off = len(candidates)
		}
		batch := candidates[off:]
		truncated := len(batch) > budget
		if truncated {
			batch = batch[:budget]
		}
		budget -= len(batch)
		res.PapersFetched += len(batch)
		res.DaysWalked++

		if !b.opts.DryRun && len(batch) > 0 {
			stats, err := b.writer.WritePapers(ctx, batch)
			if err != nil {
				return res, fmt.Errorf("writing %s: %w", day.Format(dateLayout), err)
			}
			res.PapersCreated += stats.PapersCreated
			res.PapersExisting += stats.PapersExisting
			res.Skipped += stats.Skipped
		}

		rec.Cursor.EarliestIngested = day.Format(dateLayout)
		rec.Stats["papers_fetched"] += len(batch)
		rec.Stats["days_walked"]++

		if truncated {
			// The day is only partially committed. Hold the cursor on it
			// and record how far in we got so the next run picks up the
			// rest of the day before moving on.
			rec.Cursor.LastEndDate = day.Format(dateLayout)
			rec.Cursor.Offset = off + len(batch)
			b.log.Info("budget expired mid-day",
				"date", day.Format(dateLayout),
				"committed", rec.Cursor.Offset)
			return res, b.ckpts.Save(rec)
		}

		rec.Cursor.LastEndDate = day.AddDate(0, 0, -1).Format(dateLayout)
		rec.Cursor.Offset = 0
		off = 0

		if day.AddDate(0, 0, -1).Before(target) {
			return res, b.finish(rec, &res)
		}
		if err := b.ckpts.Save(rec); err != nil {
			return res, err
		}
		b.log.Info("day ingested",
			"date", day.Format(dateLayout),
			"papers", len(batch),
			"budget_left", budget)
	}

	return res, b.ckpts.Save(rec)
}

// finish latches the completed flag. The checkpoint is kept so later
// invocations stay no-ops; only --reset re-opens the window.
func (b *Backfiller) finish(rec *checkpoint.Record, res *Result) error {
	rec.Cursor.Completed = true
	res.Completed = true
	b.log.Info("backfill window complete",
		"anchor", rec.Cursor.AnchorDate,
		"earliest", rec.Cursor.EarliestIngested)
	return b.ckpts.Save(rec)
}
