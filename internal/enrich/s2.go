package enrich

import (
	"context"
	"time"

	"github.com/matsen/arxgraph/internal/checkpoint"
	"github.com/matsen/arxgraph/internal/graph"
	"github.com/matsen/arxgraph/internal/logging"
	"github.com/matsen/arxgraph/internal/s2"
)

// S2JobID keys the loop's checkpoint file.
const S2JobID = "enrich-s2"

// S2Graph is the graph surface the Semantic Scholar loop uses.
type S2Graph interface {
	PapersNeedingS2(ctx context.Context, cursorDate, cursorID string, reverse bool, limit int) ([]graph.PaperAuthors, error)
	UpdateAuthorS2(ctx context.Context, authorID, s2AuthorID string) error
}

// S2API is the slice of the Semantic Scholar client the loop calls.
type S2API interface {
	PaperByArxivID(ctx context.Context, arxivID string) (*s2.Paper, error)
}

// S2Options configure one id-attachment run.
type S2Options struct {
	// Reverse walks papers newest-first instead of oldest-first.
	Reverse bool

	// Limit caps total papers processed; 0 means walk until done.
	Limit int

	// PageSize is how many papers one graph query fetches.
	PageSize int

	// SaveInterval is how many papers to process between checkpoint
	// saves.
	SaveInterval int
}

// S2Stats summarise one run.
type S2Stats struct {
	PapersProcessed  int `json:"papers_processed"`
	PapersNotFound   int `json:"papers_not_found"`
	AuthorsAttached  int `json:"authors_attached"`
	PositionMismatch int `json:"position_mismatches"`
	WriteFailures    int `json:"write_failures"`
}

// S2Enricher attaches Semantic Scholar author ids to graph authors. S2
// author lists are taken as position-authoritative: slot i on the paper
// gets S2 author i, and nothing is written past the shorter list.
type S2Enricher struct {
	store S2Graph
	api   S2API
	ckpts *checkpoint.Store
	log   *logging.Logger
}

// NewS2Enricher creates the loop.
func NewS2Enricher(store S2Graph, api S2API, ckpts *checkpoint.Store, log *logging.Logger) *S2Enricher {
	return &S2Enricher{store: store, api: api, ckpts: ckpts, log: log.With("job", S2JobID)}
}

// Run walks papers missing S2 ids, one API lookup per paper. The cursor
// pair, last published date plus arxiv id, is checkpointed so
// interrupted runs resume where they stopped; a
// direction change discards the old cursor. The checkpoint is removed
// when the walk reaches the end.
func (e *S2Enricher) Run(ctx context.Context, opts S2Options) (S2Stats, error) {
	var stats S2Stats

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	saveEvery := opts.SaveInterval
	if saveEvery <= 0 {
		saveEvery = 100
	}
	direction := "asc"
	if opts.Reverse {
		direction = "desc"
	}

	cursor, cursorID := "", ""
	if rec, ok, err := e.ckpts.Load(S2JobID); err != nil {
		return stats, err
	} else if ok {
		if rec.Direction == direction {
			cursor = rec.Cursor.CurrentDate
			cursorID = rec.Cursor.LastID
			e.log.Info("resuming from checkpoint",
				"cursor", cursor, "cursor_id", cursorID, "direction", direction)
		} else {
			e.log.Info("direction changed, starting fresh",
				"was", rec.Direction, "now", direction)
		}
	}

	sinceSave := 0
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if opts.Limit > 0 && stats.PapersProcessed >= opts.Limit {
			break
		}

		size := pageSize
		if opts.Limit > 0 && opts.Limit-stats.PapersProcessed < size {
			size = opts.Limit - stats.PapersProcessed
		}
		papers, err := e.store.PapersNeedingS2(ctx, cursor, cursorID, opts.Reverse, size)
		if err != nil {
			return stats, err
		}
		if len(papers) == 0 {
			if err := e.ckpts.Clear(S2JobID); err != nil {
				e.log.Warn("checkpoint clear failed", "error", err)
			}
			break
		}

		for _, paper := range papers {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			e.attachOne(ctx, paper, &stats)
			cursor, cursorID = paper.PublishedDate, paper.ArxivID
			sinceSave++

			if sinceSave >= saveEvery {
				if err := e.save(cursor, cursorID, direction, stats); err != nil {
					e.log.Warn("checkpoint save failed", "error", err)
				}
				sinceSave = 0
			}
		}
	}

	e.log.Info("id attachment run complete",
		"papers", stats.PapersProcessed,
		"attached", stats.AuthorsAttached,
		"position_mismatches", stats.PositionMismatch)
	return stats, nil
}

func (e *S2Enricher) attachOne(ctx context.Context, paper graph.PaperAuthors, stats *S2Stats) {
	stats.PapersProcessed++

	s2Paper, err := e.api.PaperByArxivID(ctx, paper.ArxivID)
	if err != nil {
		stats.WriteFailures++
		e.log.Warn("paper lookup failed", "arxiv_id", paper.ArxivID, "error", err)
		return
	}
	if s2Paper == nil {
		stats.PapersNotFound++
		return
	}

	if len(s2Paper.Authors) != len(paper.Authors) {
		stats.PositionMismatch++
		e.log.Debug("author count mismatch",
			"arxiv_id", paper.ArxivID,
			"graph_authors", len(paper.Authors),
			"s2_authors", len(s2Paper.Authors))
	}

	n := len(paper.Authors)
	if len(s2Paper.Authors) < n {
		n = len(s2Paper.Authors)
	}
	for i := 0; i < n; i++ {
		slot := paper.Authors[i]
		s2Author := s2Paper.Authors[i]
		if slot.S2AuthorID != "" || s2Author.AuthorID == "" {
			continue
		}
		if err := e.store.UpdateAuthorS2(ctx, slot.AuthorID, s2Author.AuthorID); err != nil {
			stats.WriteFailures++
			e.log.Warn("author update failed", "author_id", slot.AuthorID, "error", err)
			continue
		}
		stats.AuthorsAttached++
	}
}

func (e *S2Enricher) save(cursor, cursorID, direction string, stats S2Stats) error {
	return e.ckpts.Save(&checkpoint.Record{
		SchemaVersion: checkpoint.SchemaVersion,
		JobID:         S2JobID,
		Direction:     direction,
		Cursor:        checkpoint.Cursor{CurrentDate: cursor, LastID: cursorID},
		Stats: map[string]int{
			"papers_processed": stats.PapersProcessed,
			"authors_attached": stats.AuthorsAttached,
		},
		LastSavedAt: time.Now().UTC(),
	})
}
