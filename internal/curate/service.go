// Package curate answers the editorial questions a research-digest
// curator asks of the enriched graph: what is trending, who is unusually
// productive, who is accelerating, and which papers cross institutions.
package curate

import (
	"context"
	"sort"
	"time"

	"github.com/matsen/arxgraph/internal/graph"
	"github.com/matsen/arxgraph/internal/logging"
)

// Editorial thresholds.
const (
	// TrendingMinRatio is the recent/earlier growth a category needs to
	// count as trending.
	TrendingMinRatio = 1.3

	// TrendingMinRecent filters out categories too small for the ratio to
	// mean anything.
	TrendingMinRecent = 10

	// ProductiveMinPapers is how many papers in one day flags an author.
	ProductiveMinPapers = 2

	// Rising author thresholds: enough recent output, some history to
	// compare against, and a sharp ratio between them.
	RisingMinRecent  = 3
	RisingMinEarlier = 1
	RisingMinRatio   = 2.0

	// CollabMinAffiliations is the distinct-affiliation floor for a
	// cross-institution paper.
	CollabMinAffiliations = 3
)

const dateLayout = "2006-01-02"

// AnalyticsGraph is the read-only slice of the graph store curation uses.
type AnalyticsGraph interface {
	CategoryGrowthCounts(ctx context.Context, earlierStart, recentStart, end string) ([]graph.CategoryGrowth, error)
	AuthorsOnDate(ctx context.Context, date string, minPapers int) ([]graph.AuthorOutput, error)
	AuthorMomentumCounts(ctx context.Context, earlierStart, recentStart, end string) ([]graph.AuthorMomentum, error)
	CollaborationsOnDate(ctx context.Context, date string, minAffiliations int) ([]graph.Collaboration, error)
}

// Service runs curation queries over the graph.
type Service struct {
	store AnalyticsGraph
	log   *logging.Logger
}

// NewService creates a curation service.
func NewService(store AnalyticsGraph, log *logging.Logger) *Service {
	return &Service{store: store, log: log.With("component", "curate")}
}

// TrendingCategories compares the recent half of the window against the
// earlier half and returns categories growing at least TrendingMinRatio
// with at least TrendingMinRecent recent papers, fastest growth first.
func (s *Service) TrendingCategories(ctx context.Context, start, end time.Time) ([]graph.CategoryGrowth, error) {
	earlierStart, recentStart := halveWindow(start, end)

	counts, err := s.store.CategoryGrowthCounts(ctx, earlierStart, recentStart, end.Format(dateLayout))
	if err != nil {
		return nil, err
	}

	out := make([]graph.CategoryGrowth, 0, len(counts))
	for _, g := range counts {
		if g.RecentCount < TrendingMinRecent {
			continue
		}
		if g.EarlierCount == 0 || g.GrowthRatio >= TrendingMinRatio {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		// A category with no earlier papers is unbounded growth; rank it
		// by recent volume among its peers.
		gi, gj := out[i], out[j]
		if (gi.EarlierCount == 0) != (gj.EarlierCount == 0) {
			return gi.EarlierCount == 0
		}
		if gi.EarlierCount == 0 {
			return gi.RecentCount > gj.RecentCount
		}
		if gi.GrowthRatio != gj.GrowthRatio {
			return gi.GrowthRatio > gj.GrowthRatio
		}
		return gi.Name < gj.Name
	})
	return out, nil
}

// ProductiveAuthors returns canonical authors with ProductiveMinPapers or
// more papers published on the given date.
func (s *Service) ProductiveAuthors(ctx context.Context, date time.Time) ([]graph.AuthorOutput, error) {
	return s.store.AuthorsOnDate(ctx, date.Format(dateLayout), ProductiveMinPapers)
}

// RisingAuthors returns canonical authors whose recent-half output is
// accelerating: at least RisingMinRecent recent papers, at least
// RisingMinEarlier earlier ones, and a growth ratio of RisingMinRatio or
// more. Sorted by ratio, then recent volume.
func (s *Service) RisingAuthors(ctx context.Context, start, end time.Time) ([]graph.AuthorMomentum, error) {
	earlierStart, recentStart := halveWindow(start, end)

	counts, err := s.store.AuthorMomentumCounts(ctx, earlierStart, recentStart, end.Format(dateLayout))
	if err != nil {
		return nil, err
	}

	out := make([]graph.AuthorMomentum, 0, len(counts))
	for _, m := range counts {
		if m.RecentCount < RisingMinRecent || m.EarlierCount < RisingMinEarlier {
			continue
		}
		if m.GrowthRatio >= RisingMinRatio {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		mi, mj := out[i], out[j]
		if mi.GrowthRatio != mj.GrowthRatio {
			return mi.GrowthRatio > mj.GrowthRatio
		}
		if mi.RecentCount != mj.RecentCount {
			return mi.RecentCount > mj.RecentCount
		}
		return mi.Name < mj.Name
	})
	return out, nil
}

// Collaborations returns papers published on the date whose authors span
// CollabMinAffiliations or more distinct affiliations.
func (s *Service) Collaborations(ctx context.Context, date time.Time) ([]graph.Collaboration, error) {
	return s.store.CollaborationsOnDate(ctx, date.Format(dateLayout), CollabMinAffiliations)
}

// halveWindow splits [start, end] into an earlier and a recent half,
// giving the recent half floor(days/2) days so the earlier half is never
// the smaller one.
func halveWindow(start, end time.Time) (earlierStart, recentStart string) {
	days := int(end.Sub(start).Hours()/24) + 1
	recentDays := days / 2
	if recentDays < 1 {
		recentDays = 1
	}
	rs := end.AddDate(0, 0, -(recentDays - 1))
	return start.Format(dateLayout), rs.Format(dateLayout)
}
