package identity

import (
	"context"
	"time"

	"github.com/matsen/arxgraph/internal/graph"
	"github.com/matsen/arxgraph/internal/logging"
)

// AuthorGraph is the slice of the graph store the matcher needs.
type AuthorGraph interface {
	UnmatchedAuthors(ctx context.Context, since, until time.Time, limit int) ([]graph.AuthorRecord, error)
	PeersByName(ctx context.Context, normalizedName, excludeAuthorID string) ([]graph.AuthorRecord, error)
	AssignCanonical(ctx context.Context, authorID, canonicalID string, confidence int, needsReview bool) error
	MergePossiblySameAs(ctx context.Context, fromID, toID string, confidence int, reason string) error
}

// Options configure one matcher pass.
type Options struct {
	// Since/Until restrict candidates by creation time. Zero values
	// disable the bound.
	Since time.Time
	Until time.Time

	// Limit caps how many candidate nodes one pass processes.
	Limit int
}

// Stats summarise one matcher pass.
type Stats struct {
	Processed     int `json:"processed"`
	Adopted       int `json:"adopted"`
	Tentative     int `json:"tentative"`
	SelfCanonical int `json:"self_canonical"`
	Failed        int `json:"failed"`
}

// Matcher assigns canonical identities to unmatched author nodes.
type Matcher struct {
	store AuthorGraph
	log   *logging.Logger
}

// New creates a Matcher.
func New(store AuthorGraph, log *logging.Logger) *Matcher {
	return &Matcher{store: store, log: log.With("job", "match")}
}

// Run processes unmatched authors in ascending created_at order, so a
// node made self-canonical early in the pass is visible as an adoption
// target to every node after it. A failed write on one node is counted
// and skipped; the node stays unmatched for the next run.
func (m *Matcher) Run(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats

	limit := opts.Limit
	if limit <= 0 {
		limit = 10000
	}

	candidates, err := m.store.UnmatchedAuthors(ctx, opts.Since, opts.Until, limit)
	if err != nil {
		return stats, err
	}

	for _, author := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Processed++

		if err := m.matchOne(ctx, author, &stats); err != nil {
			stats.Failed++
			m.log.Warn("match failed, node left unmatched",
				"author_id", author.AuthorID, "error", err)
		}
	}

	m.log.Info("matcher pass complete",
		"processed", stats.Processed,
		"adopted", stats.Adopted,
		"tentative", stats.Tentative,
		"self_canonical", stats.SelfCanonical,
		"failed", stats.Failed)
	return stats, nil
}

func (m *Matcher) matchOne(ctx context.Context, author graph.AuthorRecord, stats *Stats) error {
	peers, err := m.store.PeersByName(ctx, graph.NormalizeName(author.Name), author.AuthorID)
	if err != nil {
		return err
	}

	if len(peers) == 0 {
		stats.SelfCanonical++
		return m.store.AssignCanonical(ctx, author.AuthorID, author.AuthorID, SelfConfidence, false)
	}

	best, score, reason := bestPeer(author, peers)
	switch {
	case score >= adoptThreshold:
		// Adopt the peer's canonical id, resolving exactly one level of
		// indirection; chain flattening is a separate compaction concern.
		canonical := best.CanonicalID
		if canonical == "" {
			canonical = best.AuthorID
		}
		stats.Adopted++
		return m.store.AssignCanonical(ctx, author.AuthorID, canonical, score, false)

	case score >= tentativeThreshold:
		if err := m.store.AssignCanonical(ctx, author.AuthorID, best.AuthorID, score, true); err != nil {
			return err
		}
		stats.Tentative++
		return m.store.MergePossiblySameAs(ctx, author.AuthorID, best.AuthorID, score, reason)

	default:
		stats.SelfCanonical++
		return m.store.AssignCanonical(ctx, author.AuthorID, author.AuthorID, SelfConfidence, false)
	}
}
