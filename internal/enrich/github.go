package enrich

import (
	"context"
	"strings"

	"github.com/matsen/arxgraph/internal/github"
	"github.com/matsen/arxgraph/internal/graph"
	"github.com/matsen/arxgraph/internal/logging"
)

// GithubGraph is the graph surface the star credit pass uses.
type GithubGraph interface {
	PapersInWindow(ctx context.Context, fromDate, toDate string, limit int) ([]graph.PaperAuthors, error)
	AddGithubStars(ctx context.Context, authorIDs []string, stars int) error
}

// GithubAPI is the slice of the GitHub client the pass calls.
type GithubAPI interface {
	FetchRepo(ctx context.Context, owner, repo string) (*github.Repo, error)
}

// GithubOptions configure one star credit pass.
type GithubOptions struct {
	FromDate string
	ToDate   string
	Limit    int
}

// GithubStats summarise one pass.
type GithubStats struct {
	PapersScanned  int `json:"papers_scanned"`
	PapersWithRepo int `json:"papers_with_repo"`
	ReposFetched   int `json:"repos_fetched"`
	ReposMissing   int `json:"repos_missing"`
	CacheHits      int `json:"cache_hits"`
	StarsCredited  int `json:"stars_credited"`
	WriteFailures  int `json:"write_failures"`
}

// GithubEnricher credits GitHub stars to authors of papers whose
// abstracts reference a repository.
type GithubEnricher struct {
	store GithubGraph
	api   GithubAPI
	log   *logging.Logger
}

// NewGithubEnricher creates the pass.
func NewGithubEnricher(store GithubGraph, api GithubAPI, log *logging.Logger) *GithubEnricher {
	return &GithubEnricher{store: store, api: api, log: log.With("job", "github-stars")}
}

// Run scans abstracts in the window for repo references and credits each
// paper's authors with the referenced repos' star counts. Repo lookups
// are cached per run so a repo cited by many papers costs one API call.
func (e *GithubEnricher) Run(ctx context.Context, opts GithubOptions) (GithubStats, error) {
	var stats GithubStats

	limit := opts.Limit
	if limit <= 0 {
		limit = 10000
	}

	papers, err := e.store.PapersInWindow(ctx, opts.FromDate, opts.ToDate, limit)
	if err != nil {
		return stats, err
	}

	cache := make(map[string]*github.Repo)
	for _, paper := range papers {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.PapersScanned++

		refs := github.ExtractRepoRefs(paper.Abstract)
		if len(refs) == 0 {
			continue
		}
		stats.PapersWithRepo++

		stars := 0
		for _, ref := range refs {
			repo, err := e.lookupRepo(ctx, ref, cache, &stats)
			if err != nil {
				return stats, err
			}
			if repo != nil {
				stars += repo.StargazersCount
			}
		}
		if stars == 0 {
			continue
		}

		ids := make([]string, 0, len(paper.Authors))
		for _, slot := range paper.Authors {
			ids = append(ids, slot.AuthorID)
		}
		if err := e.store.AddGithubStars(ctx, ids, stars); err != nil {
			stats.WriteFailures++
			e.log.Warn("star credit failed", "arxiv_id", paper.ArxivID, "error", err)
			continue
		}
		stats.StarsCredited += stars
	}

	e.log.Info("star credit pass complete",
		"papers", stats.PapersScanned,
		"with_repo", stats.PapersWithRepo,
		"stars_credited", stats.StarsCredited)
	return stats, nil
}

func (e *GithubEnricher) lookupRepo(ctx context.Context, ref string, cache map[string]*github.Repo, stats *GithubStats) (*github.Repo, error) {
	key := strings.ToLower(ref)
	if repo, ok := cache[key]; ok {
		stats.CacheHits++
		return repo, nil
	}

	owner, name, err := github.SplitRef(ref)
	if err != nil {
		cache[key] = nil
		return nil, nil
	}
	repo, err := e.api.FetchRepo(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		stats.ReposMissing++
	} else {
		stats.ReposFetched++
	}
	cache[key] = repo
	return repo, nil
}
