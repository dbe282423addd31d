package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/matsen/arxgraph/internal/checkpoint"
	"github.com/matsen/arxgraph/internal/graph"
	"github.com/matsen/arxgraph/internal/logging"
	"github.com/matsen/arxgraph/internal/openalex"
)

// EnrichmentVersion tags OpenAlex writes so a future rematch pass can
// find authors enriched under older matching rules.
const EnrichmentVersion = 1

// OpenAlexJobID keys the loop's checkpoint file.
const OpenAlexJobID = "enrich-openalex"

// OpenAlexGraph is the graph surface the OpenAlex loop reads and writes.
type OpenAlexGraph interface {
	PapersNeedingOpenAlex(ctx context.Context, fromDate, toDate string, limit int, force bool) ([]graph.PaperAuthors, error)
	UpdateAuthorOpenAlex(ctx context.Context, u graph.OpenAlexUpdate) error
}

// OpenAlexAPI is the slice of the OpenAlex client the loop calls.
type OpenAlexAPI interface {
	WorksByDOI(ctx context.Context, dois []string) ([]openalex.Work, error)
	AuthorsByID(ctx context.Context, ids []string) ([]openalex.Author, error)
}

// OpenAlexOptions configure one enrichment run.
type OpenAlexOptions struct {
	FromDate string
	ToDate   string
	Limit    int

	// Force re-enriches papers whose authors already carry OpenAlex ids.
	Force bool

	// SaveInterval is how many papers to process between checkpoint
	// saves.
	SaveInterval int
}

// OpenAlexStats summarise one run.
type OpenAlexStats struct {
	PapersProcessed int `json:"papers_processed"`
	WorksFound      int `json:"works_found"`
	AuthorsMatched  int `json:"authors_matched"`
	AuthorsUpdated  int `json:"authors_updated"`
	MatchesHigh     int `json:"matches_high"`
	MatchesMedium   int `json:"matches_medium"`
	MatchesLow      int `json:"matches_low"`
	MatchesRejected int `json:"matches_rejected"`
	ProfilesMissing int `json:"profiles_missing"`
	WriteFailures   int `json:"write_failures"`
}

// slotMatch pairs a graph author slot with its matched OpenAlex author.
type slotMatch struct {
	slot       graph.PaperAuthorSlot
	openalexID string
	similarity float64
}

// OpenAlexEnricher attaches OpenAlex ids and bibliometrics to author
// nodes by position-pairing ingested authorships against OpenAlex works.
type OpenAlexEnricher struct {
	store OpenAlexGraph
	api   OpenAlexAPI
	ckpts *checkpoint.Store
	log   *logging.Logger
}

// NewOpenAlexEnricher creates the loop.
func NewOpenAlexEnricher(store OpenAlexGraph, api OpenAlexAPI, ckpts *checkpoint.Store, log *logging.Logger) *OpenAlexEnricher {
	return &OpenAlexEnricher{store: store, api: api, ckpts: ckpts, log: log.With("job", OpenAlexJobID)}
}

// Run enriches papers in the date window. Progress is checkpointed every
// SaveInterval papers; the checkpoint is removed once the window is done.
func (e *OpenAlexEnricher) Run(ctx context.Context, opts OpenAlexOptions) (OpenAlexStats, error) {
	var stats OpenAlexStats

	limit := opts.Limit
	if limit <= 0 {
		limit = 10000
	}
	saveEvery := opts.SaveInterval
	if saveEvery <= 0 {
		saveEvery = 100
	}

	toDate := opts.ToDate
	if rec, ok, err := e.ckpts.Load(OpenAlexJobID); err != nil {
		return stats, err
	} else if ok && rec.Cursor.CurrentDate != "" && !opts.Force {
		// The walk runs newest-first, so the checkpointed date caps the
		// window from above: papers newer than it were handled before
		// the interruption.
		if rec.Cursor.CurrentDate < toDate {
			toDate = rec.Cursor.CurrentDate
		}
		e.log.Info("resuming from checkpoint", "current_date", rec.Cursor.CurrentDate)
	}

	papers, err := e.store.PapersNeedingOpenAlex(ctx, opts.FromDate, toDate, limit, opts.Force)
	if err != nil {
		return stats, err
	}
	e.log.Info("papers selected for enrichment", "count", len(papers))

	for start := 0; start < len(papers); start += openalex.MaxWorksPerBatch {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := start + openalex.MaxWorksPerBatch
		if end > len(papers) {
			end = len(papers)
		}
		batch := papers[start:end]

		if err := e.enrichBatch(ctx, batch, &stats); err != nil {
			return stats, err
		}
		stats.PapersProcessed += len(batch)

		if stats.PapersProcessed%saveEvery < len(batch) {
			if err := e.save(batch[len(batch)-1].PublishedDate, stats); err != nil {
				e.log.Warn("checkpoint save failed", "error", err)
			}
		}
	}

	if err := e.ckpts.Clear(OpenAlexJobID); err != nil {
		e.log.Warn("checkpoint clear failed", "error", err)
	}
	e.log.Info("enrichment run complete",
		"papers", stats.PapersProcessed,
		"works_found", stats.WorksFound,
		"authors_updated", stats.AuthorsUpdated)
	return stats, nil
}

func (e *OpenAlexEnricher) enrichBatch(ctx context.Context, batch []graph.PaperAuthors, stats *OpenAlexStats) error {
	byDOI := make(map[string]graph.PaperAuthors, len(batch))
	dois := make([]string, 0, len(batch))
	for _, p := range batch {
		doi := openalex.DOIForArxivID(p.ArxivID)
		byDOI[doi] = p
		dois = append(dois, doi)
	}

	works, err := e.api.WorksByDOI(ctx, dois)
	if err != nil {
		return err
	}
	stats.WorksFound += len(works)

	var matches []slotMatch
	for _, work := range works {
		paper, ok := byDOI[normalizeDOI(work.DOI)]
		if !ok {
			continue
		}
		matches = append(matches, matchAuthorships(paper, work, stats)...)
	}

	profiles, err := e.fetchProfiles(ctx, matches)
	if err != nil {
		return err
	}

	for _, m := range matches {
		if m.slot.OpenAlexID != "" {
			continue
		}
		update := graph.OpenAlexUpdate{
			AuthorID:          m.slot.AuthorID,
			OpenAlexID:        m.openalexID,
			MatchConfidence:   m.similarity,
			EnrichmentVersion: EnrichmentVersion,
		}
		profile, ok := profiles[m.openalexID]
		if !ok {
			stats.ProfilesMissing++
		} else {
			h, c, w := profile.SummaryStats.HIndex, profile.CitedByCount, profile.WorksCount
			update.HIndex = &h
			update.CitationCount = &c
			update.WorksCount = &w
			if len(profile.LastKnownInstitutions) > 0 {
				update.Affiliation = profile.LastKnownInstitutions[0].DisplayName
				update.InstitutionCountry = profile.LastKnownInstitutions[0].CountryCode
			}
		}
		if err := e.store.UpdateAuthorOpenAlex(ctx, update); err != nil {
			stats.WriteFailures++
			e.log.Warn("author update failed", "author_id", m.slot.AuthorID, "error", err)
			continue
		}
		stats.AuthorsUpdated++
	}
	return nil
}

// matchAuthorships pairs graph author slots with OpenAlex authorships by
// position, accepting a pairing only when the names agree.
func matchAuthorships(paper graph.PaperAuthors, work openalex.Work, stats *OpenAlexStats) []slotMatch {
	var out []slotMatch
	n := len(paper.Authors)
	if len(work.Authorships) < n {
		n = len(work.Authorships)
	}
	for i := 0; i < n; i++ {
		slot := paper.Authors[i]
		authorship := work.Authorships[i]
		if authorship.Author.ID == "" {
			continue
		}

		sim := NameSimilarity(slot.Name, authorship.RawAuthorName)
		if disp := NameSimilarity(slot.Name, authorship.Author.DisplayName); disp > sim {
			sim = disp
		}
		if sim < MinMatchSimilarity {
			stats.MatchesRejected++
			continue
		}

		switch confidenceBucket(sim) {
		case "high":
			stats.MatchesHigh++
		case "medium":
			stats.MatchesMedium++
		default:
			stats.MatchesLow++
		}
		stats.AuthorsMatched++
		out = append(out, slotMatch{slot: slot, openalexID: authorship.Author.ID, similarity: sim})
	}
	return out
}

// fetchProfiles batch-fetches the distinct author profiles behind the
// matches, respecting the authors endpoint batch limit.
func (e *OpenAlexEnricher) fetchProfiles(ctx context.Context, matches []slotMatch) (map[string]openalex.Author, error) {
	seen := make(map[string]bool, len(matches))
	var ids []string
	for _, m := range matches {
		if m.slot.OpenAlexID != "" || seen[m.openalexID] {
			continue
		}
		seen[m.openalexID] = true
		ids = append(ids, m.openalexID)
	}

	profiles := make(map[string]openalex.Author, len(ids))
	for start := 0; start < len(ids); start += openalex.MaxAuthorsPerBatch {
		end := start + openalex.MaxAuthorsPerBatch
		if end > len(ids) {
			end = len(ids)
		}
		authors, err := e.api.AuthorsByID(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		for _, a := range authors {
			profiles[a.ID] = a
		}
	}
	return profiles, nil
}

func (e *OpenAlexEnricher) save(currentDate string, stats OpenAlexStats) error {
	return e.ckpts.Save(&checkpoint.Record{
		SchemaVersion: checkpoint.SchemaVersion,
		JobID:         OpenAlexJobID,
		Cursor:        checkpoint.Cursor{CurrentDate: currentDate},
		Stats: map[string]int{
			"papers_processed": stats.PapersProcessed,
			"authors_updated":  stats.AuthorsUpdated,
		},
		LastSavedAt: time.Now().UTC(),
	})
}

// normalizeDOI strips the resolver prefix OpenAlex returns DOIs with and
// lowercases, so responses key back to the request form.
func normalizeDOI(doi string) string {
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	return strings.ToLower(doi)
}
