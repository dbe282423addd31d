package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/arxgraph/internal/checkpoint"
	"github.com/matsen/arxgraph/internal/graph"
	"github.com/matsen/arxgraph/internal/logging"
	"github.com/matsen/arxgraph/internal/openalex"
)

type fakeOpenAlexGraph struct {
	papers  []graph.PaperAuthors
	updates []graph.OpenAlexUpdate

	gotFrom string
	gotTo   string
}

func (f *fakeOpenAlexGraph) PapersNeedingOpenAlex(_ context.Context, from, to string, limit int, _ bool) ([]graph.PaperAuthors, error) {
	f.gotFrom, f.gotTo = from, to
	if limit < len(f.papers) {
		return f.papers[:limit], nil
	}
	return f.papers, nil
}

func (f *fakeOpenAlexGraph) UpdateAuthorOpenAlex(_ context.Context, u graph.OpenAlexUpdate) error {
	f.updates = append(f.updates, u)
	return nil
}

type fakeOpenAlexAPI struct {
	works    map[string]openalex.Work // keyed by request DOI
	profiles map[string]openalex.Author

	workCalls   int
	authorCalls int
}

func (f *fakeOpenAlexAPI) WorksByDOI(_ context.Context, dois []string) ([]openalex.Work, error) {
	f.workCalls++
	var out []openalex.Work
	for _, doi := range dois {
		if w, ok := f.works[doi]; ok {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeOpenAlexAPI) AuthorsByID(_ context.Context, ids []string) ([]openalex.Author, error) {
	f.authorCalls++
	var out []openalex.Author
	for _, id := range ids {
		if a, ok := f.profiles[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func testCheckpoints(t *testing.T) *checkpoint.Store {
	t.Helper()
	store, err := checkpoint.NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func intPtr(v int) *int { return &v }

func TestOpenAlexRunMatchesByPositionAndName(t *testing.T) {
	store := &fakeOpenAlexGraph{
		papers: []graph.PaperAuthors{
			{
				ArxivID:       "2506.01234",
				PublishedDate: "2025-06-01",
				Authors: []graph.PaperAuthorSlot{
					{AuthorID: "a1", Name: "Jane Smith", Position: 1},
					{AuthorID: "a2", Name: "Wei Chen", Position: 2},
				},
			},
		},
	}
	api := &fakeOpenAlexAPI{
		works: map[string]openalex.Work{
			"10.48550/arxiv.2506.01234": {
				DOI: "https://doi.org/10.48550/arxiv.2506.01234",
				Authorships: []openalex.Authorship{
					{RawAuthorName: "Smith, Jane", Author: openalex.AuthorRef{ID: "A1", DisplayName: "Jane Smith"}},
					{RawAuthorName: "Totally Different", Author: openalex.AuthorRef{ID: "A2", DisplayName: "Someone Else"}},
				},
			},
		},
		profiles: map[string]openalex.Author{
			"A1": {
				ID:           "A1",
				SummaryStats: openalex.SummaryStats{HIndex: 12},
				CitedByCount: 340,
				WorksCount:   25,
				LastKnownInstitutions: []openalex.Institution{
					{DisplayName: "MIT", CountryCode: "US"},
				},
			},
		},
	}

	e := NewOpenAlexEnricher(store, api, testCheckpoints(t), logging.Nop())
	stats, err := e.Run(context.Background(), OpenAlexOptions{FromDate: "2025-06-01", ToDate: "2025-06-30"})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.PapersProcessed)
	assert.Equal(t, 1, stats.WorksFound)
	assert.Equal(t, 1, stats.AuthorsMatched)
	assert.Equal(t, 1, stats.MatchesRejected)
	assert.Equal(t, 1, stats.AuthorsUpdated)

	require.Len(t, store.updates, 1)
	u := store.updates[0]
	assert.Equal(t, "a1", u.AuthorID)
	assert.Equal(t, "A1", u.OpenAlexID)
	assert.Equal(t, intPtr(12), u.HIndex)
	assert.Equal(t, intPtr(340), u.CitationCount)
	assert.Equal(t, intPtr(25), u.WorksCount)
	assert.Equal(t, "MIT", u.Affiliation)
	assert.Equal(t, "US", u.InstitutionCountry)
	assert.Equal(t, 1.0, u.MatchConfidence)
	assert.Equal(t, EnrichmentVersion, u.EnrichmentVersion)
}

func TestOpenAlexRunSkipsAlreadyEnrichedSlots(t *testing.T) {
	store := &fakeOpenAlexGraph{
		papers: []graph.PaperAuthors{
			{
				ArxivID:       "2506.01234",
				PublishedDate: "2025-06-01",
				Authors: []graph.PaperAuthorSlot{
					{AuthorID: "a1", Name: "Jane Smith", Position: 1, OpenAlexID: "A1"},
				},
			},
		},
	}
	api := &fakeOpenAlexAPI{
		works: map[string]openalex.Work{
			"10.48550/arxiv.2506.01234": {
				DOI: "https://doi.org/10.48550/arxiv.2506.01234",
				Authorships: []openalex.Authorship{
					{RawAuthorName: "Jane Smith", Author: openalex.AuthorRef{ID: "A1"}},
				},
			},
		},
	}

	e := NewOpenAlexEnricher(store, api, testCheckpoints(t), logging.Nop())
	stats, err := e.Run(context.Background(), OpenAlexOptions{FromDate: "2025-06-01", ToDate: "2025-06-30"})
	require.NoError(t, err)

	assert.Equal(t, 0, stats.AuthorsUpdated)
	assert.Empty(t, store.updates)
	// The profile fetch has nothing to do either.
	assert.Equal(t, 0, api.authorCalls)
}

func TestOpenAlexRunHandlesMissingWorkAndProfile(t *testing.T) {
	store := &fakeOpenAlexGraph{
		papers: []graph.PaperAuthors{
			{
				ArxivID:       "2506.09999",
				PublishedDate: "2025-06-02",
				Authors:       []graph.PaperAuthorSlot{{AuthorID: "a1", Name: "Jane Smith", Position: 1}},
			},
			{
				ArxivID:       "2506.01234",
				PublishedDate: "2025-06-01",
				Authors:       []graph.PaperAuthorSlot{{AuthorID: "a2", Name: "Wei Chen", Position: 1}},
			},
		},
	}
	api := &fakeOpenAlexAPI{
		works: map[string]openalex.Work{
			// Only the second paper has a work, and its author profile is
			// absent from the authors endpoint.
			"10.48550/arxiv.2506.01234": {
				DOI: "https://doi.org/10.48550/arxiv.2506.01234",
				Authorships: []openalex.Authorship{
					{RawAuthorName: "Wei Chen", Author: openalex.AuthorRef{ID: "A2"}},
				},
			},
		},
	}

	e := NewOpenAlexEnricher(store, api, testCheckpoints(t), logging.Nop())
	stats, err := e.Run(context.Background(), OpenAlexOptions{FromDate: "2025-06-01", ToDate: "2025-06-30"})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.PapersProcessed)
	assert.Equal(t, 1, stats.WorksFound)
	assert.Equal(t, 1, stats.ProfilesMissing)
	assert.Equal(t, 1, stats.AuthorsUpdated)

	// The id still gets attached even without bibliometrics.
	require.Len(t, store.updates, 1)
	assert.Equal(t, "A2", store.updates[0].OpenAlexID)
	assert.Nil(t, store.updates[0].HIndex)
}

func TestOpenAlexRunBatchesDOIRequests(t *testing.T) {
	var papers []graph.PaperAuthors
	for i := 0; i < openalex.MaxWorksPerBatch+10; i++ {
		papers = append(papers, graph.PaperAuthors{
			ArxivID:       "2506.0" + string(rune('1'+i%9)) + "000",
			PublishedDate: "2025-06-01",
		})
	}
	store := &fakeOpenAlexGraph{papers: papers}
	api := &fakeOpenAlexAPI{}

	e := NewOpenAlexEnricher(store, api, testCheckpoints(t), logging.Nop())
	_, err := e.Run(context.Background(), OpenAlexOptions{FromDate: "2025-06-01", ToDate: "2025-06-30"})
	require.NoError(t, err)

	assert.Equal(t, 2, api.workCalls)
}

func TestOpenAlexRunClearsCheckpointOnCompletion(t *testing.T) {
	ckpts := testCheckpoints(t)
	e := NewOpenAlexEnricher(&fakeOpenAlexGraph{}, &fakeOpenAlexAPI{}, ckpts, logging.Nop())

	_, err := e.Run(context.Background(), OpenAlexOptions{FromDate: "2025-06-01", ToDate: "2025-06-30"})
	require.NoError(t, err)

	_, ok, err := ckpts.Load(OpenAlexJobID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenAlexRunResumeCapsWindowAtCheckpoint(t *testing.T) {
	ckpts := testCheckpoints(t)
	require.NoError(t, ckpts.Save(&checkpoint.Record{
		SchemaVersion: checkpoint.SchemaVersion,
		JobID:         OpenAlexJobID,
		Cursor:        checkpoint.Cursor{CurrentDate: "2025-06-15"},
	}))

	store := &fakeOpenAlexGraph{}
	e := NewOpenAlexEnricher(store, &fakeOpenAlexAPI{}, ckpts, logging.Nop())

	_, err := e.Run(context.Background(), OpenAlexOptions{FromDate: "2025-06-01", ToDate: "2025-06-30"})
	require.NoError(t, err)

	// The walk is newest-first, so the checkpointed date becomes the
	// upper bound of the resumed query.
	assert.Equal(t, "2025-06-01", store.gotFrom)
	assert.Equal(t, "2025-06-15", store.gotTo)

	// Force ignores the checkpoint and queries the full window.
	require.NoError(t, ckpts.Save(&checkpoint.Record{
		SchemaVersion: checkpoint.SchemaVersion,
		JobID:         OpenAlexJobID,
		Cursor:        checkpoint.Cursor{CurrentDate: "2025-06-15"},
	}))
	_, err = e.Run(context.Background(), OpenAlexOptions{
		FromDate: "2025-06-01", ToDate: "2025-06-30", Force: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-30", store.gotTo)
}

func TestNormalizeDOI(t *testing.T) {
	assert.Equal(t, "10.48550/arxiv.2506.01234",
		normalizeDOI("https://doi.org/10.48550/arXiv.2506.01234"))
	assert.Equal(t, "10.48550/arxiv.2506.01234",
		normalizeDOI("10.48550/arxiv.2506.01234"))
}
