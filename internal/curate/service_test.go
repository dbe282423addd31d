package curate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/arxgraph/internal/graph"
	"github.com/matsen/arxgraph/internal/logging"
)

type fakeAnalytics struct {
	growth   []graph.CategoryGrowth
	authors  []graph.AuthorOutput
	momentum []graph.AuthorMomentum
	collabs  []graph.Collaboration

	gotEarlierStart string
	gotRecentStart  string
	gotEnd          string
	gotDate         string
	gotMinPapers    int
	gotMinAffils    int
}

func (f *fakeAnalytics) CategoryGrowthCounts(_ context.Context, earlierStart, recentStart, end string) ([]graph.CategoryGrowth, error) {
	f.gotEarlierStart, f.gotRecentStart, f.gotEnd = earlierStart, recentStart, end
	return f.growth, nil
}

func (f *fakeAnalytics) AuthorsOnDate(_ context.Context, date string, minPapers int) ([]graph.AuthorOutput, error) {
	f.gotDate, f.gotMinPapers = date, minPapers
	return f.authors, nil
}

func (f *fakeAnalytics) AuthorMomentumCounts(_ context.Context, earlierStart, recentStart, end string) ([]graph.AuthorMomentum, error) {
	f.gotEarlierStart, f.gotRecentStart, f.gotEnd = earlierStart, recentStart, end
	return f.momentum, nil
}

func (f *fakeAnalytics) CollaborationsOnDate(_ context.Context, date string, minAffiliations int) ([]graph.Collaboration, error) {
	f.gotDate, f.gotMinAffils = date, minAffiliations
	return f.collabs, nil
}

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestHalveWindow(t *testing.T) {
	tests := []struct {
		name             string
		start, end       string
		wantEarlierStart string
		wantRecentStart  string
	}{
		{"thirty days", "2025-06-01", "2025-06-30", "2025-06-01", "2025-06-16"},
		{"odd span favours earlier half", "2025-06-01", "2025-06-07", "2025-06-01", "2025-06-05"},
		{"two days", "2025-06-01", "2025-06-02", "2025-06-01", "2025-06-02"},
		{"single day", "2025-06-01", "2025-06-01", "2025-06-01", "2025-06-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			earlier, recent := halveWindow(date(tt.start), date(tt.end))
			assert.Equal(t, tt.wantEarlierStart, earlier)
			assert.Equal(t, tt.wantRecentStart, recent)
		})
	}
}

func TestTrendingCategoriesFiltersAndSorts(t *testing.T) {
	store := &fakeAnalytics{
		growth: []graph.CategoryGrowth{
			{Name: "cs.LG", EarlierCount: 100, RecentCount: 150, GrowthRatio: 1.5},
			{Name: "cs.AI", EarlierCount: 50, RecentCount: 60, GrowthRatio: 1.2}, // below ratio
			{Name: "cs.NE", EarlierCount: 4, RecentCount: 8, GrowthRatio: 2.0},   // below recent floor
			{Name: "stat.ML", EarlierCount: 10, RecentCount: 20, GrowthRatio: 2.0},
			{Name: "cs.CL", EarlierCount: 0, RecentCount: 12},
		},
	}
	svc := NewService(store, logging.Nop())

	got, err := svc.TrendingCategories(context.Background(), date("2025-06-01"), date("2025-06-30"))
	require.NoError(t, err)

	names := make([]string, len(got))
	for i, g := range got {
		names[i] = g.Name
	}
	// New categories first, then by ratio.
	assert.Equal(t, []string{"cs.CL", "stat.ML", "cs.LG"}, names)
	assert.Equal(t, "2025-06-16", store.gotRecentStart)
	assert.Equal(t, "2025-06-30", store.gotEnd)
}

func TestProductiveAuthorsPassesThreshold(t *testing.T) {
	store := &fakeAnalytics{
		authors: []graph.AuthorOutput{{CanonicalID: "c1", Name: "Jane Smith", PaperCount: 3}},
	}
	svc := NewService(store, logging.Nop())

	got, err := svc.ProductiveAuthors(context.Background(), date("2025-06-15"))
	require.NoError(t, err)

	assert.Equal(t, "2025-06-15", store.gotDate)
	assert.Equal(t, ProductiveMinPapers, store.gotMinPapers)
	require.Len(t, got, 1)
}

func TestRisingAuthorsFiltersAndSorts(t *testing.T) {
	store := &fakeAnalytics{
		momentum: []graph.AuthorMomentum{
			{CanonicalID: "c1", Name: "Slow", EarlierCount: 4, RecentCount: 5, GrowthRatio: 1.25},
			{CanonicalID: "c2", Name: "Fast", EarlierCount: 1, RecentCount: 4, GrowthRatio: 4.0},
			{CanonicalID: "c3", Name: "New", EarlierCount: 0, RecentCount: 6},                     // no history
			{CanonicalID: "c4", Name: "Quiet", EarlierCount: 1, RecentCount: 2, GrowthRatio: 2.0}, // too few recent
			{CanonicalID: "c5", Name: "Steady", EarlierCount: 2, RecentCount: 4, GrowthRatio: 2.0},
		},
	}
	svc := NewService(store, logging.Nop())

	got, err := svc.RisingAuthors(context.Background(), date("2025-06-01"), date("2025-06-30"))
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, m := range got {
		ids[i] = m.CanonicalID
	}
	assert.Equal(t, []string{"c2", "c5"}, ids)
}

func TestCollaborationsPassesThreshold(t *testing.T) {
	store := &fakeAnalytics{
		collabs: []graph.Collaboration{{ArxivID: "2506.00001", AffiliationCount: 3}},
	}
	svc := NewService(store, logging.Nop())

	got, err := svc.Collaborations(context.Background(), date("2025-06-15"))
	require.NoError(t, err)

	assert.Equal(t, "2025-06-15", store.gotDate)
	assert.Equal(t, CollabMinAffiliations, store.gotMinAffils)
	require.Len(t, got, 1)
}
