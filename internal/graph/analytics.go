package graph

import "context"

// Analytics row types. All author grouping coalesces canonical_id to
// author_id so the queries stay meaningful before the matcher has run.

// CategoryGrowth is one category's paper counts across the two window halves.
type CategoryGrowth struct {
	Name         string  `json:"name"`
	EarlierCount int     `json:"earlier_count"`
	RecentCount  int     `json:"recent_count"`
	GrowthRatio  float64 `json:"growth_ratio"`
}

// AuthorOutput is one canonical author's output on a single date.
type AuthorOutput struct {
	CanonicalID string   `json:"canonical_id"`
	Name        string   `json:"name"`
	Affiliation string   `json:"affiliation,omitempty"`
	PaperCount  int      `json:"paper_count"`
	Titles      []string `json:"titles"`
}

// AuthorMomentum is one canonical author's paper counts across the two
// window halves.
type AuthorMomentum struct {
	CanonicalID  string  `json:"canonical_id"`
	Name         string  `json:"name"`
	EarlierCount int     `json:"earlier_count"`
	RecentCount  int     `json:"recent_count"`
	GrowthRatio  float64 `json:"growth_ratio"`
}

// Collaboration is one paper spanning several institutions.
type Collaboration struct {
	ArxivID          string   `json:"arxiv_id"`
	Title            string   `json:"title"`
	AffiliationCount int      `json:"affiliation_count"`
	Affiliations     []string `json:"affiliations"`
}

// CategoryGrowthCounts returns per-category paper counts for the two
// halves of a window. Thresholding and ordering live in the curation layer.
func (s *Store) CategoryGrowthCounts(ctx context.Context, earlierStart, recentStart, end string) ([]CategoryGrowth, error) {
	rows, err := s.readRows(ctx, `
MATCH (p:Paper)-[:IN_CATEGORY]->(c:Category)
WHERE p.published_date >= $earlier_start AND p.published_date <= $end
WITH c.name AS name,
	sum(CASE WHEN p.published_date >= $recent_start THEN 1 ELSE 0 END) AS recent,
	sum(CASE WHEN p.published_date < $recent_start THEN 1 ELSE 0 END) AS earlier
RETURN name, earlier, recent
`, map[string]any{
		"earlier_start": earlierStart,
		"recent_start":  recentStart,
		"end":           end,
	})
	if err != nil {
		return nil, err
	}

	out := make([]CategoryGrowth, 0, len(rows))
	for _, row := range rows {
		g := CategoryGrowth{
			Name:         rowString(row, "name"),
			EarlierCount: rowInt(row, "earlier"),
			RecentCount:  rowInt(row, "recent"),
		}
		if g.EarlierCount > 0 {
			g.GrowthRatio = float64(g.RecentCount) / float64(g.EarlierCount)
		}
		out = append(out, g)
	}
	return out, nil
}

// AuthorsOnDate returns canonical authors with at least minPapers papers
// published on the given date, with the titles.
func (s *Store) AuthorsOnDate(ctx context.Context, date string, minPapers int) ([]AuthorOutput, error) {
	rows, err := s.readRows(ctx, `
MATCH (a:Author)-[:AUTHORED]->(p:Paper {published_date: $date})
WITH coalesce(a.canonical_id, a.author_id) AS cid,
	collect(DISTINCT p.title) AS titles,
	head(collect(a.name)) AS name,
	head(collect(coalesce(a.affiliation, ''))) AS affiliation,
	count(DISTINCT p) AS papers
WHERE papers >= $min_papers
RETURN cid, name, affiliation, papers, titles
ORDER BY papers DESC, name ASC
`, map[string]any{"date": date, "min_papers": minPapers})
	if err != nil {
		return nil, err
	}

	out := make([]AuthorOutput, 0, len(rows))
	for _, row := range rows {
		out = append(out, AuthorOutput{
			CanonicalID: rowString(row, "cid"),
			Name:        rowString(row, "name"),
			Affiliation: rowString(row, "affiliation"),
			PaperCount:  rowInt(row, "papers"),
			Titles:      rowStrings(row, "titles"),
		})
	}
	return out, nil
}

// AuthorMomentumCounts returns per-canonical-author paper counts for the
// two halves of a window.
func (s *Store) AuthorMomentumCounts(ctx context.Context, earlierStart, recentStart, end string) ([]AuthorMomentum, error) {
	rows, err := s.readRows(ctx, `
MATCH (a:Author)-[:AUTHORED]->(p:Paper)
WHERE p.published_date >= $earlier_start AND p.published_date <= $end
WITH coalesce(a.canonical_id, a.author_id) AS cid,
	head(collect(a.name)) AS name,
	sum(CASE WHEN p.published_date >= $recent_start THEN 1 ELSE 0 END) AS recent,
	sum(CASE WHEN p.published_date < $recent_start THEN 1 ELSE 0 END) AS earlier
RETURN cid, name, earlier, recent
`, map[string]any{
		"earlier_start": earlierStart,
		"recent_start":  recentStart,
		"end":           end,
	})
	if err != nil {
		return nil, err
	}

	out := make([]AuthorMomentum, 0, len(rows))
	for _, row := range rows {
		m := AuthorMomentum{
			CanonicalID:  rowString(row, "cid"),
			Name:         rowString(row, "name"),
			EarlierCount: rowInt(row, "earlier"),
			RecentCount:  rowInt(row, "recent"),
		}
		if m.EarlierCount > 0 {
			m.GrowthRatio = float64(m.RecentCount) / float64(m.EarlierCount)
		}
		out = append(out, m)
	}
	return out, nil
}

// CollaborationsOnDate returns papers published on the date whose authors
// span at least minAffiliations distinct affiliations.
func (s *Store) CollaborationsOnDate(ctx context.Context, date string, minAffiliations int) ([]Collaboration, error) {
	rows, err := s.readRows(ctx, `
MATCH (a:Author)-[:AUTHORED]->(p:Paper {published_date: $date})
WHERE a.affiliation IS NOT NULL AND a.affiliation <> ''
WITH p, collect(DISTINCT a.affiliation) AS affiliations
WHERE size(affiliations) >= $min_affiliations
RETURN p.arxiv_id AS arxiv_id, p.title AS title,
	size(affiliations) AS affiliation_count, affiliations
ORDER BY affiliation_count DESC, arxiv_id ASC
`, map[string]any{"date": date, "min_affiliations": minAffiliations})
	if err != nil {
		return nil, err
	}

	out := make([]Collaboration, 0, len(rows))
	for _, row := range rows {
		out = append(out, Collaboration{
			ArxivID:          rowString(row, "arxiv_id"),
			Title:            rowString(row, "title"),
			AffiliationCount: rowInt(row, "affiliation_count"),
			Affiliations:     rowStrings(row, "affiliations"),
		})
	}
	return out, nil
}
