package graph

import (
	"context"
	"time"
)

// PaperAuthorSlot is one graph author on a paper, in AUTHORED position
// order, with the enrichment markers the loops check.
type PaperAuthorSlot struct {
	AuthorID   string
	Name       string
	Position   int
	OpenAlexID string
	S2AuthorID string
}

// PaperAuthors is a paper plus its ordered author slots.
type PaperAuthors struct {
	ArxivID       string
	PublishedDate string
	Abstract      string
	Authors       []PaperAuthorSlot
}

const paperAuthorsReturn = `
RETURN
	p.arxiv_id AS arxiv_id,
	p.published_date AS published_date,
	coalesce(p.abstract, '') AS abstract,
	[x IN authorships | {
		author_id: x.author.author_id,
		name: x.author.name,
		position: x.rel.position,
		openalex_id: coalesce(x.author.openalex_id, ''),
		s2_author_id: coalesce(x.author.s2_author_id, '')
	}] AS authors
`

// PapersNeedingOpenAlex returns papers in the date window that still have
// at least one author without an OpenAlex id. force includes papers whose
// authors are already enriched.
func (s *Store) PapersNeedingOpenAlex(ctx context.Context, fromDate, toDate string, limit int, force bool) ([]PaperAuthors, error) {
	query := `
MATCH (p:Paper)
WHERE p.published_date >= $from AND p.published_date <= $to
`
	if !force {
		query += `  AND EXISTS {
	MATCH (a:Author)-[:AUTHORED]->(p)
	WHERE a.openalex_id IS NULL
}
`
	}
	query += `WITH p ORDER BY p.published_date DESC LIMIT $limit
MATCH (au:Author)-[r:AUTHORED]->(p)
WITH p, au, r ORDER BY r.position ASC
WITH p, collect({author: au, rel: r}) AS authorships
` + paperAuthorsReturn

	rows, err := s.readRows(ctx, query, map[string]any{
		"from": fromDate, "to": toDate, "limit": limit,
	})
	if err != nil {
		return nil, err
	}
	return paperAuthorsFromRows(rows), nil
}

// PapersNeedingS2 returns papers with at least one author missing an S2
// author id, ordered by (published_date, arxiv_id). The cursor pair bounds
// the walk so resumed runs skip already-visited papers; dates are
// day-granular, so the arxiv_id tiebreak is what lets a walk advance
// through many papers sharing one date. Pass "" / "" to start fresh.
func (s *Store) PapersNeedingS2(ctx context.Context, cursorDate, cursorID string, reverse bool, limit int) ([]PaperAuthors, error) {
	order := "ASC"
	cmp := ">"
	if reverse {
		order = "DESC"
		cmp = "<"
	}

	query := `
MATCH (p:Paper)
WHERE EXISTS {
	MATCH (a:Author)-[:AUTHORED]->(p)
	WHERE a.s2_author_id IS NULL
}
`
	params := map[string]any{"limit": limit}
	if cursorDate != "" {
		query += "  AND (p.published_date " + cmp + " $cursor" +
			" OR (p.published_date = $cursor AND p.arxiv_id " + cmp + " $cursor_id))\n"
		params["cursor"] = cursorDate
		params["cursor_id"] = cursorID
	}
	query += `WITH p ORDER BY p.published_date ` + order + `, p.arxiv_id ` + order + ` LIMIT $limit
MATCH (au:Author)-[r:AUTHORED]->(p)
WITH p, au, r ORDER BY r.position ASC
WITH p, collect({author: au, rel: r}) AS authorships
` + paperAuthorsReturn

	rows, err := s.readRows(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return paperAuthorsFromRows(rows), nil
}

// PapersInWindow returns papers in the window with their abstracts and
// author slots, for the GitHub star credit pass.
func (s *Store) PapersInWindow(ctx context.Context, fromDate, toDate string, limit int) ([]PaperAuthors, error) {
	query := `
MATCH (p:Paper)
WHERE p.published_date >= $from AND p.published_date <= $to
WITH p ORDER BY p.published_date DESC LIMIT $limit
MATCH (au:Author)-[r:AUTHORED]->(p)
WITH p, au, r ORDER BY r.position ASC
WITH p, collect({author: au, rel: r}) AS authorships
` + paperAuthorsReturn

	rows, err := s.readRows(ctx, query, map[string]any{
		"from": fromDate, "to": toDate, "limit": limit,
	})
	if err != nil {
		return nil, err
	}
	return paperAuthorsFromRows(rows), nil
}

// OpenAlexUpdate carries the bibliometric fields written onto one author.
type OpenAlexUpdate struct {
	AuthorID           string
	OpenAlexID         string
	HIndex             *int
	CitationCount      *int
	WorksCount         *int
	Affiliation        string // written only when non-empty
	InstitutionCountry string
	MatchConfidence    float64
	EnrichmentVersion  int
}

// UpdateAuthorOpenAlex writes an OpenAlex enrichment onto an author node.
// The match type is always paper_position; affiliation overwrites only
// when the source value is present.
func (s *Store) UpdateAuthorOpenAlex(ctx context.Context, u OpenAlexUpdate) error {
	return s.write(ctx, `
MATCH (a:Author {author_id: $author_id})
SET a.openalex_id = $openalex_id,
	a.h_index = $h_index,
	a.citation_count = $citation_count,
	a.works_count = $works_count,
	a.institution_country = $institution_country,
	a.openalex_match_confidence = $match_confidence,
	a.openalex_match_type = 'paper_position',
	a.openalex_enrichment_version = $version
WITH a
FOREACH (_ IN CASE WHEN $affiliation <> '' THEN [1] ELSE [] END |
	SET a.affiliation = $affiliation)
`, map[string]any{
		"author_id":           u.AuthorID,
		"openalex_id":         u.OpenAlexID,
		"h_index":             intOrNil(u.HIndex),
		"citation_count":      intOrNil(u.CitationCount),
		"works_count":         intOrNil(u.WorksCount),
		"affiliation":         u.Affiliation,
		"institution_country": u.InstitutionCountry,
		"match_confidence":    u.MatchConfidence,
		"version":             u.EnrichmentVersion,
	})
}

// UpdateAuthorS2 attaches a Semantic Scholar author id.
func (s *Store) UpdateAuthorS2(ctx context.Context, authorID, s2AuthorID string) error {
	return s.write(ctx, `
MATCH (a:Author {author_id: $author_id})
SET a.s2_author_id = $s2_author_id,
	a.s2_enriched_at = datetime($now)
`, map[string]any{
		"author_id":    authorID,
		"s2_author_id": s2AuthorID,
		"now":          time.Now().UTC().Format(time.RFC3339),
	})
}

// AddGithubStars credits stars to each listed author's running sum.
func (s *Store) AddGithubStars(ctx context.Context, authorIDs []string, stars int) error {
	if len(authorIDs) == 0 || stars == 0 {
		return nil
	}
	return s.write(ctx, `
UNWIND $ids AS id
MATCH (a:Author {author_id: id})
SET a.github_stars = coalesce(a.github_stars, 0) + $stars
`, map[string]any{"ids": authorIDs, "stars": stars})
}

func paperAuthorsFromRows(rows []map[string]any) []PaperAuthors {
	out := make([]PaperAuthors, 0, len(rows))
	for _, row := range rows {
		pa := PaperAuthors{
			ArxivID:       rowString(row, "arxiv_id"),
			PublishedDate: rowString(row, "published_date"),
			Abstract:      rowString(row, "abstract"),
		}
		if raw, ok := row["authors"].([]any); ok {
			for _, item := range raw {
				m, ok := item.(map[string]any)
				if !ok {
					continue
				}
				pa.Authors = append(pa.Authors, PaperAuthorSlot{
					AuthorID:   rowString(m, "author_id"),
					Name:       rowString(m, "name"),
					Position:   rowInt(m, "position"),
					OpenAlexID: rowString(m, "openalex_id"),
					S2AuthorID: rowString(m, "s2_author_id"),
				})
			}
		}
		out = append(out, pa)
	}
	return out
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
