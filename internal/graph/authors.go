package graph

import (
	"context"
	"time"
)

// AuthorRecord is an author node with the contextual sets the fuzzy
// matcher scores on: coauthor names and category names reachable through
// the author's papers.
type AuthorRecord struct {
	AuthorID    string
	Name        string
	Affiliation string
	CanonicalID string
	CreatedAt   time.Time
	Coauthors   []string
	Categories  []string
}

// SelfCanonical reports whether the node asserts no known duplicate.
func (a AuthorRecord) SelfCanonical() bool {
	return a.CanonicalID != "" && a.CanonicalID == a.AuthorID
}

const authorContextFragment = `
OPTIONAL MATCH (a)-[:AUTHORED]->(p:Paper)
OPTIONAL MATCH (co:Author)-[:AUTHORED]->(p)
	WHERE co.author_id <> a.author_id
OPTIONAL MATCH (p)-[:IN_CATEGORY]->(c:Category)
RETURN
	a.author_id AS author_id,
	a.name AS name,
	coalesce(a.affiliation, '') AS affiliation,
	coalesce(a.canonical_id, '') AS canonical_id,
	a.created_at AS created_at,
	collect(DISTINCT co.name_normalized) AS coauthors,
	collect(DISTINCT c.name) AS categories
`

// UnmatchedAuthors returns authors without a canonical assignment in
// ascending created_at order, optionally restricted to a creation window.
// Zero times disable the window bounds.
func (s *Store) UnmatchedAuthors(ctx context.Context, since, until time.Time, limit int) ([]AuthorRecord, error) {
	params := map[string]any{"limit": limit}
	if !since.IsZero() {
		params["since"] = since.UTC().Format(time.RFC3339)
	}
	if !until.IsZero() {
		params["until"] = until.UTC().Format(time.RFC3339)
	}
	query := unmatchedAuthorsQuery(!since.IsZero(), !until.IsZero())

	rows, err := s.readRows(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return authorRecords(rows), nil
}

// unmatchedAuthorsQuery builds the candidate walk. The ORDER BY is
// restated after the aggregating RETURN because the earlier WITH ordering
// only feeds the LIMIT; row order out of an aggregation is otherwise
// unspecified.
func unmatchedAuthorsQuery(hasSince, hasUntil bool) string {
	query := `
MATCH (a:Author)
WHERE a.canonical_id IS NULL
`
	if hasSince {
		query += "  AND a.created_at >= datetime($since)\n"
	}
	if hasUntil {
		query += "  AND a.created_at < datetime($until)\n"
	}
	return query + `WITH a ORDER BY a.created_at ASC LIMIT $limit
` + authorContextFragment + `ORDER BY created_at ASC
`
}

// PeersByName returns other authors whose normalised name equals the
// given one, each with its scoring context.
func (s *Store) PeersByName(ctx context.Context, normalizedName, excludeAuthorID string) ([]AuthorRecord, error) {
	query := `
MATCH (a:Author)
WHERE a.name_normalized = $name AND a.author_id <> $exclude
WITH a
` + authorContextFragment

	rows, err := s.readRows(ctx, query, map[string]any{
		"name":    normalizedName,
		"exclude": excludeAuthorID,
	})
	if err != nil {
		return nil, err
	}
	return authorRecords(rows), nil
}

// AssignCanonical writes a canonical assignment onto one author node.
// needsReview marks mid-confidence assignments for the curation queue.
func (s *Store) AssignCanonical(ctx context.Context, authorID, canonicalID string, confidence int, needsReview bool) error {
	return s.write(ctx, `
MATCH (a:Author {author_id: $author_id})
SET a.canonical_id = $canonical_id,
	a.canonical_confidence = $confidence,
	a.canonical_assigned_at = datetime($now),
	a.needs_review = $needs_review
`, map[string]any{
		"author_id":    authorID,
		"canonical_id": canonicalID,
		"confidence":   confidence,
		"needs_review": needsReview,
		"now":          time.Now().UTC().Format(time.RFC3339),
	})
}

// MergePossiblySameAs records the asymmetric review pointer for a
// tentative match. Only one direction is ever materialised.
func (s *Store) MergePossiblySameAs(ctx context.Context, fromID, toID string, confidence int, reason string) error {
	return s.write(ctx, `
MATCH (a:Author {author_id: $from}), (b:Author {author_id: $to})
MERGE (a)-[r:POSSIBLY_SAME_AS]->(b)
ON CREATE SET
	r.confidence = $confidence,
	r.reason = $reason,
	r.created_date = $today,
	r.reviewed = false
`, map[string]any{
		"from":       fromID,
		"to":         toID,
		"confidence": confidence,
		"reason":     reason,
		"today":      time.Now().UTC().Format("2006-01-02"),
	})
}

func authorRecords(rows []map[string]any) []AuthorRecord {
	out := make([]AuthorRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, AuthorRecord{
			AuthorID:    rowString(row, "author_id"),
			Name:        rowString(row, "name"),
			Affiliation: rowString(row, "affiliation"),
			CanonicalID: rowString(row, "canonical_id"),
			CreatedAt:   rowTime(row, "created_at"),
			Coauthors:   rowStrings(row, "coauthors"),
			Categories:  rowStrings(row, "categories"),
		})
	}
	return out
}
