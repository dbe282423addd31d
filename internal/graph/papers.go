package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// AuthorInput is one author slot on an incoming paper. Position is 1-based.
type AuthorInput struct {
	Name        string
	Affiliation string
	Position    int
}

// PaperInput is a paper record ready to be persisted.
type PaperInput struct {
	ArxivID         string
	Version         string
	Title           string
	Abstract        string
	PrimaryCategory string
	Categories      []string
	PublishedDate   string // yyyy-mm-dd
	PDFURL          string
	Authors         []AuthorInput
}

// WriteStats summarises one batch write.
type WriteStats struct {
	PapersCreated  int
	PapersExisting int
	AuthorsCreated int
	Skipped        int
}

// upsertPaperQuery merges the paper and reports whether this call created
// it. Re-ingestion only refreshes last_seen_at.
const upsertPaperQuery = `
MERGE (p:Paper {arxiv_id: $arxiv_id})
ON CREATE SET
	p.title = $title,
	p.abstract = $abstract,
	p.primary_category = $primary_category,
	p.categories = $categories,
	p.published_date = $published_date,
	p.pdf_url = $pdf_url,
	p.version = $version,
	p.ingested_at = datetime($now),
	p.created_now = true
ON MATCH SET
	p.last_seen_at = datetime($now)
WITH p, coalesce(p.created_now, false) AS created
REMOVE p.created_now
RETURN created
`

const linkCategoriesQuery = `
MATCH (p:Paper {arxiv_id: $arxiv_id})
UNWIND $categories AS name
MERGE (c:Category {name: name})
MERGE (p)-[:IN_CATEGORY]->(c)
`

// createAuthorsQuery creates one fresh Author node per authorship and the
// AUTHORED edge carrying the position. Authors are never coalesced by
// name at ingestion time.
const createAuthorsQuery = `
MATCH (p:Paper {arxiv_id: $arxiv_id})
UNWIND $authors AS a
CREATE (au:Author {
	author_id: a.author_id,
	name: a.name,
	name_normalized: a.name_normalized,
	affiliation: a.affiliation,
	first_seen: $published_date,
	last_seen: $published_date,
	created_at: datetime($now)
})
CREATE (au)-[:AUTHORED {position: a.position, created_at: datetime($now), last_updated: datetime($now)}]->(p)
`

// WritePapers persists one day's batch. Each paper is written in its own
// transaction inside the batch; a constraint failure on one record skips
// that record without aborting the rest.
func (s *Store) WritePapers(ctx context.Context, papers []PaperInput) (WriteStats, error) {
	var stats WriteStats
	now := time.Now().UTC().Format(time.RFC3339)

	for _, paper := range papers {
		created, err := s.upsertPaper(ctx, paper, now)
		if err != nil {
			if IsConstraintError(err) {
				s.log.Warn("skipping paper on constraint violation", "arxiv_id", paper.ArxivID, "error", err)
				stats.Skipped++
				continue
			}
			return stats, fmt.Errorf("writing paper %s: %w", paper.ArxivID, err)
		}

		if !created {
			stats.PapersExisting++
			continue
		}
		stats.PapersCreated++
		stats.AuthorsCreated += len(paper.Authors)
	}

	return stats, nil
}

// upsertPaper writes one paper, its categories, and (when newly created)
// its author nodes in a single transaction.
func (s *Store) upsertPaper(ctx context.Context, paper PaperInput, now string) (bool, error) {
	var created bool
	err := s.withRetry(ctx, func(ctx context.Context) error {
		session := s.workSession(ctx)
		result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			cursor, err := tx.Run(ctx, upsertPaperQuery, map[string]any{
				"arxiv_id":         paper.ArxivID,
				"title":            paper.Title,
				"abstract":         paper.Abstract,
				"primary_category": paper.PrimaryCategory,
				"categories":       paper.Categories,
				"published_date":   paper.PublishedDate,
				"pdf_url":          paper.PDFURL,
				"version":          paper.Version,
				"now":              now,
			})
			if err != nil {
				return false, err
			}
			rec, err := cursor.Single(ctx)
			if err != nil {
				return false, err
			}
			isNew, _ := rec.Values[0].(bool)
			if !isNew {
				return false, nil
			}

			if _, err := tx.Run(ctx, linkCategoriesQuery, map[string]any{
				"arxiv_id":   paper.ArxivID,
				"categories": paper.Categories,
			}); err != nil {
				return false, err
			}

			authors := make([]map[string]any, len(paper.Authors))
			for i, a := range paper.Authors {
				authors[i] = map[string]any{
					"author_id":       uuid.NewString(),
					"name":            a.Name,
					"name_normalized": NormalizeName(a.Name),
					"affiliation":     a.Affiliation,
					"position":        a.Position,
				}
			}
			if _, err := tx.Run(ctx, createAuthorsQuery, map[string]any{
				"arxiv_id":       paper.ArxivID,
				"authors":        authors,
				"published_date": paper.PublishedDate,
				"now":            now,
			}); err != nil {
				return false, err
			}
			return true, nil
		})
		if err != nil {
			return err
		}
		created = result.(bool)
		return nil
	})
	return created, err
}

// EarliestPaperDate returns the oldest published_date in the graph, or ""
// when the graph holds no papers. Used to reconcile the backfill cursor.
func (s *Store) EarliestPaperDate(ctx context.Context) (string, error) {
	rows, err := s.readRows(ctx, `MATCH (p:Paper) RETURN min(p.published_date) AS earliest`, nil)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || rows[0]["earliest"] == nil {
		return "", nil
	}
	return rowString(rows[0], "earliest"), nil
}

// NormalizeName lowercases a name and collapses internal whitespace, the
// form peer lookups match on.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
