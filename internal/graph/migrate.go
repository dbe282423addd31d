package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// MigrationStats summarises a legacy author split.
type MigrationStats struct {
	SharedNodes     int
	NodesCreated    int
	EdgesRedirected int
	OrphansDeleted  int
}

// sharedAuthorsQuery finds legacy name-merged author nodes: nodes holding
// more than one AUTHORED edge. Under the one-node-per-authorship model no
// such node should exist.
const sharedAuthorsQuery = `
MATCH (a:Author)-[r:AUTHORED]->(:Paper)
WITH a, count(r) AS edges
WHERE edges > 1
RETURN a.author_id AS author_id, edges AS edges
`

// splitAuthorQuery redirects every AUTHORED edge but the first off a
// shared node onto a freshly created per-authorship clone.
const splitAuthorQuery = `
MATCH (a:Author {author_id: $author_id})-[r:AUTHORED]->(p:Paper)
WITH a, r, p ORDER BY p.arxiv_id
SKIP 1
WITH a, collect({rel: r, paper: p}) AS extras
UNWIND range(0, size(extras) - 1) AS i
WITH a, extras[i].rel AS r, extras[i].paper AS p, $new_ids[i] AS new_id
CREATE (clone:Author {
	author_id: new_id,
	name: a.name,
	name_normalized: a.name_normalized,
	affiliation: a.affiliation,
	first_seen: p.published_date,
	last_seen: p.published_date,
	created_at: a.created_at
})
CREATE (clone)-[:AUTHORED {position: r.position, created_at: r.created_at, last_updated: r.last_updated}]->(p)
DELETE r
RETURN count(*) AS redirected
`

// deleteOrphansQuery removes author nodes left with no AUTHORED edge.
// Runs only after every edge has been redirected.
const deleteOrphansQuery = `
MATCH (a:Author)
WHERE NOT (a)-[:AUTHORED]->(:Paper)
DETACH DELETE a
RETURN count(a) AS deleted
`

// MigrateLegacyAuthors converts name-merged author nodes into
// one-per-authorship nodes. Orphans are deleted only after all edges have
// been redirected.
func (s *Store) MigrateLegacyAuthors(ctx context.Context) (MigrationStats, error) {
	var stats MigrationStats

	rows, err := s.readRows(ctx, sharedAuthorsQuery, nil)
	if err != nil {
		return stats, fmt.Errorf("finding shared author nodes: %w", err)
	}
	stats.SharedNodes = len(rows)

	for _, row := range rows {
		authorID := rowString(row, "author_id")
		extras := rowInt(row, "edges") - 1
		redirected, err := s.splitAuthor(ctx, authorID, extras)
		if err != nil {
			return stats, fmt.Errorf("splitting author %s: %w", authorID, err)
		}
		stats.EdgesRedirected += redirected
		stats.NodesCreated += redirected
	}

	deleted, err := s.deleteOrphans(ctx)
	if err != nil {
		return stats, fmt.Errorf("deleting orphans: %w", err)
	}
	stats.OrphansDeleted = deleted

	return stats, nil
}

// mintAuthorIDs pre-mints n fresh author ids for the split query to
// consume, one per redirected edge.
func mintAuthorIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	return ids
}

func (s *Store) splitAuthor(ctx context.Context, authorID string, extras int) (int, error) {
	if extras <= 0 {
		return 0, nil
	}
	newIDs := mintAuthorIDs(extras)

	var redirected int
	err := s.withRetry(ctx, func(ctx context.Context) error {
		session := s.workSession(ctx)
		result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			cursor, err := tx.Run(ctx, splitAuthorQuery, map[string]any{
				"author_id": authorID,
				"new_ids":   newIDs,
			})
			if err != nil {
				return 0, err
			}
			rec, err := cursor.Single(ctx)
			if err != nil {
				// No extra edges left on this node.
				return 0, nil
			}
			n, _ := rec.Values[0].(int64)
			return int(n), nil
		})
		if err != nil {
			return err
		}
		redirected = result.(int)
		return nil
	})
	return redirected, err
}

func (s *Store) deleteOrphans(ctx context.Context) (int, error) {
	var deleted int
	err := s.withRetry(ctx, func(ctx context.Context) error {
		session := s.workSession(ctx)
		result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			cursor, err := tx.Run(ctx, deleteOrphansQuery, nil)
			if err != nil {
				return 0, err
			}
			rec, err := cursor.Single(ctx)
			if err != nil {
				return 0, nil
			}
			n, _ := rec.Values[0].(int64)
			return int(n), nil
		})
		if err != nil {
			return err
		}
		deleted = result.(int)
		return nil
	})
	return deleted, err
}
