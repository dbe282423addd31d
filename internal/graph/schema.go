package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// schemaStatements create the uniqueness constraints and indexes the
// pipeline relies on. All are idempotent.
var schemaStatements = []string{
	"CREATE CONSTRAINT paper_arxiv_id IF NOT EXISTS FOR (p:Paper) REQUIRE p.arxiv_id IS UNIQUE",
	"CREATE CONSTRAINT author_id IF NOT EXISTS FOR (a:Author) REQUIRE a.author_id IS UNIQUE",
	"CREATE CONSTRAINT category_name IF NOT EXISTS FOR (c:Category) REQUIRE c.name IS UNIQUE",
	"CREATE INDEX paper_published IF NOT EXISTS FOR (p:Paper) ON (p.published_date)",
	"CREATE INDEX author_name IF NOT EXISTS FOR (a:Author) ON (a.name_normalized)",
	"CREATE INDEX author_canonical IF NOT EXISTS FOR (a:Author) ON (a.canonical_id)",
	"CREATE INDEX author_created IF NOT EXISTS FOR (a:Author) ON (a.created_at)",
}

// EnsureSchema creates the constraints and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.cfg.Database})
	defer session.Close(ctx)

	for _, stmt := range schemaStatements {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, stmt, nil)
			return nil, err
		})
		if err != nil {
			return fmt.Errorf("applying schema statement: %w", err)
		}
	}
	return nil
}
