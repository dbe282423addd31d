// Package graph is the Neo4j adapter for the research graph. All queries
// are parameter-bound; no identifier is ever interpolated into query text.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/matsen/arxgraph/internal/logging"
)

// Config holds the Neo4j connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string

	// MaxRetries bounds retries of a single operation on transient
	// driver failures.
	MaxRetries int

	// ReconnectAfterBatches refreshes the session after this many batch
	// operations to avoid idle-timeout errors on long runs.
	ReconnectAfterBatches int
}

// Store wraps Neo4j operations for the pipeline.
type Store struct {
	driver  neo4j.DriverWithContext
	cfg     Config
	log     *logging.Logger
	batches int
	session neo4j.SessionWithContext
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, cfg Config, log *logging.Logger) (*Store, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.ReconnectAfterBatches <= 0 {
		cfg.ReconnectAfterBatches = 100
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}

	return &Store{
		driver: driver,
		cfg:    cfg,
		log:    log.With("component", "graph"),
	}, nil
}

// Close releases the driver and any open session.
func (s *Store) Close(ctx context.Context) error {
	if s.session != nil {
		_ = s.session.Close(ctx)
		s.session = nil
	}
	if s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	return err
}

// IsConstraintError reports whether err is a schema or constraint
// violation. Such errors are fatal to one record but not to the batch.
func IsConstraintError(err error) bool {
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return strings.HasPrefix(neoErr.Code, "Neo.ClientError.Schema")
	}
	return false
}

// isTransient reports whether err warrants a reconnect-and-retry.
func isTransient(err error) bool {
	if neo4j.IsRetryable(err) {
		return true
	}
	var usageErr *neo4j.UsageError
	if errors.As(err, &usageErr) {
		return false
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return strings.Contains(neoErr.Code, "SessionExpired") ||
			strings.Contains(neoErr.Code, "ServiceUnavailable") ||
			strings.Contains(neoErr.Code, "TransientError")
	}
	return false
}

// reconnect tears down the driver and builds a fresh one.
func (s *Store) reconnect(ctx context.Context) error {
	if s.session != nil {
		_ = s.session.Close(ctx)
		s.session = nil
	}
	if s.driver != nil {
		_ = s.driver.Close(ctx)
	}
	driver, err := neo4j.NewDriverWithContext(s.cfg.URI, neo4j.BasicAuth(s.cfg.Username, s.cfg.Password, ""))
	if err != nil {
		return fmt.Errorf("recreating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return fmt.Errorf("reconnecting to neo4j: %w", err)
	}
	s.driver = driver
	return nil
}

// workSession returns the current long-lived session, refreshing it every
// ReconnectAfterBatches batches.
func (s *Store) workSession(ctx context.Context) neo4j.SessionWithContext {
	s.batches++
	if s.session != nil && s.batches%s.cfg.ReconnectAfterBatches == 0 {
		_ = s.session.Close(ctx)
		s.session = nil
	}
	if s.session == nil {
		s.session = s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.cfg.Database})
	}
	return s.session
}

// withRetry runs op, reconnecting and retrying on transient driver
// failures with bounded exponential backoff.
func (s *Store) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * time.Second
			s.log.Warn("retrying graph operation", "attempt", attempt, "delay", delay, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			if rerr := s.reconnect(ctx); rerr != nil {
				err = rerr
				continue
			}
		}
		err = op(ctx)
		if err == nil || !isTransient(err) {
			return err
		}
	}
	return fmt.Errorf("graph operation failed after %d retries: %w", s.cfg.MaxRetries, err)
}

// write runs one auto-commit write query in a managed transaction.
func (s *Store) write(ctx context.Context, query string, params map[string]any) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		session := s.workSession(ctx)
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, params)
			return nil, err
		})
		return err
	})
}

// readRows runs a read query and returns each record as a key/value map.
func (s *Store) readRows(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	var rows []map[string]any
	err := s.withRetry(ctx, func(ctx context.Context) error {
		session := s.workSession(ctx)
		result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			cursor, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
			var out []map[string]any
			for cursor.Next(ctx) {
				rec := cursor.Record()
				row := make(map[string]any, len(rec.Keys))
				for i, key := range rec.Keys {
					row[key] = rec.Values[i]
				}
				out = append(out, row)
			}
			return out, cursor.Err()
		})
		if err != nil {
			return err
		}
		rows = result.([]map[string]any)
		return nil
	})
	return rows, err
}

// Helpers for pulling typed values out of readRows results.

func rowString(row map[string]any, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

func rowInt(row map[string]any, key string) int {
	switch v := row[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func rowStrings(row map[string]any, key string) []string {
	raw, ok := row[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func rowTime(row map[string]any, key string) time.Time {
	if v, ok := row[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}
