// Package config handles pipeline configuration from the environment
// and the optional global config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration for the pipeline jobs.
//
// Values are read from the environment (a .env file is loaded first if
// present), with the global config file filling in any credential left
// unset. Neo4j credentials are required; enrichment credentials are
// validated by the jobs that need them.
type Config struct {
	Neo4jURI      string `envconfig:"NEO4J_URI"`
	Neo4jUsername string `envconfig:"NEO4J_USERNAME" default:"neo4j"`
	Neo4jPassword string `envconfig:"NEO4J_PASSWORD"`
	Neo4jDatabase string `envconfig:"NEO4J_DATABASE" default:"neo4j"`

	OpenAlexEmail string `envconfig:"OPENALEX_EMAIL"`
	S2APIToken    string `envconfig:"SEMANTIC_SCHOLAR_API_TOKEN"`
	GitHubToken   string `envconfig:"GITHUB_API_TOKEN"`

	// StateDir holds checkpoints and the run ledger.
	StateDir string `envconfig:"ARXGRAPH_STATE_DIR"`

	// ReconnectAfterBatches refreshes the graph session after this many
	// batches to avoid idle-timeout errors on long runs.
	ReconnectAfterBatches int `envconfig:"RECONNECT_AFTER_BATCHES" default:"100"`

	// CheckpointSaveInterval is how many batches pass between checkpoint
	// saves in the enrichment loops.
	CheckpointSaveInterval int `envconfig:"CHECKPOINT_SAVE_INTERVAL" default:"100"`

	// MaxRetries bounds retries for a single graph or HTTP operation.
	MaxRetries int `envconfig:"MAX_RETRIES" default:"3"`

	LogMode string `envconfig:"LOG_MODE" default:"dev"`
}

// Load reads configuration from .env (if present), the environment, and
// the global config file, in increasing order of precedence for the
// environment over the file.
func Load() (*Config, error) {
	// Ignore a missing .env; it is a development convenience only.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	global, err := LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	cfg.applyGlobal(global)

	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir()
	}

	return &cfg, nil
}

// applyGlobal fills credentials from the global config file where the
// environment left them empty.
func (c *Config) applyGlobal(g *GlobalConfig) {
	if c.OpenAlexEmail == "" {
		c.OpenAlexEmail = g.OpenAlexEmail
	}
	if c.S2APIToken == "" {
		c.S2APIToken = g.S2APIToken
	}
	if c.GitHubToken == "" {
		c.GitHubToken = g.GitHubToken
	}
}

// ValidateGraph checks that the graph-store connection is configured.
// Jobs that touch Neo4j call this at startup and fail fast on error.
func (c *Config) ValidateGraph() error {
	if c.Neo4jURI == "" {
		return fmt.Errorf("NEO4J_URI is not set")
	}
	if c.Neo4jPassword == "" {
		return fmt.Errorf("NEO4J_PASSWORD is not set")
	}
	return nil
}

// ValidateOpenAlex checks that the polite-pool contact email is set.
func (c *Config) ValidateOpenAlex() error {
	if c.OpenAlexEmail == "" {
		return fmt.Errorf("OPENALEX_EMAIL is not set (required for the polite pool)")
	}
	return nil
}

// CheckpointDir returns the directory holding per-job checkpoint files.
func (c *Config) CheckpointDir() string {
	return filepath.Join(c.StateDir, "checkpoints")
}

// RunLogPath returns the path of the SQLite run ledger.
func (c *Config) RunLogPath() string {
	return filepath.Join(c.StateDir, "runs.db")
}

// defaultStateDir returns the XDG state directory for arxgraph.
func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "arxgraph")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".arxgraph"
	}
	return filepath.Join(home, ".local", "state", "arxgraph")
}

// ParseDate parses a CLI date flag in yyyy-mm-dd form.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want yyyy-mm-dd)", s)
	}
	return t, nil
}
