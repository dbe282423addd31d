package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matsen/arxgraph/internal/checkpoint"
	"github.com/matsen/arxgraph/internal/config"
	"github.com/matsen/arxgraph/internal/graph"
	"github.com/matsen/arxgraph/internal/logging"
	"github.com/matsen/arxgraph/internal/runlog"
)

// mustConfig loads configuration, exiting on error.
func mustConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return cfg
}

// mustLogger builds the job logger from the configured mode.
func mustLogger(cfg *config.Config) *logging.Logger {
	log, err := logging.New(cfg.LogMode)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return log
}

// signalContext returns a context cancelled on SIGINT/SIGTERM. Jobs drain
// their in-flight batch and stop cleanly on the first signal.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// mustGraph connects to the graph store, exiting when Neo4j is
// unreachable or credentials are missing.
func mustGraph(ctx context.Context, cfg *config.Config, log *logging.Logger) *graph.Store {
	if err := cfg.ValidateGraph(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	store, err := graph.New(ctx, graph.Config{
		URI:                   cfg.Neo4jURI,
		Username:              cfg.Neo4jUsername,
		Password:              cfg.Neo4jPassword,
		Database:              cfg.Neo4jDatabase,
		MaxRetries:            cfg.MaxRetries,
		ReconnectAfterBatches: cfg.ReconnectAfterBatches,
	}, log)
	if err != nil {
		exitWithError(ExitGraphError, "connecting to graph: %v", err)
	}
	return store
}

// mustCheckpoints opens the checkpoint store under the state directory.
func mustCheckpoints(cfg *config.Config) *checkpoint.Store {
	ckpts, err := checkpoint.NewStore(cfg.CheckpointDir())
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	return ckpts
}

// recordRun appends the finished run to the SQLite ledger. Ledger
// failures are logged but never fail the job that just did real work.
func recordRun(cfg *config.Config, log *logging.Logger, job string, started time.Time, runErr error, stats map[string]int) {
	db, err := runlog.Open(cfg.RunLogPath())
	if err != nil {
		log.Warn("run ledger unavailable", "error", err)
		return
	}
	defer db.Close()

	run := runlog.Run{
		Job:        job,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		OK:         runErr == nil,
		Stats:      stats,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := db.Append(run); err != nil {
		log.Warn("recording run failed", "error", err)
	}
}

// parseDateFlag parses a required yyyy-mm-dd flag.
func parseDateFlag(name, value string) time.Time {
	t, err := config.ParseDate(value)
	if err != nil {
		exitWithError(ExitConfigError, "--%s: %v", name, err)
	}
	return t
}
