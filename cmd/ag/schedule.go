package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/matsen/arxgraph/internal/arxiv"
	"github.com/matsen/arxgraph/internal/config"
	"github.com/matsen/arxgraph/internal/enrich"
	"github.com/matsen/arxgraph/internal/github"
	"github.com/matsen/arxgraph/internal/graph"
	"github.com/matsen/arxgraph/internal/identity"
	"github.com/matsen/arxgraph/internal/ingest"
	"github.com/matsen/arxgraph/internal/logging"
	"github.com/matsen/arxgraph/internal/openalex"
	"github.com/matsen/arxgraph/internal/ratelimit"
	"github.com/matsen/arxgraph/internal/s2"
)

var (
	scheduleCronFlag     string
	scheduleLookbackFlag int
	scheduleLimitFlag    int
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline stages on a cron expression",
	Long: `Run backfill, match, enrich-openalex, enrich-s2, and github-stars in
order on every cron tick, anchored at yesterday. Blocks until
interrupted. A stage failure is logged and recorded in the run ledger;
later stages still run so one flaky API does not stall the rest.`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleCronFlag, "cron", "0 3 * * *", "Cron expression for pipeline ticks")
	scheduleCmd.Flags().IntVar(&scheduleLookbackFlag, "lookback-days", 7, "Backfill lookback window per tick")
	scheduleCmd.Flags().IntVar(&scheduleLimitFlag, "limit", 1000, "Backfill paper budget per tick")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg := mustConfig()
	log := mustLogger(cfg)
	defer log.Sync()

	if err := cfg.ValidateGraph(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if err := cfg.ValidateOpenAlex(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	c := cron.New()
	if _, err := c.AddFunc(scheduleCronFlag, func() { pipelineTick(ctx, cfg, log) }); err != nil {
		exitWithError(ExitConfigError, "invalid cron expression %q: %v", scheduleCronFlag, err)
	}

	log.Info("scheduler started", "cron", scheduleCronFlag,
		"lookback_days", scheduleLookbackFlag, "limit", scheduleLimitFlag)
	c.Start()
	<-ctx.Done()
	log.Info("scheduler stopping, waiting for running tick")
	<-c.Stop().Done()
	return nil
}

// pipelineTick runs all stages once. Stage errors are recorded but do
// not stop the later stages.
func pipelineTick(ctx context.Context, cfg *config.Config, log *logging.Logger) {
	store, err := graph.New(ctx, graph.Config{
		URI:                   cfg.Neo4jURI,
		Username:              cfg.Neo4jUsername,
		Password:              cfg.Neo4jPassword,
		Database:              cfg.Neo4jDatabase,
		MaxRetries:            cfg.MaxRetries,
		ReconnectAfterBatches: cfg.ReconnectAfterBatches,
	}, log)
	if err != nil {
		// The graph may come back before the next tick; do not kill the
		// scheduler over it.
		log.Error("tick skipped, graph unreachable", "error", err)
		return
	}
	defer store.Close(ctx)
	ckpts := mustCheckpoints(cfg)

	anchor := time.Now().UTC().AddDate(0, 0, -1)
	windowStart := anchor.AddDate(0, 0, -scheduleLookbackFlag+1)

	{
		started := time.Now().UTC()
		backfiller := ingest.New(arxiv.NewClient(ratelimit.ForArxiv()), store, ckpts, log, ingest.Options{
			AnchorDate:   anchor,
			LookbackDays: scheduleLookbackFlag,
			Limit:        scheduleLimitFlag,
			// A fresh day means a fresh window; the completed latch from
			// yesterday's tick must not make today a no-op.
			Reset: true,
		})
		res, err := backfiller.Run(ctx)
		recordRun(cfg, log, ingest.JobID, started, err, map[string]int{
			"papers_fetched": res.PapersFetched,
			"papers_created": res.PapersCreated,
		})
		if err != nil {
			log.Error("scheduled backfill failed", "error", err)
		}
	}

	{
		started := time.Now().UTC()
		stats, err := identity.New(store, log).Run(ctx, identity.Options{})
		recordRun(cfg, log, "match", started, err, map[string]int{
			"processed": stats.Processed,
			"adopted":   stats.Adopted,
		})
		if err != nil {
			log.Error("scheduled match failed", "error", err)
		}
	}

	{
		started := time.Now().UTC()
		api := openalex.NewClient(ratelimit.ForOpenAlex(), cfg.OpenAlexEmail)
		stats, err := enrich.NewOpenAlexEnricher(store, api, ckpts, log).Run(ctx, enrich.OpenAlexOptions{
			FromDate:     windowStart.Format("2006-01-02"),
			ToDate:       anchor.Format("2006-01-02"),
			SaveInterval: cfg.CheckpointSaveInterval,
		})
		recordRun(cfg, log, enrich.OpenAlexJobID, started, err, map[string]int{
			"papers_processed": stats.PapersProcessed,
			"authors_updated":  stats.AuthorsUpdated,
		})
		if err != nil {
			log.Error("scheduled openalex enrichment failed", "error", err)
		}
	}

	{
		started := time.Now().UTC()
		api := s2.NewClient(ratelimit.ForS2(), cfg.S2APIToken)
		stats, err := enrich.NewS2Enricher(store, api, ckpts, log).Run(ctx, enrich.S2Options{
			SaveInterval: cfg.CheckpointSaveInterval,
		})
		recordRun(cfg, log, enrich.S2JobID, started, err, map[string]int{
			"papers_processed": stats.PapersProcessed,
			"authors_attached": stats.AuthorsAttached,
		})
		if err != nil {
			log.Error("scheduled s2 enrichment failed", "error", err)
		}
	}

	{
		started := time.Now().UTC()
		api := github.NewClient(ratelimit.ForGitHub(), cfg.GitHubToken)
		stats, err := enrich.NewGithubEnricher(store, api, log).Run(ctx, enrich.GithubOptions{
			FromDate: windowStart.Format("2006-01-02"),
			ToDate:   anchor.Format("2006-01-02"),
		})
		recordRun(cfg, log, "github-stars", started, err, map[string]int{
			"papers_scanned": stats.PapersScanned,
			"stars_credited": stats.StarsCredited,
		})
		if err != nil {
			log.Error("scheduled star credit failed", "error", err)
		}
	}
}
