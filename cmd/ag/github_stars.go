package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/arxgraph/internal/enrich"
	"github.com/matsen/arxgraph/internal/github"
	"github.com/matsen/arxgraph/internal/ratelimit"
)

var (
	ghFromFlag  string
	ghToFlag    string
	ghLimitFlag int
)

var githubStarsCmd = &cobra.Command{
	Use:   "github-stars",
	Short: "Credit GitHub stars to authors of papers referencing a repo",
	Long: `Scan paper abstracts in the window for GitHub repository links, fetch
each referenced repo's star count, and add it to every author of the
paper. Repo lookups are cached for the run, and a GITHUB_API_TOKEN
raises the rate allowance.`,
	RunE: runGithubStars,
}

func init() {
	githubStarsCmd.Flags().StringVar(&ghFromFlag, "start-date", "", "Window start yyyy-mm-dd (required)")
	githubStarsCmd.Flags().StringVar(&ghToFlag, "end-date", "", "Window end yyyy-mm-dd (required)")
	githubStarsCmd.Flags().IntVar(&ghLimitFlag, "limit", 0, "Max papers to scan (0 = no cap)")
	githubStarsCmd.MarkFlagRequired("start-date")
	githubStarsCmd.MarkFlagRequired("end-date")
	rootCmd.AddCommand(githubStarsCmd)
}

func runGithubStars(cmd *cobra.Command, args []string) error {
	cfg := mustConfig()
	log := mustLogger(cfg)
	defer log.Sync()

	from := parseDateFlag("start-date", ghFromFlag)
	to := parseDateFlag("end-date", ghToFlag)

	ctx, cancel := signalContext()
	defer cancel()

	store := mustGraph(ctx, cfg, log)
	defer store.Close(ctx)

	api := github.NewClient(ratelimit.ForGitHub(), cfg.GitHubToken)
	enricher := enrich.NewGithubEnricher(store, api, log)

	started := time.Now().UTC()
	stats, err := enricher.Run(ctx, enrich.GithubOptions{
		FromDate: from.Format("2006-01-02"),
		ToDate:   to.Format("2006-01-02"),
		Limit:    ghLimitFlag,
	})
	recordRun(cfg, log, "github-stars", started, err, map[string]int{
		"papers_scanned": stats.PapersScanned,
		"stars_credited": stats.StarsCredited,
	})
	if err != nil {
		exitWithError(ExitAPIError, "github-stars: %v", err)
	}

	if humanOutput {
		outputHuman("Scanned %d papers (%d with repos): %d repos fetched, %d stars credited\n",
			stats.PapersScanned, stats.PapersWithRepo, stats.ReposFetched, stats.StarsCredited)
		return nil
	}
	return outputJSON(stats)
}
