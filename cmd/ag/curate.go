package main

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/arxgraph/internal/curate"
)

var (
	curateStartFlag string
	curateEndFlag   string
	curateDateFlag  string
)

var curateCmd = &cobra.Command{
	Use:   "curate",
	Short: "Editorial queries over the enriched graph",
	Long: `Answer the questions a research-digest curator asks: which categories
are trending, who published unusually much today, whose output is
accelerating, and which papers span several institutions.

Window commands (trending, rising) compare the recent half of
[--start-date, --end-date] against the earlier half. Date commands
(productive, collaborations) look at a single publication date.`,
}

func init() {
	curateCmd.PersistentFlags().StringVar(&curateStartFlag, "start-date", "", "Window start yyyy-mm-dd")
	curateCmd.PersistentFlags().StringVar(&curateEndFlag, "end-date", "", "Window end yyyy-mm-dd")
	curateCmd.PersistentFlags().StringVar(&curateDateFlag, "date", "", "Publication date yyyy-mm-dd (default: yesterday)")

	curateCmd.AddCommand(curateTrendingCmd)
	curateCmd.AddCommand(curateProductiveCmd)
	curateCmd.AddCommand(curateRisingCmd)
	curateCmd.AddCommand(curateCollabCmd)
	rootCmd.AddCommand(curateCmd)
}

// runCurate handles the shared plumbing for all curate subcommands.
func runCurate(query func(ctx context.Context, svc *curate.Service) error) error {
	cfg := mustConfig()
	log := mustLogger(cfg)
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	store := mustGraph(ctx, cfg, log)
	defer store.Close(ctx)

	return query(ctx, curate.NewService(store, log))
}

func curateWindow() (time.Time, time.Time) {
	if curateStartFlag == "" || curateEndFlag == "" {
		exitWithError(ExitConfigError, "--start-date and --end-date are required")
	}
	start := parseDateFlag("start-date", curateStartFlag)
	end := parseDateFlag("end-date", curateEndFlag)
	if end.Before(start) {
		exitWithError(ExitConfigError, "--end-date is before --start-date")
	}
	return start, end
}

func curateDate() time.Time {
	if curateDateFlag == "" {
		return time.Now().UTC().AddDate(0, 0, -1)
	}
	return parseDateFlag("date", curateDateFlag)
}

var curateTrendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Categories growing fastest across the window",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCurate(func(ctx context.Context, svc *curate.Service) error {
			start, end := curateWindow()
			rows, err := svc.TrendingCategories(ctx, start, end)
			if err != nil {
				exitWithError(ExitGraphError, "trending: %v", err)
			}
			if humanOutput {
				for _, r := range rows {
					if r.EarlierCount == 0 {
						outputHuman("%-12s %4d -> %4d  (new)\n", r.Name, r.EarlierCount, r.RecentCount)
					} else {
						outputHuman("%-12s %4d -> %4d  (%.2fx)\n", r.Name, r.EarlierCount, r.RecentCount, r.GrowthRatio)
					}
				}
				return nil
			}
			return outputJSON(rows)
		})
	},
}

var curateProductiveCmd = &cobra.Command{
	Use:   "productive",
	Short: "Authors with several papers on one date",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCurate(func(ctx context.Context, svc *curate.Service) error {
			rows, err := svc.ProductiveAuthors(ctx, curateDate())
			if err != nil {
				exitWithError(ExitGraphError, "productive: %v", err)
			}
			if humanOutput {
				for _, r := range rows {
					outputHuman("%s (%d papers)\n", r.Name, r.PaperCount)
					for _, title := range r.Titles {
						outputHuman("  - %s\n", title)
					}
				}
				return nil
			}
			return outputJSON(rows)
		})
	},
}

var curateRisingCmd = &cobra.Command{
	Use:   "rising",
	Short: "Authors whose output is accelerating across the window",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCurate(func(ctx context.Context, svc *curate.Service) error {
			start, end := curateWindow()
			rows, err := svc.RisingAuthors(ctx, start, end)
			if err != nil {
				exitWithError(ExitGraphError, "rising: %v", err)
			}
			if humanOutput {
				for _, r := range rows {
					outputHuman("%s: %d -> %d (%.2fx)\n",
						r.Name, r.EarlierCount, r.RecentCount, r.GrowthRatio)
				}
				return nil
			}
			return outputJSON(rows)
		})
	},
}

var curateCollabCmd = &cobra.Command{
	Use:   "collaborations",
	Short: "Papers spanning several institutions on one date",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCurate(func(ctx context.Context, svc *curate.Service) error {
			rows, err := svc.Collaborations(ctx, curateDate())
			if err != nil {
				exitWithError(ExitGraphError, "collaborations: %v", err)
			}
			if humanOutput {
				for _, r := range rows {
					outputHuman("%s  %s\n  %s\n", r.ArxivID, r.Title, strings.Join(r.Affiliations, "; "))
				}
				return nil
			}
			return outputJSON(rows)
		})
	},
}
