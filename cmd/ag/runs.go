package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/arxgraph/internal/runlog"
)

var (
	runsJobFlag   string
	runsLimitFlag int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs from the local ledger",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsJobFlag, "job", "", "Only show runs of this job")
	runsCmd.Flags().IntVar(&runsLimitFlag, "limit", 20, "Max runs to show")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg := mustConfig()
	log := mustLogger(cfg)
	defer log.Sync()

	db, err := runlog.Open(cfg.RunLogPath())
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	defer db.Close()

	runs, err := db.Recent(runsJobFlag, runsLimitFlag)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		if len(runs) == 0 {
			outputHuman("No runs recorded.\n")
			return nil
		}
		for _, r := range runs {
			outcome := "ok"
			if !r.OK {
				outcome = "FAILED: " + r.Error
			}
			outputHuman("%s  %-18s %-8s %s\n",
				r.StartedAt.Format("2006-01-02 15:04"),
				r.Job,
				formatDuration(r.FinishedAt.Sub(r.StartedAt)),
				outcome)
		}
		return nil
	}
	return outputJSON(runs)
}
