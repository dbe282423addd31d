package main

import (
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint state for each pipeline job",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// JobStatus is one job's checkpoint in the status listing.
type JobStatus struct {
	Job         string         `json:"job"`
	Direction   string         `json:"direction,omitempty"`
	AnchorDate  string         `json:"anchor_date,omitempty"`
	LastEndDate string         `json:"last_end_date,omitempty"`
	CurrentDate string         `json:"current_date,omitempty"`
	Completed   bool           `json:"completed"`
	Stats       map[string]int `json:"stats,omitempty"`
	LastSavedAt time.Time      `json:"last_saved_at"`
	Age         string         `json:"age"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := mustConfig()
	log := mustLogger(cfg)
	defer log.Sync()

	ckpts := mustCheckpoints(cfg)
	jobs, err := ckpts.List()
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	statuses := make([]JobStatus, 0, len(jobs))
	for _, job := range jobs {
		rec, ok, err := ckpts.Load(job)
		if err != nil || !ok {
			continue
		}
		statuses = append(statuses, JobStatus{
			Job:         rec.JobID,
			Direction:   rec.Direction,
			AnchorDate:  rec.Cursor.AnchorDate,
			LastEndDate: rec.Cursor.LastEndDate,
			CurrentDate: rec.Cursor.CurrentDate,
			Completed:   rec.Cursor.Completed,
			Stats:       rec.Stats,
			LastSavedAt: rec.LastSavedAt,
			Age:         formatDuration(time.Since(rec.LastSavedAt)),
		})
	}

	if humanOutput {
		if len(statuses) == 0 {
			outputHuman("No checkpoints. Nothing has run yet, or every job finished.\n")
			return nil
		}
		for _, s := range statuses {
			state := "in progress"
			if s.Completed {
				state = "complete"
			}
			outputHuman("%-18s %-12s saved %s ago\n", s.Job, state, s.Age)
			if s.AnchorDate != "" {
				outputHuman("  anchor %s  last_end %s\n", s.AnchorDate, s.LastEndDate)
			}
			if s.CurrentDate != "" {
				outputHuman("  cursor %s (%s)\n", s.CurrentDate, s.Direction)
			}
		}
		return nil
	}
	return outputJSON(statuses)
}
