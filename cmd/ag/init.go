package main

import (
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create graph constraints and indexes",
	Long: `Create the uniqueness constraints and indexes the pipeline relies on.

Safe to run repeatedly; existing constraints are left alone.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := mustConfig()
	log := mustLogger(cfg)
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	store := mustGraph(ctx, cfg, log)
	defer store.Close(ctx)

	if err := store.EnsureSchema(ctx); err != nil {
		exitWithError(ExitGraphError, "creating schema: %v", err)
	}

	if humanOutput {
		outputHuman("Schema ready.\n")
		return nil
	}
	return outputJSON(StatusResponse{Status: "ok", Detail: "schema ready"})
}
