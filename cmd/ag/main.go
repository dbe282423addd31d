// Package main provides the ag CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ag",
	Short: "Incremental arXiv research-graph pipeline",
	Long: `ag builds and enriches a Neo4j graph of recent arXiv research.

Pipeline stages:
  - backfill         ingest papers day by day, newest first
  - match            assign canonical identities to author nodes
  - enrich-openalex  attach OpenAlex ids and bibliometrics
  - enrich-s2        attach Semantic Scholar author ids
  - github-stars     credit GitHub stars from abstract repo links
  - curate           editorial queries over the enriched graph

Every stage checkpoints its progress and is safe to interrupt and rerun.
All commands output JSON by default for downstream tooling.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}
