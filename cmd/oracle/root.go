package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Oracle - fantasy football draft-assistant relay",
	Long: `Oracle relays draft-assistant requests to a hosted conversational AI
service and returns the answers to front ends.

It provides:
  - Buffered and live pass-through answer delivery
  - Payload slimming with per-action prompt shaping
  - Roster-backed payload enrichment
  - Session transcripts with SQLite archiving`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
