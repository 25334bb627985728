package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "planora",
	Short: "Personal task planner with model-assisted scheduling",
	Long: `Planora is a personal task manager whose planner breaks tasks down
into time-boxed subtasks and finds open slots in your day.

Tasks, subtasks, and reminders are stored in a local SQLite database and
served over a small JSON API. Breakdown and scheduling use the Anthropic
API when a key is configured; without one, everything still works except
the automatic planning.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
