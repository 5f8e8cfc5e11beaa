package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "import-service",
	Short: "Staged regatta schedule import",
	Long: "import-service stages extracted regatta schedules, serves the admin\n" +
		"review screens and commits the reviewed regattas into the catalog.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(stageCmd)
	rootCmd.Version = version
}
