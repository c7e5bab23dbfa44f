package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "grove",
	Short: "Personal knowledge capture with proactive resurfacing",
	Long:  "Grove captures notes into a local object graph and nudges you to revisit, connect, and triage them. Single Go binary, local SQLite store.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(nudgeCmd)
	rootCmd.AddCommand(resurfaceCmd)
}
