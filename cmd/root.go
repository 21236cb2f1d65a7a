package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kestrelsec/kestrel/logging"
)

// cmdLogger is the logger used by the command package.
var cmdLogger = logging.GlobalLogger.NewSubLogger("module", "cmd")

// rootCmd is the root command for the kestrel CLI.
var rootCmd = &cobra.Command{
	Use:   "kestrel",
	Short: "Inspection tooling for the kestrel path exploration core",
	Long:  "kestrel provides inspection tooling for path trace archives produced by the kestrel path exploration core",
}

// Execute parses and runs the CLI.
func Execute() error {
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}
