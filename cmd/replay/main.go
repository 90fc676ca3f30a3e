package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.3.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "replay",
		Short: "Record-and-replay tooling for deterministic simulation traces",
		Long: `replay inspects, verifies and archives simulation traces.

Traces are line-delimited JSON record streams produced by the recorder.
Verification re-executes a trace against a content pack and compares the
end-state checksum against the recorded one.`,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInspectCmd(),
		newVerifyCmd(),
		newSelftestCmd(),
		newArchiveCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("replay version %s\n", version)
		},
	}
}
