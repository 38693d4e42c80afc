package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "hammer [flags] <config>",
	Short: "Hammer HTTP endpoints and report latency statistics",
	Long: `hammer sends a fixed number of concurrent requests to every endpoint
declared in a TOML or YAML file and reports latency statistics for
each one.

Endpoints run in order. Request values can be spliced in from a shared
resources table with ${resources.name}, including values obtained from
other HTTP responses, so authenticated flows need a single login no
matter how many requests the run sends.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(1)(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	},
	RunE:          runCommand,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(handleError(os.Stderr, err))
	}
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}
