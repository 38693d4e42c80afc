package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hammer/packages/config"
)

var checkCmd = &cobra.Command{
	Use:   "check <config>...",
	Short: "Validate hammer files without sending requests",
	Long: `Validate hammer files against the config schema and the expression
rules without sending any requests.

Examples:
  hammer check endpoints.toml
  hammer check staging.toml production.yaml`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	},
	RunE: checkCommand,
}

var errValidationFailed = errors.New("validation failed")

func checkCommand(cmd *cobra.Command, args []string) error {
	hasErrors := false
	for _, file := range args {
		if err := config.Check(file); err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return errValidationFailed
	}

	return nil
}
