package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Create an example hammer file",
	Long: `Create an example hammer.toml in the given directory (default: the
current directory) showing the main configuration features: shared
cookies and headers, a resources table with a derived request, and a
hammer endpoint list.

Examples:
  hammer init
  hammer init loadtests --force`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	},
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing hammer.toml")
}

const exampleConfig = `# Shared cookies and headers are merged into every endpoint below.
# An endpoint entry with the same name wins; an empty table {} removes
# the inherited entry.
[headers]
accept = "application/json"

# Resources are resolved once per run, on first use. A table resource
# issues a request and can extract a value from its JSON body.
[resources]
greeting = "hello"

[resources.token]
uri = "http://localhost:8080/login"
method = "POST"
body = '{"user": "admin", "password": "hunter2"}'
format = "Bearer {}"

[resources.token.extract]
format = "json"
pointer = "/token"

# The hammer list runs in order; each endpoint receives exactly "count"
# requests, raced by --tasks concurrent workers.
[[hammer]]
uri = "http://localhost:8080/status"
count = 100

[[hammer]]
name = "authenticated lookup"
uri = "http://localhost:8080/lookup"
method = "POST"
body = "${resources.greeting}"
count = 1000
max_concurrency = 16

[hammer.headers]
authorization = "${resources.token}"
`

func initCommand(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, "hammer.toml")
	if !forceInit {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s (use --force to overwrite)", path)
		}
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", path)
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hammer %s' to send it.\n", path)

	return nil
}
