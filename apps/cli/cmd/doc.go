// Package cmd implements the hammer CLI commands using Cobra.
//
// Available commands:
//   - hammer (root): Hammer every endpoint declared in a config file
//   - check: Validate config files without sending requests
//   - init: Create an example hammer file
//   - completion: Generate shell completion scripts
//   - version: Show hammer version information
//
// The root command exits non-zero when any endpoint fails, making it
// usable from CI pipelines and shell scripts.
package cmd
