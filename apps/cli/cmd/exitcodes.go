package cmd

// Exit codes for hammer CLI
const (
	// ExitSuccess indicates every endpoint completed its budget
	ExitSuccess = 0

	// ExitHammerFailure indicates a failed request or a runtime error
	ExitHammerFailure = 1

	// ExitConfigError indicates the config file could not be loaded
	ExitConfigError = 2

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
