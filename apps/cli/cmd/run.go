package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hammer/packages/config"
	"github.com/abdul-hamid-achik/hammer/packages/hammer"
	"github.com/abdul-hamid-achik/hammer/packages/httpclient"
)

var (
	tasksFlag    uint64
	timeoutFlag  time.Duration
	verboseFlag  int // 0=off, 1=-v, 2=-vv
	noColorFlag  bool
	insecureFlag bool
)

func init() {
	rootCmd.Flags().Uint64VarP(&tasksFlag, "tasks", "t", getEnvUint("HAMMER_TASKS", 1), "Number of concurrent tasks per endpoint (env: HAMMER_TASKS)")
	rootCmd.Flags().DurationVar(&timeoutFlag, "timeout", getEnvDuration("HAMMER_TIMEOUT", 0), "Per-request timeout, 0 disables (env: HAMMER_TIMEOUT)")
	rootCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv for more detail)")
	rootCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("HAMMER_NO_COLOR", false), "Disable colored output (env: HAMMER_NO_COLOR)")
	rootCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("HAMMER_INSECURE", false), "Disable SSL certificate validation (env: HAMMER_INSECURE)")
}

func runCommand(cmd *cobra.Command, args []string) error {
	file, err := config.Load(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := httpclient.NewClient(
		httpclient.WithTimeout(timeoutFlag),
		httpclient.WithInsecure(insecureFlag),
		httpclient.WithUserAgent("hammer/"+version),
	)
	reporter := hammer.NewReporter(
		hammer.WithOutput(cmd.OutOrStdout()),
		hammer.WithErrOutput(cmd.ErrOrStderr()),
		hammer.WithNoColor(noColorFlag),
	)
	runner := hammer.NewRunner(
		hammer.WithClient(client),
		hammer.WithReporter(reporter),
		hammer.WithTasks(tasksFlag),
		hammer.WithVerbose(verboseFlag),
	)

	return runner.Run(ctx, file)
}

// usageError marks CLI misuse (bad flags, wrong argument count) so it
// maps to its own exit code.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// handleError prints err and picks the process exit code. Per-task and
// per-file errors are already reported by the time they reach here.
func handleError(w io.Writer, err error) int {
	var usage *usageError
	var loadErr *config.LoadError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &usage):
		fmt.Fprintf(w, "Error: %v\n", err)
		fmt.Fprintf(w, "Run '%s --help' for usage.\n", rootCmd.Name())
		return ExitUsageError
	case errors.Is(err, errValidationFailed):
		return ExitConfigError
	case errors.Is(err, hammer.ErrEndpointFailed):
		return ExitHammerFailure
	}

	printErrorChain(w, err)
	if errors.As(err, &loadErr) {
		return ExitConfigError
	}
	return ExitHammerFailure
}

// printErrorChain prints err and each wrapped cause on its own
// numbered line. Wrappers that only re-expose their cause's message
// are skipped.
func printErrorChain(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	fmt.Fprintf(w, "%s: %v\n", red.Sprint("Runtime error"), err)

	previous := err.Error()
	for i := 1; ; {
		err = errors.Unwrap(err)
		if err == nil {
			return
		}
		message := err.Error()
		if message == previous {
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", red.Sprintf("#%d", i), message)
		previous = message
		i++
	}
}

// Environment variable helpers
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvUint(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseUint(val, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
