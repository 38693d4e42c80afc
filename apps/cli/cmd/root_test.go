package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hammer/packages/config"
	"github.com/abdul-hamid-achik/hammer/packages/hammer"
)

// executeRoot resets flag state, runs the CLI with args, and captures
// both output streams.
func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	tasksFlag = 1
	timeoutFlag = 0
	verboseFlag = 0
	noColorFlag = true
	insecureFlag = false

	// A nil slice makes cobra fall back to os.Args.
	if args == nil {
		args = []string{}
	}

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRootHammersSingleEndpoint(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	path := writeConfig(t, "run.toml", fmt.Sprintf(`
[[hammer]]
uri = "%s/"
count = 10
`, server.URL))

	out, errOut, err := executeRoot(t, "--tasks", "4", path)
	require.NoError(t, err)

	assert.Equal(t, int64(10), hits.Load())
	assert.Contains(t, errOut, "Hammering GET "+server.URL+"/ 10/10\n")
	assert.Contains(t, out, "Results for "+server.URL+"/:\n")
	assert.Contains(t, out, "initial response: min ")
	assert.Contains(t, out, "whole body:       min ")
}

func TestRootStopsAfterFailingEndpoint(t *testing.T) {
	var firstHits, secondHits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			firstHits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		secondHits.Add(1)
	}))
	defer server.Close()

	path := writeConfig(t, "run.toml", fmt.Sprintf(`
[[hammer]]
uri = "%s/bad"
count = 100

[[hammer]]
uri = "%s/good"
count = 5
`, server.URL, server.URL))

	out, errOut, err := executeRoot(t, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, hammer.ErrEndpointFailed)

	assert.Equal(t, int64(0), secondHits.Load(), "a failed endpoint ends the run")
	assert.Contains(t, errOut, "failed")
	assert.Contains(t, errOut, "Task 1 failed: ")
	assert.Contains(t, errOut, "returned non-success status 500")
	assert.NotContains(t, out, "Results for")
}

func TestRootResolvesLoginOnce(t *testing.T) {
	var loginHits, protectedHits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			loginHits.Add(1)
			_, _ = w.Write([]byte(`{"token": "tok-xyz"}`))
		case "/protected":
			if r.Header.Get("Authorization") != "Bearer tok-xyz" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			protectedHits.Add(1)
			_, _ = w.Write([]byte("ok"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	path := writeConfig(t, "run.toml", fmt.Sprintf(`
[resources.token]
uri = "%s/login"
method = "POST"
format = "Bearer {}"

[resources.token.extract]
format = "json"
pointer = "/token"

[[hammer]]
uri = "%s/protected"
count = 8

[hammer.headers]
Authorization = "${resources.token}"
`, server.URL, server.URL))

	_, _, err := executeRoot(t, "--tasks", "3", path)
	require.NoError(t, err)

	assert.Equal(t, int64(1), loginHits.Load(), "the login request runs exactly once")
	assert.Equal(t, int64(8), protectedHits.Load())
}

func TestRootReportsCyclicResources(t *testing.T) {
	path := writeConfig(t, "run.toml", `
[resources]
a = "${resources.b}"
b = "${resources.a}"

[[hammer]]
uri = "http://localhost:1/"
count = 1

[hammer.headers]
X-Loop = "${resources.a}"
`)

	_, _, err := executeRoot(t, path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, hammer.ErrEndpointFailed)
	assert.Contains(t, err.Error(), "Cyclic dependency detected")
	assert.Contains(t, err.Error(), "Failed to resolve value for header X-Loop")
}

func TestRootZeroCountEndpoint(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	path := writeConfig(t, "run.toml", fmt.Sprintf(`
[[hammer]]
uri = "%s/"
count = 0
`, server.URL))

	out, errOut, err := executeRoot(t, path)
	require.NoError(t, err)

	assert.Equal(t, int64(0), hits.Load())
	assert.Contains(t, errOut, "0/0\n")
	assert.Contains(t, out, "no requests made")
}

func TestRootMissingConfigFile(t *testing.T) {
	_, _, err := executeRoot(t, filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)

	var loadErr *config.LoadError
	assert.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "Could not read config file")
}

func TestRootRequiresExactlyOneConfig(t *testing.T) {
	_, _, err := executeRoot(t)
	require.Error(t, err)

	var usage *usageError
	assert.ErrorAs(t, err, &usage)
}

func TestCheckCommand(t *testing.T) {
	valid := writeConfig(t, "valid.toml", `
[[hammer]]
uri = "http://localhost:8080/"
count = 1
`)
	invalid := writeConfig(t, "invalid.toml", `
[[hammer]]
uri = "http://localhost:8080/"
`)

	out, _, err := executeRoot(t, "check", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid: "+valid+"\n")

	out, _, err = executeRoot(t, "check", valid, invalid)
	require.Error(t, err)
	assert.ErrorIs(t, err, errValidationFailed)
	assert.Contains(t, out, "Valid: "+valid+"\n")
	assert.Contains(t, out, "Error in "+invalid+": ")
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hammer.toml")

	out, _, err := executeRoot(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Created: "+path+"\n")

	// The scaffold must be a valid hammer file.
	out, _, err = executeRoot(t, "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid: "+path+"\n")

	_, _, err = executeRoot(t, "init", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file already exists")

	defer func() { forceInit = false }()
	_, _, err = executeRoot(t, "init", dir, "--force")
	require.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := executeRoot(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "hammer version ")
	assert.Contains(t, out, "Built: ")
}

func TestCompletionCommand(t *testing.T) {
	out, _, err := executeRoot(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "__start_hammer")

	out, _, err = executeRoot(t, "completion", "zsh")
	require.NoError(t, err)
	assert.Contains(t, out, "#compdef hammer")

	out, _, err = executeRoot(t, "completion", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "bash-completion/completions/hammer")

	_, _, err = executeRoot(t, "completion", "tcsh")
	require.Error(t, err)
}

func TestHandleError(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	assert.Equal(t, ExitSuccess, handleError(&buf, nil))
	assert.Empty(t, buf.String())

	buf.Reset()
	assert.Equal(t, ExitUsageError, handleError(&buf, &usageError{errors.New("accepts 1 arg(s)")}))
	assert.Contains(t, buf.String(), "Error: accepts 1 arg(s)\n")
	assert.Contains(t, buf.String(), "Run 'hammer --help' for usage.\n")

	buf.Reset()
	assert.Equal(t, ExitHammerFailure, handleError(&buf, fmt.Errorf("home: %w", hammer.ErrEndpointFailed)))
	assert.Empty(t, buf.String(), "task failures are already reported")

	buf.Reset()
	assert.Equal(t, ExitConfigError, handleError(&buf, errValidationFailed))
	assert.Empty(t, buf.String(), "per-file errors are already reported")

	buf.Reset()
	_, loadErr := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, loadErr)
	assert.Equal(t, ExitConfigError, handleError(&buf, loadErr))
	assert.Contains(t, buf.String(), "Runtime error: Could not read config file")

	buf.Reset()
	assert.Equal(t, ExitHammerFailure, handleError(&buf, errors.New("boom")))
	assert.Contains(t, buf.String(), "Runtime error: boom\n")
}

func TestPrintErrorChain(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	err := fmt.Errorf("Could not parse config file: %w", errors.New("toml: line 3: expected value"))
	printErrorChain(&buf, err)

	assert.Equal(t,
		"Runtime error: Could not parse config file: toml: line 3: expected value\n"+
			"#1: toml: line 3: expected value\n",
		buf.String())
}
