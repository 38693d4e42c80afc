package hammer

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hammer/packages/config"
	"github.com/abdul-hamid-achik/hammer/packages/httpclient"
)

func endpointFor(url string, count uint64) config.Endpoint {
	return config.Endpoint{
		Name: "GET " + url,
		Request: config.RequestTemplate{
			URI:     url,
			Method:  "GET",
			Cookies: map[string]config.Overridable{},
			Headers: map[string]config.Overridable{},
			Body:    config.EmptyValue(),
		},
		Count: count,
	}
}

func newTestRunner(tasks uint64) (*Runner, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	reporter := NewReporter(WithOutput(&out), WithErrOutput(&errOut), WithNoColor(true))
	runner := NewRunner(
		WithClient(httpclient.NewClient()),
		WithReporter(reporter),
		WithTasks(tasks),
	)
	return runner, &out, &errOut
}

func TestRunnerSendsExactBudget(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	runner, out, errOut := newTestRunner(4)
	file := &config.File{Hammer: []config.Endpoint{endpointFor(server.URL, 20)}}

	err := runner.Run(context.Background(), file)
	require.NoError(t, err)

	assert.Equal(t, int64(20), hits.Load(), "the budget bounds the request count exactly")
	assert.Contains(t, errOut.String(), "Hammering GET "+server.URL+" 20/20\n")
	assert.Contains(t, out.String(), "Results for "+server.URL+":\n")
	assert.Contains(t, out.String(), "initial response: min ")
	assert.Contains(t, out.String(), "whole body:       min ")
}

func TestRunnerZeroCount(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	runner, out, errOut := newTestRunner(4)
	file := &config.File{Hammer: []config.Endpoint{endpointFor(server.URL, 0)}}

	err := runner.Run(context.Background(), file)
	require.NoError(t, err)

	assert.Equal(t, int64(0), hits.Load())
	assert.Contains(t, errOut.String(), "0/0\n")
	assert.Contains(t, out.String(), "no requests made")
}

func TestRunnerFailureAbortsEndpoint(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	runner, out, errOut := newTestRunner(2)
	file := &config.File{Hammer: []config.Endpoint{endpointFor(server.URL, 1000)}}

	err := runner.Run(context.Background(), file)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEndpointFailed)

	assert.Less(t, hits.Load(), int64(1000), "workers must stop early on failure")
	assert.Contains(t, errOut.String(), "failed")
	assert.Contains(t, errOut.String(), "Task 1 failed: ")
	assert.Contains(t, errOut.String(), "returned non-success status 500")
	assert.NotContains(t, out.String(), "Results for", "failed endpoints report no statistics")
}

func TestRunnerTransportErrorAbortsEndpoint(t *testing.T) {
	runner, _, errOut := newTestRunner(2)
	file := &config.File{Hammer: []config.Endpoint{endpointFor("http://127.0.0.1:1/down", 50)}}

	err := runner.Run(context.Background(), file)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEndpointFailed)
	assert.Contains(t, errOut.String(), "failed")
}

func TestRunnerStopsAtFirstFailingEndpoint(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	var laterHits atomic.Int64
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		laterHits.Add(1)
	}))
	defer good.Close()

	runner, _, _ := newTestRunner(2)
	file := &config.File{Hammer: []config.Endpoint{
		endpointFor(bad.URL, 10),
		endpointFor(good.URL, 10),
	}}

	err := runner.Run(context.Background(), file)
	require.Error(t, err)
	assert.Equal(t, int64(0), laterHits.Load(), "endpoints after a failure must not run")
}

func TestRunnerRunsEndpointsInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(tag string) {
		mu.Lock()
		order = append(order, tag)
		mu.Unlock()
	}

	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record("first")
	}))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record("second")
	}))
	defer second.Close()

	runner, _, _ := newTestRunner(3)
	file := &config.File{Hammer: []config.Endpoint{
		endpointFor(first.URL, 5),
		endpointFor(second.URL, 5),
	}}

	require.NoError(t, runner.Run(context.Background(), file))

	require.Len(t, order, 10)
	assert.Equal(t, []string{"first", "first", "first", "first", "first"}, order[:5],
		"all requests of the first endpoint land before the second starts")
}

func TestRunnerHonorsMaxConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := inFlight.Add(1)
		for {
			highest := peak.Load()
			if now <= highest || peak.CompareAndSwap(highest, now) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
	}))
	defer server.Close()

	limit := uint64(1)
	endpoint := endpointFor(server.URL, 8)
	endpoint.MaxConcurrency = &limit

	runner, _, _ := newTestRunner(8)
	file := &config.File{Hammer: []config.Endpoint{endpoint}}

	require.NoError(t, runner.Run(context.Background(), file))
	assert.Equal(t, int64(1), peak.Load(), "max_concurrency caps the worker count")
}

func TestRunnerRatePacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	endpoint := endpointFor(server.URL, 5)
	endpoint.Rate = 50

	runner, _, _ := newTestRunner(4)
	file := &config.File{Hammer: []config.Endpoint{endpoint}}

	start := time.Now()
	require.NoError(t, runner.Run(context.Background(), file))
	elapsed := time.Since(start)

	// 5 requests at 50/s need at least 4 paced gaps of 20ms.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestRunnerInterrupted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	runner, _, errOut := newTestRunner(2)
	file := &config.File{Hammer: []config.Endpoint{endpointFor(server.URL, 100000)}}

	err := runner.Run(ctx, file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run interrupted")
	assert.Contains(t, errOut.String(), "failed")
}

func TestRunnerBuildFailureIsFatal(t *testing.T) {
	runner, _, _ := newTestRunner(1)

	endpoint := endpointFor("http://localhost/", 1)
	endpoint.Request.Headers["X-Token"] = config.Overridable{
		Value: config.Template("${resources.missing}"),
	}
	file := &config.File{Hammer: []config.Endpoint{endpoint}}

	err := runner.Run(context.Background(), file)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEndpointFailed)
	assert.Contains(t, err.Error(), "Resource missing does not exist")
}

func TestRunnerSharesResolutionAcrossEndpoints(t *testing.T) {
	var loginHits atomic.Int64
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			loginHits.Add(1)
			_, _ = w.Write([]byte(`{"token": "tok-1"}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer api.Close()

	format := "Bearer {}"
	resources := map[string]config.Value{
		"token": config.DerivedRequest{
			Request: config.RequestTemplate{
				URI:     api.URL + "/login",
				Method:  "POST",
				Cookies: map[string]config.Overridable{},
				Headers: map[string]config.Overridable{},
				Body:    config.EmptyValue(),
			},
			Extract: &config.JSONExtract{Pointer: "/token"},
			Format:  &format,
		},
	}

	authed := func(path string, count uint64) config.Endpoint {
		endpoint := endpointFor(api.URL+path, count)
		endpoint.Request.Headers["Authorization"] = config.Overridable{
			Value: config.Template("${resources.token}"),
		}
		return endpoint
	}

	runner, out, _ := newTestRunner(3)
	file := &config.File{
		Resources: resources,
		Hammer: []config.Endpoint{
			authed("/a", 6),
			authed("/b", 6),
		},
	}

	require.NoError(t, runner.Run(context.Background(), file))
	assert.Equal(t, int64(1), loginHits.Load(), "the login request resolves once for the whole run")
	assert.Contains(t, out.String(), "Results for "+api.URL+"/a:")
	assert.Contains(t, out.String(), "Results for "+api.URL+"/b:")
}

func TestRunnerSendsResolvedBodyOnEveryRequest(t *testing.T) {
	var hits, wrongBodies atomic.Int64
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			_, _ = w.Write([]byte(`{"token": "tok-7"}`))
			return
		}
		payload, err := io.ReadAll(r.Body)
		if err != nil || string(payload) != "tok-7" {
			wrongBodies.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		hits.Add(1)
	}))
	defer api.Close()

	endpoint := endpointFor(api.URL+"/ingest", 12)
	endpoint.Request.Method = "POST"
	endpoint.Request.Body = config.Template("${resources.token}")

	runner, _, _ := newTestRunner(4)
	file := &config.File{
		Resources: map[string]config.Value{
			"token": config.DerivedRequest{
				Request: config.RequestTemplate{
					URI:     api.URL + "/login",
					Method:  "GET",
					Cookies: map[string]config.Overridable{},
					Headers: map[string]config.Overridable{},
					Body:    config.EmptyValue(),
				},
				Extract: &config.JSONExtract{Pointer: "/token"},
			},
		},
		Hammer: []config.Endpoint{endpoint},
	}

	require.NoError(t, runner.Run(context.Background(), file))
	assert.Equal(t, int64(12), hits.Load(), "every request carries the resolved body")
	assert.Equal(t, int64(0), wrongBodies.Load())
}
