package hammer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/hammer/packages/config"
	"github.com/abdul-hamid-achik/hammer/packages/eval"
	"github.com/abdul-hamid-achik/hammer/packages/httpclient"
)

// ErrEndpointFailed marks a run stopped by request failures. The
// per-task errors are already on the error writer when this is
// returned, so callers should not print it again.
var ErrEndpointFailed = errors.New("hammering failed")

// Runner hammers every endpoint of a loaded file in order.
type Runner struct {
	client   *httpclient.Client
	reporter *Reporter
	tasks    uint64
	verbose  int
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithClient sets the HTTP client.
func WithClient(client *httpclient.Client) RunnerOption {
	return func(r *Runner) {
		r.client = client
	}
}

// WithReporter sets the reporter.
func WithReporter(reporter *Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

// WithTasks sets the number of workers per endpoint. An endpoint's
// max_concurrency can lower it, never raise it.
func WithTasks(tasks uint64) RunnerOption {
	return func(r *Runner) {
		if tasks > 0 {
			r.tasks = tasks
		}
	}
}

// WithVerbose sets the verbosity level.
func WithVerbose(level int) RunnerOption {
	return func(r *Runner) {
		r.verbose = level
	}
}

// NewRunner creates a runner with the given options.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{tasks: 1}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = httpclient.NewClient()
	}
	if r.reporter == nil {
		r.reporter = NewReporter()
	}
	return r
}

// Run hammers the endpoints sequentially. The first endpoint that
// fails ends the run; later endpoints are not started. All endpoints
// share one evaluator, so resources and cached responses carry across.
func (r *Runner) Run(ctx context.Context, file *config.File) error {
	evaluator := eval.New(r.client, file.Resources,
		eval.WithVerbose(r.verbose),
		eval.WithTrace(r.reporter.ErrWriter()))

	for i := range file.Hammer {
		if err := r.runEndpoint(ctx, evaluator, &file.Hammer[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runEndpoint(ctx context.Context, evaluator *eval.Evaluator, endpoint *config.Endpoint) error {
	request, err := evaluator.BuildRequest(ctx, endpoint.Request)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", endpoint.Name, err)
	}

	tasks := r.tasks
	if endpoint.MaxConcurrency != nil && *endpoint.MaxConcurrency < tasks {
		tasks = *endpoint.MaxConcurrency
	}

	budget := NewBudget(endpoint.Count)
	var abort Abort

	var limiter *rate.Limiter
	if endpoint.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(endpoint.Rate), 1)
	}

	// Workers stuck waiting on a rate slot stop through this context;
	// in-flight requests are never cancelled.
	paceCtx, cancelPace := context.WithCancel(ctx)
	defer cancelPace()

	workerStats := make([]*HammerStats, tasks)
	workerErrs := make([]error, tasks)

	var wg sync.WaitGroup
	for i := uint64(0); i < tasks; i++ {
		wg.Add(1)
		go func(idx uint64) {
			defer wg.Done()
			stats, err := r.worker(paceCtx, request, budget, &abort, limiter)
			workerStats[idx] = stats
			if err != nil {
				workerErrs[idx] = err
				abort.Set()
				cancelPace()
			}
		}(i)
	}

	r.progressLoop(ctx, endpoint, budget, &abort, tasks)

	// The final line reflects the counter at loop exit; stragglers
	// still in flight are joined right after.
	done := endpoint.Count - budget.Remaining()
	switch {
	case abort.Load():
		r.reporter.Failure(endpoint.Name, done, endpoint.Count)
	case budget.Remaining() == 0:
		r.reporter.Success(endpoint.Name, endpoint.Count)
	default:
		r.reporter.Failure(endpoint.Name, done, endpoint.Count)
	}

	wg.Wait()

	merged := NewHammerStats()
	anyFailed := false
	for i, workerErr := range workerErrs {
		if workerErr != nil {
			r.reporter.TaskError(i+1, workerErr)
			anyFailed = true
			continue
		}
		merged.Merge(workerStats[i])
	}
	if anyFailed {
		return fmt.Errorf("%s: %w", endpoint.Name, ErrEndpointFailed)
	}
	if merged.Done() == endpoint.Count {
		r.reporter.Results(endpoint.Request.URI, merged)
		if r.verbose > 0 {
			r.reporter.Percentiles(merged)
		}
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	return fmt.Errorf("internal error: completed %d of %d requests with no failure", merged.Done(), endpoint.Count)
}

// worker claims budget units until the budget runs out, the abort flag
// is set, or the pace context is cancelled. A claimed request always
// runs to completion; the first failure is returned and the remaining
// units are left to the abort check.
func (r *Runner) worker(ctx context.Context, request *eval.ResolvedRequest, budget *Budget, abort *Abort, limiter *rate.Limiter) (*HammerStats, error) {
	stats := NewHammerStats()
	httpRequest := request.HTTPRequest()
	sendCtx := context.WithoutCancel(ctx)

	for budget.TryClaim() {
		if abort.Load() || ctx.Err() != nil {
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}

		resp, err := r.client.Do(sendCtx, httpRequest)
		if err != nil {
			return stats, err
		}
		if !resp.IsSuccess() {
			return stats, fmt.Errorf("%s %s returned non-success status %s", request.Method, request.URI, resp.Status)
		}
		stats.Record(resp.FirstByte, resp.Total)
	}
	return stats, nil
}

// progressLoop redraws the status line until the endpoint finishes,
// aborts, or the run is interrupted.
func (r *Runner) progressLoop(ctx context.Context, endpoint *config.Endpoint, budget *Budget, abort *Abort, tasks uint64) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	var estimator rateEstimator
	for {
		remaining := budget.Remaining()
		if remaining == 0 || abort.Load() || ctx.Err() != nil {
			return
		}
		done := endpoint.Count - remaining
		r.reporter.Progress(endpoint.Name, done, endpoint.Count, tasks, estimator.estimate(time.Now(), done))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
