package hammer

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

const (
	// progressInterval is how often the status line redraws.
	progressInterval = 50 * time.Millisecond
	// rateWindow caps how many samples the throughput estimate spans.
	rateWindow = 6
)

// Reporter renders run output: the live progress line and error
// reports on one writer, per-endpoint results on the other.
type Reporter struct {
	out     io.Writer
	errOut  io.Writer
	noColor bool

	yellow  *color.Color
	magenta *color.Color
	blue    *color.Color
	green   *color.Color
	red     *color.Color
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithOutput sets the results writer. Defaults to stdout.
func WithOutput(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.out = w
	}
}

// WithErrOutput sets the progress and error writer. Defaults to
// stderr.
func WithErrOutput(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.errOut = w
	}
}

// WithNoColor disables colored output.
func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = noColor
	}
}

// NewReporter creates a reporter with the given options.
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.noColor {
		color.NoColor = true
	}

	r.yellow = color.New(color.FgYellow, color.Bold)
	r.magenta = color.New(color.FgMagenta, color.Bold)
	r.blue = color.New(color.FgHiBlue, color.Bold)
	r.green = color.New(color.FgGreen, color.Bold)
	r.red = color.New(color.FgRed, color.Bold)
	return r
}

// ErrWriter exposes the progress and error writer so resolution traces
// can share it.
func (r *Reporter) ErrWriter() io.Writer {
	return r.errOut
}

// Progress redraws the status line in place. A negative rate omits the
// throughput segment; the first tick has no window to estimate from.
func (r *Reporter) Progress(name string, done, count, tasks uint64, rate float64) {
	fmt.Fprintf(r.errOut, "\x1b[2KHammering %s %s (%s tasks",
		name,
		r.yellow.Sprintf("%d/%d", done, count),
		r.magenta.Sprintf("%d", tasks))
	if rate >= 0 {
		fmt.Fprintf(r.errOut, ", %s", r.blue.Sprintf("%.0f/s", rate))
	}
	fmt.Fprint(r.errOut, ")\r")
}

// Success prints the final line for a completed endpoint.
func (r *Reporter) Success(name string, count uint64) {
	fmt.Fprintf(r.errOut, "\x1b[2KHammering %s %s\n",
		name,
		r.green.Sprintf("%d/%d", count, count))
}

// Failure prints the final line for an aborted endpoint.
func (r *Reporter) Failure(name string, done, count uint64) {
	fmt.Fprintf(r.errOut, "\x1b[2KHammering %s %s %s\n",
		name,
		r.red.Sprint("failed"),
		r.yellow.Sprintf("%d/%d", done, count))
}

// TaskError reports one worker's failure under the endpoint line.
// Tasks are numbered from one.
func (r *Reporter) TaskError(task int, err error) {
	fmt.Fprintf(r.errOut, "    Task %d %s: %v\n", task, r.red.Sprint("failed"), err)
}

// Results prints the stdout summary for a successful endpoint.
func (r *Reporter) Results(uri string, stats *HammerStats) {
	fmt.Fprintf(r.out, "Results for %s:\n", uri)
	if stats.Done() == 0 {
		fmt.Fprintln(r.out, "    no requests made")
		return
	}
	fmt.Fprintf(r.out, "    initial response: min %.2fms avg %.2fms max %.2fms\n",
		stats.Response.MinMS(), stats.Response.AvgMS(), stats.Response.MaxMS())
	fmt.Fprintf(r.out, "    whole body:       min %.2fms avg %.2fms max %.2fms\n",
		stats.Total.MinMS(), stats.Total.AvgMS(), stats.Total.MaxMS())
}

// Percentiles prints the verbose percentile lines under Results.
func (r *Reporter) Percentiles(stats *HammerStats) {
	if stats.Done() == 0 {
		return
	}
	response := stats.ResponsePercentiles()
	total := stats.TotalPercentiles()
	fmt.Fprintf(r.out, "    initial response: p50 %.2fms p95 %.2fms p99 %.2fms\n",
		durationMS(response.P50), durationMS(response.P95), durationMS(response.P99))
	fmt.Fprintf(r.out, "    whole body:       p50 %.2fms p95 %.2fms p99 %.2fms\n",
		durationMS(total.P50), durationMS(total.P95), durationMS(total.P99))
}

// rateEstimator smooths throughput over a short sliding window of
// progress samples.
type rateEstimator struct {
	samples []rateSample
}

type rateSample struct {
	at   time.Time
	done uint64
}

// estimate returns the throughput since the oldest retained sample, or
// -1 when no previous sample exists yet, then records the new sample.
func (e *rateEstimator) estimate(now time.Time, done uint64) float64 {
	var previous rateSample
	hasPrevious := len(e.samples) > 0
	if len(e.samples) > rateWindow-1 {
		previous = e.samples[0]
		e.samples = e.samples[1:]
	} else if hasPrevious {
		previous = e.samples[0]
	}

	rate := -1.0
	if hasPrevious {
		elapsed := now.Sub(previous.at).Seconds()
		if elapsed > 0 {
			rate = float64(done-previous.done) / elapsed
		}
	}
	e.samples = append(e.samples, rateSample{at: now, done: done})
	return rate
}
