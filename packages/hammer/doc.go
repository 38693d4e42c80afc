// Package hammer drives the request workers for each configured
// endpoint.
//
// For every endpoint the runner resolves the request once, starts a
// pool of workers racing on a shared budget counter, aggregates their
// latency statistics, and renders live progress while they run. The
// first endpoint that fails ends the run.
package hammer
