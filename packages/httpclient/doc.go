// Package httpclient issues the HTTP requests behind a hammer run.
//
// It provides functionality for:
//   - Sending fully resolved requests with shared connection pooling
//   - Measuring time to first byte and time to full body per request
//   - Optional per-request timeouts and TLS verification bypass
package httpclient
