package httpclient

import "time"

// Response is the outcome of one request with both latency
// measurements taken by the client.
type Response struct {
	StatusCode int
	Status     string
	Body       []byte
	FirstByte  time.Duration
	Total      time.Duration
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
