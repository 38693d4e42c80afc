package eval

import (
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/hammer/packages/httpclient"
)

// ResolvedRequest is a request with every value resolved and a
// canonical identity: headers are sorted by name then value at
// construction, so requests built from the same inputs in any order
// share one cache key. It carries no connection state and performs no
// I/O itself.
type ResolvedRequest struct {
	URI     string
	Method  string
	Headers []httpclient.Header
	Body    string

	key string
}

func newResolvedRequest(uri, method string, headers []httpclient.Header, body string) *ResolvedRequest {
	sort.Slice(headers, func(i, j int) bool {
		if headers[i].Name != headers[j].Name {
			return headers[i].Name < headers[j].Name
		}
		return headers[i].Value < headers[j].Value
	})
	r := &ResolvedRequest{URI: uri, Method: method, Headers: headers, Body: body}
	r.key = r.computeKey()
	return r
}

// Key returns the canonical identity string used by the request cache.
func (r *ResolvedRequest) Key() string {
	return r.key
}

// computeKey flattens the request into one string. Method and header
// names are tokens and header values contain no control bytes, so the
// separators below cannot collide with content.
func (r *ResolvedRequest) computeKey() string {
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(r.URI)
	b.WriteByte('\n')
	for _, header := range r.Headers {
		b.WriteString(header.Name)
		b.WriteByte(':')
		b.WriteString(header.Value)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(r.Body)
	return b.String()
}

// HTTPRequest converts to the transfer shape the client sends.
func (r *ResolvedRequest) HTTPRequest() *httpclient.Request {
	return &httpclient.Request{
		Method:  r.Method,
		URI:     r.URI,
		Headers: r.Headers,
		Body:    r.Body,
	}
}
