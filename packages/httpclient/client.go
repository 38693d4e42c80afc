package httpclient

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultUserAgent is sent when no product version is configured.
	DefaultUserAgent = "hammer/dev"

	// Connection pool sizing. Workers hammer a single origin, so the
	// per-host idle limit carries most of the load.
	defaultMaxIdleConns        = 512
	defaultMaxIdleConnsPerHost = 256
	defaultIdleConnTimeout     = 90 * time.Second
)

// Client sends resolved requests and reports both latency measurements.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	insecure   bool
	userAgent  string
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithTimeout sets a per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithInsecure disables TLS certificate verification.
func WithInsecure(insecure bool) ClientOption {
	return func(c *Client) {
		c.insecure = insecure
	}
}

// WithUserAgent sets the product identification header. It supersedes
// any User-Agent header carried by the request itself.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient creates a client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{userAgent: DefaultUserAgent}
	for _, opt := range opts {
		opt(c)
	}

	transport := &http.Transport{
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
	}
	if c.insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	c.httpClient = &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
	}
	return c
}

// Do sends one request and reads the whole response body. FirstByte
// covers send until the response headers arrive, Total until the last
// body byte is read.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URI, strings.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	for _, header := range req.Headers {
		httpReq.Header.Set(header.Name, header.Value)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	firstByte := time.Since(start)
	defer func() {
		_ = httpResp.Body.Close()
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Body:       body,
		FirstByte:  firstByte,
		Total:      time.Since(start),
	}, nil
}
