package eval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/abdul-hamid-achik/hammer/packages/config"
	"github.com/abdul-hamid-achik/hammer/packages/httpclient"
)

// maxDepth bounds recursion through templates and derived requests so
// a pathological file fails instead of exhausting the stack.
const maxDepth = 64

// ErrCyclicDependency is reported when resolving a resource requires
// that same resource further up the chain.
var ErrCyclicDependency = errors.New("Cyclic dependency detected")

// Evaluator resolves values for one run. It owns the resource table,
// the request/response cache, and the HTTP client used for derived
// requests. Resources resolve at most once; the first result is kept
// for the rest of the run.
type Evaluator struct {
	client  *httpclient.Client
	verbose int
	trace   io.Writer

	resources map[string]*resourceCell

	mu    sync.Mutex
	cache map[string]string // ResolvedRequest key -> response body
}

// resourceCell guards one named resource. Its mutex is only ever taken
// with TryLock: a failed acquisition means the resource is already
// being resolved further up the current chain, which is a cycle.
type resourceCell struct {
	mu    sync.Mutex
	value config.Value
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithVerbose sets the trace verbosity level.
func WithVerbose(level int) Option {
	return func(e *Evaluator) {
		e.verbose = level
	}
}

// WithTrace sets the writer resolution traces are printed to.
func WithTrace(w io.Writer) Option {
	return func(e *Evaluator) {
		e.trace = w
	}
}

// New creates an evaluator over the declared resources.
func New(client *httpclient.Client, resources map[string]config.Value, opts ...Option) *Evaluator {
	e := &Evaluator{
		client:    client,
		trace:     io.Discard,
		resources: make(map[string]*resourceCell, len(resources)),
		cache:     map[string]string{},
	}
	for name, value := range resources {
		e.resources[name] = &resourceCell{value: value}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) tracef(format string, args ...any) {
	if e.verbose > 0 {
		fmt.Fprintf(e.trace, format+"\n", args...)
	}
}

// Resolve turns a value into its concrete string.
func (e *Evaluator) Resolve(ctx context.Context, value config.Value) (string, error) {
	return e.resolve(ctx, value, 0)
}

func (e *Evaluator) resolve(ctx context.Context, value config.Value, depth int) (string, error) {
	if depth > maxDepth {
		return "", fmt.Errorf("maximum resolution depth (%d) exceeded", maxDepth)
	}
	switch typed := value.(type) {
	case config.Constant:
		return string(typed), nil
	case config.Template:
		return expand(string(typed), func(spec string) (string, error) {
			name, ok := strings.CutPrefix(spec, "resources.")
			if !ok {
				return "", fmt.Errorf("%s must start with resources.", spec)
			}
			return e.resolveResource(ctx, name, depth+1)
		})
	case config.DerivedRequest:
		return e.resolveDerived(ctx, typed, depth)
	default:
		return "", fmt.Errorf("unsupported value type %T", value)
	}
}

// resolveResource is the memoizing, cycle-detecting lookup: take the
// cell lock without blocking, resolve the held value, replace it with
// the result, unlock.
func (e *Evaluator) resolveResource(ctx context.Context, name string, depth int) (string, error) {
	cell, ok := e.resources[name]
	if !ok {
		return "", fmt.Errorf("Resource %s does not exist", name)
	}
	if !cell.mu.TryLock() {
		return "", ErrCyclicDependency
	}
	defer cell.mu.Unlock()

	resolved, err := e.resolve(ctx, cell.value, depth)
	if err != nil {
		return "", err
	}
	cell.value = config.Constant(resolved)
	return resolved, nil
}

func (e *Evaluator) resolveDerived(ctx context.Context, derived config.DerivedRequest, depth int) (string, error) {
	request, err := e.buildRequest(ctx, derived.Request, depth+1)
	if err != nil {
		return "", err
	}

	value, err := e.fetch(ctx, request)
	if err != nil {
		return "", err
	}

	if derived.Extract != nil {
		value, err = extractJSON(value, derived.Extract.Pointer)
		if err != nil {
			return "", err
		}
	}
	if derived.Format != nil {
		value, err = formatOne(*derived.Format, value)
		if err != nil {
			return "", err
		}
	}
	return value, nil
}

// fetch returns the response body for request, consulting the cache
// first. The cache lock is dropped for the duration of the network
// call, so two concurrent misses on the same key may both execute; the
// later insert simply overwrites the earlier one.
func (e *Evaluator) fetch(ctx context.Context, request *ResolvedRequest) (string, error) {
	key := request.Key()

	e.mu.Lock()
	body, ok := e.cache[key]
	e.mu.Unlock()
	if ok {
		return body, nil
	}

	e.tracef("Executing %s %s", request.Method, request.URI)
	resp, err := e.client.Do(ctx, request.HTTPRequest())
	if err != nil {
		return "", err
	}
	if !utf8.Valid(resp.Body) {
		return "", fmt.Errorf("response body is not valid UTF-8")
	}
	body = string(resp.Body)

	e.mu.Lock()
	e.cache[key] = body
	e.mu.Unlock()
	return body, nil
}

// BuildRequest resolves every value of the template into a concrete,
// cache-keyed request.
func (e *Evaluator) BuildRequest(ctx context.Context, template config.RequestTemplate) (*ResolvedRequest, error) {
	return e.buildRequest(ctx, template, 0)
}

func (e *Evaluator) buildRequest(ctx context.Context, template config.RequestTemplate, depth int) (*ResolvedRequest, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("maximum resolution depth (%d) exceeded", maxDepth)
	}
	e.tracef("Building request %s %s", template.Method, template.URI)

	headers := make(map[string]string, len(template.Headers)+1)

	var cookie Cookie
	for _, name := range config.SortedNames(template.Cookies) {
		entry := template.Cookies[name]
		if entry.Deleted {
			continue
		}
		e.tracef("Resolving value for cookie %s", name)
		value, err := e.resolve(ctx, entry.Value, depth+1)
		if err != nil {
			return nil, fmt.Errorf("Failed to resolve value for cookie %s: %w", name, err)
		}
		cookie.Add(name, value)
	}
	// The Cookie header is always present, even with no cookies. A
	// configured Cookie header below replaces it.
	headers["Cookie"] = cookie.String()

	for _, name := range config.SortedNames(template.Headers) {
		entry := template.Headers[name]
		if entry.Deleted {
			continue
		}
		e.tracef("Resolving value for header %s", name)
		value, err := e.resolve(ctx, entry.Value, depth+1)
		if err != nil {
			return nil, fmt.Errorf("Failed to resolve value for header %s: %w", name, err)
		}
		if !validHeaderValue(value) {
			return nil, fmt.Errorf("Value for header %s is not a valid header value", name)
		}
		headers[textproto.CanonicalMIMEHeaderKey(name)] = value
	}

	body, err := e.resolve(ctx, template.Body, depth+1)
	if err != nil {
		return nil, fmt.Errorf("Failed to resolve value for body: %w", err)
	}

	list := make([]httpclient.Header, 0, len(headers))
	for name, value := range headers {
		list = append(list, httpclient.Header{Name: name, Value: value})
	}
	return newResolvedRequest(template.URI, template.Method, list, body), nil
}

// validHeaderValue rejects control bytes other than horizontal tab.
func validHeaderValue(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\t' {
			continue
		}
		if c < 0x20 || c == 0x7f {
			return false
		}
	}
	return true
}
