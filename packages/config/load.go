package config

import (
	"fmt"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format identifies a hammer file encoding.
type Format int

const (
	FormatTOML Format = iota
	FormatYAML
)

// FormatFor picks the decoder for a path by extension. Anything that is
// not .yaml or .yml is treated as TOML.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Load reads and parses a hammer file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{fmt.Errorf("Could not read config file: %w", err)}
	}
	return Parse(data, FormatFor(path))
}

// Parse decodes data into a File and validates it.
func Parse(data []byte, format Format) (*File, error) {
	tree, err := decode(data, format)
	if err != nil {
		return nil, &LoadError{fmt.Errorf("Could not parse config file: %w", err)}
	}
	file, err := build(tree)
	if err != nil {
		return nil, &LoadError{fmt.Errorf("Could not parse config file: %w", err)}
	}
	return file, nil
}

// LoadError tags every error returned by Load, Parse and Check so
// callers can map configuration problems to their own exit code.
type LoadError struct {
	err error
}

func (e *LoadError) Error() string { return e.err.Error() }
func (e *LoadError) Unwrap() error { return e.err }

func decode(data []byte, format Format) (map[string]any, error) {
	tree := map[string]any{}
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, err
		}
	default:
		if err := toml.Unmarshal(data, &tree); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

// build turns the decoded tree into the typed model. Unknown keys are
// ignored; known keys are type checked with the offending path in the
// error message.
func build(tree map[string]any) (*File, error) {
	globalCookies, err := buildGlobalTable(tree, "cookies")
	if err != nil {
		return nil, err
	}
	globalHeaders, err := buildGlobalTable(tree, "headers")
	if err != nil {
		return nil, err
	}
	for name := range globalHeaders {
		if !isToken(name) {
			return nil, fmt.Errorf("headers: %q is not a valid header name", name)
		}
	}
	if err := canonicalizeHeaders("headers", globalHeaders); err != nil {
		return nil, err
	}

	resources := map[string]Value{}
	if raw, ok := tree["resources"]; ok {
		table, ok := asTable(raw)
		if !ok {
			return nil, fmt.Errorf(`"resources" must be a table`)
		}
		for name, rawValue := range table {
			value, err := buildValue("resources."+name, rawValue)
			if err != nil {
				return nil, err
			}
			resources[name] = value
		}
	}

	rawHammer, ok := tree["hammer"]
	if !ok {
		return nil, fmt.Errorf(`missing field "hammer"`)
	}
	items, ok := endpointTables(rawHammer)
	if !ok {
		return nil, fmt.Errorf(`"hammer" must be an array of tables`)
	}

	endpoints := make([]Endpoint, 0, len(items))
	for i, item := range items {
		endpoint, err := buildEndpoint(fmt.Sprintf("hammer[%d]", i), item)
		if err != nil {
			return nil, err
		}
		mergeGlobals(endpoint.Request.Cookies, globalCookies)
		mergeGlobals(endpoint.Request.Headers, globalHeaders)
		endpoints = append(endpoints, endpoint)
	}

	return &File{Resources: resources, Hammer: endpoints}, nil
}

// mergeGlobals adds each global entry to dst unless an entry with the
// same name already exists. An explicit deleted entry counts as
// existing, which is how endpoints opt out of a global.
func mergeGlobals(dst map[string]Overridable, globals map[string]string) {
	for name, value := range globals {
		if _, ok := dst[name]; ok {
			continue
		}
		dst[name] = Overridable{Value: ClassifyString(value)}
	}
}

// canonicalizeHeaders rekeys a header table with canonical MIME
// spellings, so the global merge and deletion markers compose
// case-insensitively the way header names compare on the wire. Cookie
// names compare byte for byte and keep their keys. Two spellings of
// one header in the same table are an error.
func canonicalizeHeaders[V any](path string, headers map[string]V) error {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		canon := textproto.CanonicalMIMEHeaderKey(name)
		if canon == name {
			continue
		}
		if _, ok := headers[canon]; ok {
			return fmt.Errorf("%s: duplicate header %q", path, canon)
		}
		headers[canon] = headers[name]
		delete(headers, name)
	}
	return nil
}

func buildGlobalTable(tree map[string]any, key string) (map[string]string, error) {
	out := map[string]string{}
	raw, ok := tree[key]
	if !ok {
		return out, nil
	}
	table, ok := asTable(raw)
	if !ok {
		return nil, fmt.Errorf("%q must be a table", key)
	}
	for name, rawValue := range table {
		value, ok := asString(rawValue)
		if !ok {
			return nil, fmt.Errorf("%s.%s: must be a string", key, name)
		}
		out[name] = value
	}
	return out, nil
}

func buildEndpoint(path string, tree map[string]any) (Endpoint, error) {
	request, err := buildRequestTemplate(path, tree)
	if err != nil {
		return Endpoint{}, err
	}

	endpoint := Endpoint{Request: request}

	rawCount, ok := tree["count"]
	if !ok {
		return Endpoint{}, fmt.Errorf(`%s: missing field "count"`, path)
	}
	count, ok := asUint(rawCount)
	if !ok {
		return Endpoint{}, fmt.Errorf(`%s: "count" must be a non-negative integer`, path)
	}
	endpoint.Count = count

	if raw, ok := tree["max_concurrency"]; ok {
		limit, ok := asUint(raw)
		if !ok || limit == 0 {
			return Endpoint{}, fmt.Errorf(`%s: "max_concurrency" must be a positive integer`, path)
		}
		endpoint.MaxConcurrency = &limit
	}

	if raw, ok := tree["rate"]; ok {
		perSecond, ok := asFloat(raw)
		if !ok || perSecond < 0 {
			return Endpoint{}, fmt.Errorf(`%s: "rate" must be a non-negative number`, path)
		}
		endpoint.Rate = perSecond
	}

	endpoint.Name = fmt.Sprintf("%s %s", request.Method, request.URI)
	if raw, ok := tree["name"]; ok {
		name, ok := asString(raw)
		if !ok {
			return Endpoint{}, fmt.Errorf(`%s: "name" must be a string`, path)
		}
		endpoint.Name = name
	}

	return endpoint, nil
}

func buildRequestTemplate(path string, tree map[string]any) (RequestTemplate, error) {
	request := RequestTemplate{
		Method:  "GET",
		Cookies: map[string]Overridable{},
		Headers: map[string]Overridable{},
		Body:    EmptyValue(),
	}

	rawURI, ok := tree["uri"]
	if !ok {
		return RequestTemplate{}, fmt.Errorf(`%s: missing field "uri"`, path)
	}
	uri, ok := asString(rawURI)
	if !ok || !isAbsoluteURI(uri) {
		return RequestTemplate{}, fmt.Errorf("%s: %v is not a valid uri", path, rawURI)
	}
	request.URI = uri

	if raw, ok := tree["method"]; ok {
		method, ok := asString(raw)
		if !ok || !isToken(method) {
			return RequestTemplate{}, fmt.Errorf("%s: %v is not a valid method name", path, raw)
		}
		request.Method = method
	}

	if err := buildOverridables(path+".cookies", tree["cookies"], request.Cookies); err != nil {
		return RequestTemplate{}, err
	}
	if err := buildOverridables(path+".headers", tree["headers"], request.Headers); err != nil {
		return RequestTemplate{}, err
	}
	for name := range request.Headers {
		if !isToken(name) {
			return RequestTemplate{}, fmt.Errorf("%s.headers: %q is not a valid header name", path, name)
		}
	}
	if err := canonicalizeHeaders(path+".headers", request.Headers); err != nil {
		return RequestTemplate{}, err
	}

	if raw, ok := tree["body"]; ok {
		body, err := buildValue(path+".body", raw)
		if err != nil {
			return RequestTemplate{}, err
		}
		request.Body = body
	}

	return request, nil
}

func buildOverridables(path string, raw any, dst map[string]Overridable) error {
	if raw == nil {
		return nil
	}
	table, ok := asTable(raw)
	if !ok {
		return fmt.Errorf("%s: must be a table", path)
	}
	for name, rawValue := range table {
		entry, err := buildOverridable(path+"."+name, rawValue)
		if err != nil {
			return err
		}
		dst[name] = entry
	}
	return nil
}

// buildOverridable treats an empty table as a deletion marker and
// anything else as a value.
func buildOverridable(path string, raw any) (Overridable, error) {
	if table, ok := asTable(raw); ok && len(table) == 0 {
		return Overridable{Deleted: true}, nil
	}
	value, err := buildValue(path, raw)
	if err != nil {
		return Overridable{}, err
	}
	return Overridable{Value: value}, nil
}

func buildValue(path string, raw any) (Value, error) {
	switch typed := raw.(type) {
	case string:
		return ClassifyString(typed), nil
	case map[string]any:
		return buildDerived(path, typed)
	default:
		return nil, fmt.Errorf("%s: expected a string or a request table", path)
	}
}

func buildDerived(path string, tree map[string]any) (Value, error) {
	request, err := buildRequestTemplate(path, tree)
	if err != nil {
		return nil, err
	}
	derived := DerivedRequest{Request: request}

	if raw, ok := tree["extract"]; ok {
		table, ok := asTable(raw)
		if !ok {
			return nil, fmt.Errorf(`%s: "extract" must be a table`, path)
		}
		format, _ := asString(table["format"])
		if format != "json" {
			return nil, fmt.Errorf(`%s: "extract" format must be "json"`, path)
		}
		pointer, ok := asString(table["pointer"])
		if !ok {
			return nil, fmt.Errorf(`%s: "extract" requires a "pointer" string`, path)
		}
		derived.Extract = &JSONExtract{Pointer: pointer}
	}

	if raw, ok := tree["format"]; ok {
		format, ok := asString(raw)
		if !ok {
			return nil, fmt.Errorf(`%s: "format" must be a string`, path)
		}
		derived.Format = &format
	}

	return derived, nil
}

// endpointTables accepts both decoder shapes for an array of tables:
// BurntSushi/toml produces []map[string]any, yaml.v3 produces []any.
func endpointTables(raw any) ([]map[string]any, bool) {
	switch typed := raw.(type) {
	case []map[string]any:
		return typed, true
	case []any:
		out := make([]map[string]any, 0, len(typed))
		for _, item := range typed {
			table, ok := asTable(item)
			if !ok {
				return nil, false
			}
			out = append(out, table)
		}
		return out, true
	}
	return nil, false
}

func asTable(raw any) (map[string]any, bool) {
	table, ok := raw.(map[string]any)
	return table, ok
}

func asString(raw any) (string, bool) {
	s, ok := raw.(string)
	return s, ok
}

// asUint accepts the integer shapes the decoders produce: int64 from
// TOML, int from YAML.
func asUint(raw any) (uint64, bool) {
	switch n := raw.(type) {
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case uint64:
		return n, true
	}
	return 0, false
}

func asFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func isAbsoluteURI(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// isToken reports whether s is a valid RFC 7230 token, the grammar for
// both method and header names.
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return true
}

func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}

// SortedNames returns the entry names in lexical order, giving callers
// a stable iteration order over cookie and header tables.
func SortedNames(m map[string]Overridable) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
