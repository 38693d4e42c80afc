package config

import "strings"

// Value is one request value expression. It is either a literal string
// (Constant), a string with ${...} placeholders (Template), or a nested
// request whose response body supplies the string (DerivedRequest).
type Value interface {
	isValue()
}

// Constant is a literal string value.
type Constant string

// Template is a string containing ${...} placeholders that are expanded
// at resolution time.
type Template string

// DerivedRequest obtains its value from the response body of another
// HTTP request, optionally narrowed by a JSON pointer and spliced into
// a format string.
type DerivedRequest struct {
	Request RequestTemplate
	Extract *JSONExtract
	Format  *string
}

func (Constant) isValue()       {}
func (Template) isValue()       {}
func (DerivedRequest) isValue() {}

// JSONExtract selects part of a JSON response body by RFC 6901 pointer.
type JSONExtract struct {
	Pointer string
}

// EmptyValue returns the default body value.
func EmptyValue() Value { return Constant("") }

// ClassifyString decides whether a plain string is a Constant or a
// Template. Any '{' or '}' marks a template. This is a heuristic, not a
// syntax check; malformed templates surface at resolution time.
func ClassifyString(s string) Value {
	if strings.ContainsAny(s, "{}") {
		return Template(s)
	}
	return Constant(s)
}

// Overridable wraps a cookie or header entry that an endpoint may
// delete. A Deleted entry suppresses an inherited global entry of the
// same name and is never emitted.
type Overridable struct {
	Deleted bool
	Value   Value
}

// RequestTemplate describes one request before value resolution.
type RequestTemplate struct {
	URI     string
	Method  string
	Cookies map[string]Overridable
	Headers map[string]Overridable
	Body    Value
}

// Endpoint is one entry of the hammer array.
type Endpoint struct {
	Name           string
	Request        RequestTemplate
	Count          uint64
	MaxConcurrency *uint64
	Rate           float64
}

// File is a fully loaded hammer file with global defaults already
// merged into each endpoint.
type File struct {
	Resources map[string]Value
	Hammer    []Endpoint
}
