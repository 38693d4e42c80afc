// Package eval resolves declarative request values into concrete
// strings and builds the requests a run sends.
//
// A value is either a constant, a string with ${resources.name}
// placeholders, or a nested request whose response body supplies the
// string. Resolution memoizes each resource after its first use,
// deduplicates identical nested requests through a response cache, and
// reports cyclic resource graphs instead of deadlocking on them.
package eval
