package eval

import "errors"

var errFormatSpecifier = errors.New("There has to be exactly one format specifier in a format string")

// formatOne splices value into the single {} marker of format. Doubled
// braces do not count as markers and pass through unchanged.
func formatOne(format, value string) (string, error) {
	markerEnd := -1
	prevWasLBrace := false
	for i := 0; i < len(format); i++ {
		switch {
		case format[i] == '{':
			prevWasLBrace = !prevWasLBrace
		case format[i] == '}' && prevWasLBrace:
			if markerEnd >= 0 {
				return "", errFormatSpecifier
			}
			markerEnd = i
			prevWasLBrace = false
		default:
			prevWasLBrace = false
		}
	}
	if markerEnd < 0 {
		return "", errFormatSpecifier
	}
	return format[:markerEnd-1] + value + format[markerEnd+1:], nil
}
