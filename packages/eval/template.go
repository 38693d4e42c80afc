package eval

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// expand scans a template left to right, replacing each ${...}
// placeholder with the callback result for its contents. "$$" yields a
// literal '$'. Placeholders may not contain '$' or '{'.
func expand(template string, callback func(spec string) (string, error)) (string, error) {
	var out strings.Builder
	out.Grow(len(template))

	for i := 0; i < len(template); {
		if template[i] != '$' {
			out.WriteByte(template[i])
			i++
			continue
		}
		if i+1 >= len(template) {
			return "", fmt.Errorf("Unexpected EOF encountered after '$'")
		}
		switch next := template[i+1]; next {
		case '$':
			out.WriteByte('$')
			i += 2
		case '{':
			end := i + 2
			for {
				if end >= len(template) {
					return "", fmt.Errorf("Unexpected EOF encountered while parsing format specifier")
				}
				c := template[end]
				if c == '$' || c == '{' {
					return "", fmt.Errorf("Format specifiers cannot contain '%c'", c)
				}
				if c == '}' {
					break
				}
				end++
			}
			resolved, err := callback(template[i+2 : end])
			if err != nil {
				return "", err
			}
			out.WriteString(resolved)
			i = end + 1
		default:
			// next is only the lead byte; report the whole character.
			r, _ := utf8.DecodeRuneInString(template[i+1:])
			return "", fmt.Errorf("Unexpected '%c' encountered after '$', expected either '{' or '$'", r)
		}
	}
	return out.String(), nil
}
