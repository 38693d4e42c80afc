package eval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// extractJSON reads an RFC 6901 pointer out of a JSON body. String
// targets are returned verbatim, everything else as compact JSON text.
func extractJSON(body, pointer string) (string, error) {
	if !gjson.Valid(body) {
		return "", fmt.Errorf("Failed to deserialize response")
	}
	result, ok := pointerLookup(body, pointer)
	if !ok {
		return "", fmt.Errorf("Response does not contain expected value")
	}
	if result.Type == gjson.String {
		return result.Str, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(result.Raw)); err != nil {
		return result.Raw, nil
	}
	return buf.String(), nil
}

// pointerLookup translates a JSON pointer into a gjson path and
// evaluates it. The empty pointer selects the whole document; a
// non-empty pointer must start with '/'.
func pointerLookup(body, pointer string) (gjson.Result, bool) {
	if pointer == "" {
		return gjson.Parse(body), true
	}
	if !strings.HasPrefix(pointer, "/") {
		return gjson.Result{}, false
	}

	tokens := strings.Split(pointer[1:], "/")
	segments := make([]string, len(tokens))
	for i, token := range tokens {
		token = strings.ReplaceAll(token, "~1", "/")
		token = strings.ReplaceAll(token, "~0", "~")
		segments[i] = escapePathSegment(token)
	}

	result := gjson.Get(body, strings.Join(segments, "."))
	return result, result.Exists()
}

// escapePathSegment defuses the characters gjson treats specially so a
// pointer token always matches a literal key.
func escapePathSegment(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '*', '?', '\\', '|', '#', '@', '!':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
