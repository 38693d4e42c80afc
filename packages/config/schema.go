package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is the structural contract for hammer files, used by the
// check command before the typed builder runs. It accepts unknown keys
// the same way the builder does.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["hammer"],
  "properties": {
    "cookies": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "headers": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "resources": {
      "type": "object",
      "additionalProperties": {"$ref": "#/definitions/value"}
    },
    "hammer": {
      "type": "array",
      "items": {"$ref": "#/definitions/endpoint"}
    }
  },
  "definitions": {
    "value": {
      "oneOf": [
        {"type": "string"},
        {"$ref": "#/definitions/request"}
      ]
    },
    "overridable": {
      "oneOf": [
        {"type": "string"},
        {"type": "object", "maxProperties": 0},
        {"$ref": "#/definitions/request"}
      ]
    },
    "request": {
      "type": "object",
      "required": ["uri"],
      "properties": {
        "uri": {"type": "string"},
        "method": {"type": "string"},
        "cookies": {
          "type": "object",
          "additionalProperties": {"$ref": "#/definitions/overridable"}
        },
        "headers": {
          "type": "object",
          "additionalProperties": {"$ref": "#/definitions/overridable"}
        },
        "body": {"$ref": "#/definitions/value"},
        "extract": {
          "type": "object",
          "required": ["format", "pointer"],
          "properties": {
            "format": {"const": "json"},
            "pointer": {"type": "string"}
          }
        },
        "format": {"type": "string"}
      }
    },
    "endpoint": {
      "type": "object",
      "required": ["uri", "count"],
      "allOf": [{"$ref": "#/definitions/request"}],
      "properties": {
        "count": {"type": "integer", "minimum": 0},
        "max_concurrency": {"type": "integer", "minimum": 1},
        "rate": {"type": "number", "minimum": 0},
        "name": {"type": "string"}
      }
    }
  }
}`

// Check validates one file structurally against Schema and then runs
// the full typed builder on it, reporting the first problem found.
func Check(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{fmt.Errorf("Could not read config file: %w", err)}
	}
	tree, err := decode(data, FormatFor(path))
	if err != nil {
		return &LoadError{fmt.Errorf("Could not parse config file: %w", err)}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(Schema),
		gojsonschema.NewGoLoader(tree),
	)
	if err != nil {
		return &LoadError{fmt.Errorf("schema validation: %w", err)}
	}
	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}
		return &LoadError{fmt.Errorf("schema validation: %s", strings.Join(descriptions, "; "))}
	}

	if _, err := build(tree); err != nil {
		return &LoadError{err}
	}
	return nil
}
