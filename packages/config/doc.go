// Package config loads and validates hammer run definitions.
//
// It provides functionality for:
//   - Decoding TOML and YAML hammer files into a typed model
//   - Canonicalizing header names so overrides compose case-insensitively
//   - Merging global cookie/header defaults into every endpoint
//   - Classifying raw values as constants, templates, or derived requests
//   - Structural validation against an embedded JSON Schema
package config
