// Package extraction resolves dot-notation field paths against
// structured LLM responses. Paths are strictly mapping-key lookups:
// no array indices, no wildcards.
package extraction

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaRequired signals that field extraction was requested for
	// a prompt that did not supply a response schema.
	ErrSchemaRequired = errors.New("field extraction requires a schema")

	// ErrMalformedPath signals an empty path or a path with an empty
	// segment (e.g. a doubled separator).
	ErrMalformedPath = errors.New("invalid field path format")
)

// FieldNotFoundError reports the exact prefix at which path resolution
// failed, not just the final segment, to aid debugging deep paths.
type FieldNotFoundError struct {
	Path string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field not found: %s", e.Path)
}

// NonContainerError reports extraction attempted against a value that
// is not a mapping or sequence.
type NonContainerError struct {
	Value interface{}
}

func (e *NonContainerError) Error() string {
	return fmt.Sprintf("cannot extract fields from non-structured data: %T", e.Value)
}

// ValidateRequest checks the preconditions for a field extraction
// request: a schema must have been supplied and the data must be a
// container (mapping or sequence).
func ValidateRequest(data interface{}, fieldPath string, hasSchema bool) error {
	if !hasSchema {
		return ErrSchemaRequired
	}
	if !isContainer(data) {
		return &NonContainerError{Value: data}
	}
	return nil
}

// Extract resolves a dot-notation field path against structured data
// and returns the value at that location. Single-segment paths resolve
// directly against a top-level mapping; multi-segment paths resolve
// left to right, each intermediate result required to be a mapping
// containing the next segment.
func Extract(data interface{}, fieldPath string) (interface{}, error) {
	if fieldPath != "" && !isContainer(data) {
		return nil, &NonContainerError{Value: data}
	}

	parts := strings.Split(fieldPath, ".")
	if fieldPath == "" || hasEmptySegment(parts) {
		return nil, ErrMalformedPath
	}

	current := data
	for i, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, &FieldNotFoundError{Path: strings.Join(parts[:i+1], ".")}
		}
		value, ok := m[part]
		if !ok {
			return nil, &FieldNotFoundError{Path: strings.Join(parts[:i+1], ".")}
		}
		current = value
	}

	return current, nil
}

func isContainer(data interface{}) bool {
	switch data.(type) {
	case map[string]interface{}, []interface{}:
		return true
	default:
		return false
	}
}

func hasEmptySegment(parts []string) bool {
	for _, part := range parts {
		if part == "" {
			return true
		}
	}
	return false
}
