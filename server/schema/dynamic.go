// Package schema builds response shapes from caller-supplied JSON
// schema objects. A shape is a runtime type descriptor: a set of named,
// kind-tagged fields that the provider adapter uses to request
// structured output and to validate what comes back.
//
// Shapes are built fresh per request and are not cached; building is a
// cheap, pure computation over the schema map.
package schema

import (
	"fmt"
	"sort"
)

// Kind identifies the value type a field accepts.
type Kind int

const (
	KindAny    Kind = iota // Unrecognized or missing type, accepts anything
	KindString             // JSON "string"
	KindEnum               // JSON "string" with an enum constraint
	KindInt                // JSON "integer"
	KindFloat              // JSON "number"
	KindBool               // JSON "boolean"
	KindArray              // JSON "array", loosely-typed elements
	KindObject             // JSON "object", nested mapping of any values
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "any"
	}
}

// Field describes one field of a response shape. Every field is
// required; the callers of this gateway always expect complete
// structured answers.
type Field struct {
	Name        string
	Kind        Kind
	Enum        []string // Literal allowed values, only for KindEnum
	Description string
}

// ResponseShape is a schema-derived type descriptor, ordered by field
// name for deterministic provider-facing output.
type ResponseShape struct {
	Name   string
	Fields []Field
}

// BuildShape converts a JSON-Schema-like object into a ResponseShape.
// The schema object is expected to carry a "properties" mapping; each
// entry describes one field via its "type", optional "enum", and
// optional "description".
//
// A schema without properties degrades to an empty shape rather than
// failing: downstream extraction will then report the missing field
// instead. Unknown field types become KindAny.
func BuildShape(name string, schemaObj map[string]interface{}) *ResponseShape {
	shape := &ResponseShape{Name: name}

	properties, ok := schemaObj["properties"].(map[string]interface{})
	if !ok {
		return shape
	}

	for fieldName, raw := range properties {
		fieldSchema, ok := raw.(map[string]interface{})
		if !ok {
			shape.Fields = append(shape.Fields, Field{Name: fieldName, Kind: KindAny})
			continue
		}

		field := Field{Name: fieldName}
		if desc, ok := fieldSchema["description"].(string); ok {
			field.Description = desc
		}

		fieldType, _ := fieldSchema["type"].(string)
		switch fieldType {
		case "string":
			if enumValues := stringList(fieldSchema["enum"]); enumValues != nil {
				field.Kind = KindEnum
				field.Enum = enumValues
			} else {
				field.Kind = KindString
			}
		case "integer":
			field.Kind = KindInt
		case "number":
			field.Kind = KindFloat
		case "boolean":
			field.Kind = KindBool
		case "array":
			field.Kind = KindArray
		case "object":
			field.Kind = KindObject
		default:
			field.Kind = KindAny
		}

		shape.Fields = append(shape.Fields, field)
	}

	sort.Slice(shape.Fields, func(i, j int) bool {
		return shape.Fields[i].Name < shape.Fields[j].Name
	})

	return shape
}

// stringList converts a schema enum value into a string slice. Enum
// entries that are not strings are ignored; an empty result means no
// enum constraint.
func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	values := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

// JSONSchema renders the shape as a JSON-Schema object suitable for
// requesting structured output from the provider. All fields are
// listed as required.
func (s *ResponseShape) JSONSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(s.Fields))
	required := make([]string, 0, len(s.Fields))

	for _, field := range s.Fields {
		prop := map[string]interface{}{}
		switch field.Kind {
		case KindString:
			prop["type"] = "string"
		case KindEnum:
			prop["type"] = "string"
			enum := make([]interface{}, len(field.Enum))
			for i, v := range field.Enum {
				enum[i] = v
			}
			prop["enum"] = enum
		case KindInt:
			prop["type"] = "integer"
		case KindFloat:
			prop["type"] = "number"
		case KindBool:
			prop["type"] = "boolean"
		case KindArray:
			prop["type"] = "array"
		case KindObject:
			prop["type"] = "object"
		}
		if field.Description != "" {
			prop["description"] = field.Description
		}
		properties[field.Name] = prop
		required = append(required, field.Name)
	}

	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Coerce validates a decoded provider response against the shape and
// returns a new mapping containing exactly the declared fields.
//
// Validation is deliberately narrow:
//   - every declared field must be present
//   - enum fields only accept their listed literal values, matched
//     exactly with no case normalization
//   - integer fields accept whole-number floats (3.0 becomes int64(3));
//     other representations pass through untouched
//   - string, boolean, array, and object fields must carry the matching
//     JSON type
//   - any-kind fields pass through untouched
func (s *ResponseShape) Coerce(data map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(s.Fields))

	for _, field := range s.Fields {
		value, ok := data[field.Name]
		if !ok {
			return nil, fmt.Errorf("missing required field %q", field.Name)
		}

		coerced, err := coerceValue(field, value)
		if err != nil {
			return nil, err
		}
		out[field.Name] = coerced
	}

	return out, nil
}

func coerceValue(field Field, value interface{}) (interface{}, error) {
	switch field.Kind {
	case KindString:
		if _, ok := value.(string); !ok {
			return nil, fmt.Errorf("field %q: expected string, got %T", field.Name, value)
		}
		return value, nil

	case KindEnum:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("field %q: expected string, got %T", field.Name, value)
		}
		for _, allowed := range field.Enum {
			if s == allowed {
				return s, nil
			}
		}
		return nil, fmt.Errorf("field %q: value %q is not one of %v", field.Name, s, field.Enum)

	case KindInt:
		// Providers frequently return whole numbers as floats; convert
		// only when the conversion is exact.
		if f, ok := value.(float64); ok && f == float64(int64(f)) {
			return int64(f), nil
		}
		return value, nil

	case KindFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case int:
			return float64(v), nil
		}
		return value, nil

	case KindBool:
		if _, ok := value.(bool); !ok {
			return nil, fmt.Errorf("field %q: expected boolean, got %T", field.Name, value)
		}
		return value, nil

	case KindArray:
		if _, ok := value.([]interface{}); !ok {
			return nil, fmt.Errorf("field %q: expected array, got %T", field.Name, value)
		}
		return value, nil

	case KindObject:
		if _, ok := value.(map[string]interface{}); !ok {
			return nil, fmt.Errorf("field %q: expected object, got %T", field.Name, value)
		}
		return value, nil

	default:
		return value, nil
	}
}
