package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildShape(t *testing.T) {
	schemaObj := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name":   map[string]interface{}{"type": "string", "description": "Full name"},
			"age":    map[string]interface{}{"type": "integer"},
			"score":  map[string]interface{}{"type": "number"},
			"active": map[string]interface{}{"type": "boolean"},
			"tags":   map[string]interface{}{"type": "array"},
			"extra":  map[string]interface{}{"type": "object"},
			"blob":   map[string]interface{}{"type": "mystery"},
		},
	}

	shape := BuildShape("Person", schemaObj)
	require.Len(t, shape.Fields, 7)
	assert.Equal(t, "Person", shape.Name)

	kinds := map[string]Kind{}
	for _, f := range shape.Fields {
		kinds[f.Name] = f.Kind
	}
	assert.Equal(t, KindString, kinds["name"])
	assert.Equal(t, KindInt, kinds["age"])
	assert.Equal(t, KindFloat, kinds["score"])
	assert.Equal(t, KindBool, kinds["active"])
	assert.Equal(t, KindArray, kinds["tags"])
	assert.Equal(t, KindObject, kinds["extra"])
	assert.Equal(t, KindAny, kinds["blob"])

	// Fields are sorted by name for deterministic output
	assert.Equal(t, "active", shape.Fields[0].Name)
}

func TestBuildShape_Enum(t *testing.T) {
	schemaObj := map[string]interface{}{
		"properties": map[string]interface{}{
			"status": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"active", "pending", "completed"},
			},
		},
	}

	shape := BuildShape("Status", schemaObj)
	require.Len(t, shape.Fields, 1)
	assert.Equal(t, KindEnum, shape.Fields[0].Kind)
	assert.Equal(t, []string{"active", "pending", "completed"}, shape.Fields[0].Enum)
}

// A schema without properties degrades to an empty shape instead of
// failing; extraction downstream reports the missing field.
func TestBuildShape_MissingProperties(t *testing.T) {
	shape := BuildShape("Empty", map[string]interface{}{"type": "object"})
	assert.Empty(t, shape.Fields)

	shape = BuildShape("Empty", map[string]interface{}{"properties": "not-a-map"})
	assert.Empty(t, shape.Fields)
}

func TestJSONSchema(t *testing.T) {
	shape := BuildShape("Person", map[string]interface{}{
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string", "description": "Full name"},
			"age":  map[string]interface{}{"type": "integer"},
		},
	})

	js := shape.JSONSchema()
	assert.Equal(t, "object", js["type"])
	assert.ElementsMatch(t, []string{"age", "name"}, js["required"])

	props := js["properties"].(map[string]interface{})
	name := props["name"].(map[string]interface{})
	assert.Equal(t, "string", name["type"])
	assert.Equal(t, "Full name", name["description"])
}

func TestCoerce(t *testing.T) {
	shape := BuildShape("Person", map[string]interface{}{
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string"},
			"age":  map[string]interface{}{"type": "integer"},
		},
	})

	t.Run("whole float becomes integer", func(t *testing.T) {
		out, err := shape.Coerce(map[string]interface{}{"name": "Ada", "age": 3.0})
		require.NoError(t, err)
		assert.Equal(t, int64(3), out["age"])
		assert.Equal(t, "Ada", out["name"])
	})

	t.Run("non-whole float passes through", func(t *testing.T) {
		out, err := shape.Coerce(map[string]interface{}{"name": "Ada", "age": 3.5})
		require.NoError(t, err)
		assert.Equal(t, 3.5, out["age"])
	})

	t.Run("missing required field", func(t *testing.T) {
		_, err := shape.Coerce(map[string]interface{}{"name": "Ada"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `missing required field "age"`)
	})

	t.Run("undeclared fields are dropped", func(t *testing.T) {
		out, err := shape.Coerce(map[string]interface{}{"name": "Ada", "age": 1.0, "extra": true})
		require.NoError(t, err)
		assert.NotContains(t, out, "extra")
	})

	t.Run("wrong string type", func(t *testing.T) {
		_, err := shape.Coerce(map[string]interface{}{"name": 42.0, "age": 1.0})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `field "name": expected string`)
	})
}

func TestCoerce_Enum(t *testing.T) {
	shape := BuildShape("Status", map[string]interface{}{
		"properties": map[string]interface{}{
			"status": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"active", "pending", "completed"},
			},
		},
	})

	for _, valid := range []string{"active", "pending", "completed"} {
		out, err := shape.Coerce(map[string]interface{}{"status": valid})
		require.NoError(t, err)
		assert.Equal(t, valid, out["status"])
	}

	// Literal match only: no case normalization, no synonyms
	_, err := shape.Coerce(map[string]interface{}{"status": "Active"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not one of")

	_, err = shape.Coerce(map[string]interface{}{"status": "done"})
	require.Error(t, err)
}

func TestCoerce_FloatField(t *testing.T) {
	shape := BuildShape("Score", map[string]interface{}{
		"properties": map[string]interface{}{
			"score": map[string]interface{}{"type": "number"},
		},
	})

	out, err := shape.Coerce(map[string]interface{}{"score": 0.75})
	require.NoError(t, err)
	assert.Equal(t, 0.75, out["score"])
}
