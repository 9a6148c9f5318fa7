package toolexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSchema_NilSchemaIsAllowed(t *testing.T) {
	assert.NoError(t, ValidateSchema("no_schema_tool", nil))
}

func TestValidateSchema_AcceptsWellFormedObjectSchema(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
		"required": []any{"query"},
	}
	assert.NoError(t, ValidateSchema("search", schema))
}

func TestValidateSchema_RejectsInvalidTypeValue(t *testing.T) {
	schema := map[string]any{
		"type": "obbject", // not a valid JSON Schema "type" enum value
	}
	err := ValidateSchema("broken", schema)
	assert.Error(t, err)
}

func TestValidateSchema_RejectsSelfContradictoryNumericBounds(t *testing.T) {
	schema := map[string]any{
		"type":    "number",
		"minimum": 10,
		"maximum": -1,
	}
	// santhosh-tekuri/jsonschema compiles this fine syntactically (bounds
	// are a runtime validation concern, not a schema shape error) — this
	// test documents that ValidateSchema only catches structurally invalid
	// schemas, not semantically unsatisfiable ones.
	assert.NoError(t, ValidateSchema("contradictory", schema))
}
