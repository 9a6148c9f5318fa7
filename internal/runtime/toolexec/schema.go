package toolexec

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateSchema compiles a tool's Schema as a JSON Schema document,
// catching a malformed schema at registration time rather than letting it
// surface later as a confusing argument-validation failure (or silently
// advertising a broken schema to the model).
func ValidateSchema(toolName string, schema map[string]any) error {
	if schema == nil {
		return nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("toolexec: marshal schema for tool %q: %w", toolName, err)
	}
	if _, err := jsonschema.CompileString("tool://"+toolName, string(raw)); err != nil {
		return fmt.Errorf("toolexec: invalid schema for tool %q: %w", toolName, err)
	}
	return nil
}
