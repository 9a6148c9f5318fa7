package modelclient

// ToolDef is the provider-facing projection of a tool's name, description,
// and JSON-Schema, passed to Stream alongside messages. The runtime's own
// Tool type (see toolexec) carries this plus the execute function; only the
// data half crosses into ModelClient.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}
