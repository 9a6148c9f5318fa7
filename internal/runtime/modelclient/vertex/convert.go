package vertex

import (
	"encoding/json"

	"google.golang.org/genai"

	"github.com/runloom/orchestra/internal/runtime/modelclient"
)

// toGeminiContents converts provider-neutral messages to Gemini's wire
// shape: Gemini has no "system" role, so system messages are collected
// separately and sent as SystemInstruction; assistant tool calls become
// FunctionCall parts on a "model" message, and tool results become
// FunctionResponse parts on a following "user" message.
func toGeminiContents(messages []modelclient.Message) (system string, contents []*genai.Content) {
	for _, m := range messages {
		switch m.Role {
		case modelclient.RoleSystem:
			if system == "" {
				system = m.Content
			} else {
				system = system + "\n" + m.Content
			}

		case modelclient.RoleUser:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})

		case modelclient.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					args = map[string]any{"__raw_arguments__": tc.Function.Arguments}
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Function.Name, Args: args},
				})
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})

		case modelclient.RoleTool:
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolCallID,
						Name:     m.Name,
						Response: map[string]any{"result": m.Content},
					},
				}},
			})
		}
	}
	return system, contents
}

// toGeminiTools projects ModelClient's provider-neutral ToolDefs into a
// single genai.Tool carrying one FunctionDeclaration per def.
func toGeminiTools(defs []modelclient.ToolDef) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  toGeminiSchema(d.Schema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toGeminiSchema converts a JSON-Schema object into genai.Schema.
func toGeminiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGeminiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGeminiSchema(items)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}
	return s
}
