package modelclient

import "encoding/json"

// AnthropicMessage is the wire shape the Anthropic Messages API expects:
// content is a list of typed blocks rather than a flat string, tool calls
// are "tool_use" blocks, and tool results travel inside a following user
// message as "tool_result" blocks.
type AnthropicMessage struct {
	Role    string                 `json:"role"`
	Content []AnthropicContentBlock `json:"content"`
}

type AnthropicContentBlock struct {
	Type      string `json:"type"` // "text" | "tool_use" | "tool_result"
	Text      string `json:"text,omitempty"`
	ID        string `json:"id,omitempty"`         // tool_use
	Name      string `json:"name,omitempty"`       // tool_use
	Input     any    `json:"input,omitempty"`      // tool_use, parsed arguments
	ToolUseID string `json:"tool_use_id,omitempty"` // tool_result
	Content   string `json:"content,omitempty"`    // tool_result
	IsError   bool   `json:"is_error,omitempty"`    // tool_result
}

// ToAnthropicMessages converts a provider-neutral message list to the
// Anthropic wire shape per spec §4.F.4: a top-level system string (the
// first return value), then user/assistant messages with tool uses folded
// into content blocks and tool results carried inside a following user
// message. Invalid JSON tool-call argument strings fall back to
// {"__raw_arguments__": "<string>"} rather than aborting the turn.
func ToAnthropicMessages(messages []Message) (system string, converted []AnthropicMessage) {
	var pendingToolResults []AnthropicContentBlock

	flushToolResults := func() {
		if len(pendingToolResults) == 0 {
			return
		}
		converted = append(converted, AnthropicMessage{Role: "user", Content: pendingToolResults})
		pendingToolResults = nil
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if system == "" {
				system = m.Content
			} else {
				system = system + "\n" + m.Content
			}
		case RoleUser:
			flushToolResults()
			converted = append(converted, AnthropicMessage{
				Role:    "user",
				Content: []AnthropicContentBlock{{Type: "text", Text: m.Content}},
			})
		case RoleAssistant:
			flushToolResults()
			var blocks []AnthropicContentBlock
			if m.Content != "" {
				blocks = append(blocks, AnthropicContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var input any
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
					input = map[string]any{"__raw_arguments__": tc.Function.Arguments}
				}
				blocks = append(blocks, AnthropicContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: input,
				})
			}
			converted = append(converted, AnthropicMessage{Role: "assistant", Content: blocks})
		case RoleTool:
			pendingToolResults = append(pendingToolResults, AnthropicContentBlock{
				Type:      "tool_result",
				ToolUseID: m.ToolCallID,
				Content:   m.Content,
			})
		}
	}
	flushToolResults()
	return system, converted
}
