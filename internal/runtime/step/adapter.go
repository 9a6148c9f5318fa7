package step

import "github.com/runloom/orchestra/internal/runtime/modelclient"

// ToMessage projects a Step to the provider-neutral message shape (spec
// §4.B). Role-specific rules: user/assistant include content; assistant
// includes tool_calls when present; reasoning_content is preserved
// verbatim; tool steps include tool_call_id, name, and content.
func (s *Step) ToMessage() modelclient.Message {
	m := modelclient.Message{
		Role:    s.Role,
		Content: s.Content,
	}
	switch s.Role {
	case modelclient.RoleAssistant:
		if len(s.ToolCalls) > 0 {
			m.ToolCalls = s.ToolCalls
		}
		m.ReasoningContent = s.ReasoningContent
	case modelclient.RoleTool:
		m.ToolCallID = s.ToolCallID
		m.Name = s.Name
	}
	return m
}

// ToMessages is a pure map over an already-ordered list of Steps (spec
// §4.B: "ordering responsibility lies with the caller's filter").
func ToMessages(steps []*Step) []modelclient.Message {
	out := make([]modelclient.Message, len(steps))
	for i, s := range steps {
		out[i] = s.ToMessage()
	}
	return out
}

// FromMessage constructs a Step from a provider-neutral message plus the
// identity fields the message itself doesn't carry. It is the inverse of
// ToMessage for every role except "assistant with empty content and no
// tool_calls" (spec P2), which both adapters treat as a degenerate case
// since such a message carries no information to round-trip.
func FromMessage(m modelclient.Message, id string, seq int, base Step) *Step {
	s := base
	s.ID = id
	s.Sequence = seq
	s.Role = m.Role
	s.Content = m.Content
	s.ToolCalls = m.ToolCalls
	s.ToolCallID = m.ToolCallID
	s.Name = m.Name
	s.ReasoningContent = m.ReasoningContent
	return &s
}
