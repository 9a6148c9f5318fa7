package modelclient

// NormalizeReasoning applies the reasoning_content rule (spec §4.F.2): for
// reasoning-capable models, when the conversation's last message is a new
// user turn, reasoning_content is stripped from every prior assistant
// message before sending; when the last message is a continuation (the
// conversation ends on an assistant or tool message, e.g. a resumed tool
// loop), reasoning_content=="" is made explicit on assistants that lack
// one, since some providers distinguish "absent" from "empty" and treat
// the latter as "no further reasoning expected".
//
// The input slice is not mutated; a new slice is returned.
func NormalizeReasoning(messages []Message) []Message {
	if len(messages) == 0 {
		return messages
	}
	lastIsNewUserTurn := messages[len(messages)-1].Role == RoleUser
	empty := ""
	out := make([]Message, len(messages))
	copy(out, messages)
	for i, m := range out {
		if m.Role != RoleAssistant {
			continue
		}
		switch {
		case lastIsNewUserTurn:
			m.ReasoningContent = nil
		case m.ReasoningContent == nil:
			m.ReasoningContent = &empty
		}
		out[i] = m
	}
	return out
}

// ToolCallAccumulator folds a stream of partial ToolCallFragment values,
// keyed by their stable Index, into finalised ToolCall entries. Fragments
// whose id never arrives are dropped per spec §4.H ("entries whose id is
// still unset are dropped").
type ToolCallAccumulator struct {
	order   []int
	byIndex map[int]*pendingToolCall
}

type pendingToolCall struct {
	id, typ, name, args string
}

func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{byIndex: make(map[int]*pendingToolCall)}
}

// Add merges one fragment into the accumulator.
func (a *ToolCallAccumulator) Add(f ToolCallFragment) {
	p, ok := a.byIndex[f.Index]
	if !ok {
		p = &pendingToolCall{}
		a.byIndex[f.Index] = p
		a.order = append(a.order, f.Index)
	}
	if f.ID != nil {
		p.id = *f.ID
	}
	if f.Type != nil {
		p.typ = *f.Type
	}
	if f.Function.Name != nil {
		p.name += *f.Function.Name
	}
	if f.Function.Arguments != nil {
		p.args += *f.Function.Arguments
	}
}

// Finalize returns the merged tool calls in first-seen index order,
// dropping any whose id never arrived.
func (a *ToolCallAccumulator) Finalize() []ToolCall {
	var out []ToolCall
	for _, idx := range a.order {
		p := a.byIndex[idx]
		if p.id == "" {
			continue
		}
		typ := p.typ
		if typ == "" {
			typ = "function"
		}
		out = append(out, ToolCall{
			ID:   p.id,
			Type: typ,
			Function: ToolCallFunction{
				Name:      p.name,
				Arguments: p.args,
			},
		})
	}
	return out
}
