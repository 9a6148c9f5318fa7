package step

import "github.com/runloom/orchestra/internal/runtime/modelclient"

// Conversation encapsulates the mutable message list AgentExecutor threads
// through a loop iteration. Spec §9 calls this out explicitly: the source
// mutates a single list by reference across iterations; this type makes
// the mutation sites explicit and keeps projection to LLM messages pure.
type Conversation struct {
	messages []modelclient.Message
}

// NewConversation seeds a Conversation from an initial message list
// (system + history + the new user message).
func NewConversation(initial []modelclient.Message) *Conversation {
	c := &Conversation{}
	c.messages = append(c.messages, initial...)
	return c
}

// AppendAssistant appends a finalised assistant message.
func (c *Conversation) AppendAssistant(m modelclient.Message) {
	c.messages = append(c.messages, m)
}

// AppendToolResult appends a tool result message.
func (c *Conversation) AppendToolResult(m modelclient.Message) {
	c.messages = append(c.messages, m)
}

// ToLLMMessages returns the normalised, provider-ready message list. It is
// always a fresh copy: callers must not mutate it.
func (c *Conversation) ToLLMMessages() []modelclient.Message {
	return modelclient.NormalizeReasoning(c.messages)
}

// Len reports the current message count, mostly useful in tests.
func (c *Conversation) Len() int { return len(c.messages) }
