package step

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/orchestra/internal/runtime/modelclient"
)

func TestToMessage_ToolStepCarriesIdentity(t *testing.T) {
	s := &Step{
		Role:       modelclient.RoleTool,
		Content:    "Echo: hi",
		ToolCallID: "call_1",
		Name:       "echo",
	}
	m := s.ToMessage()
	assert.Equal(t, "call_1", m.ToolCallID)
	assert.Equal(t, "echo", m.Name)
	assert.Equal(t, "Echo: hi", m.Content)
}

func TestToMessage_AssistantOmitsEmptyToolCalls(t *testing.T) {
	s := &Step{Role: modelclient.RoleAssistant, Content: "hello"}
	m := s.ToMessage()
	assert.Nil(t, m.ToolCalls)
}

func TestFromMessage_RoundTripsNonDegenerateSteps(t *testing.T) {
	reasoning := "thinking"
	original := &Step{
		ID:        "step-2",
		SessionID: "sess-1",
		RunID:     "run-1",
		Sequence:  2,
		Role:      modelclient.RoleAssistant,
		Content:   "hi there",
		ToolCalls: []modelclient.ToolCall{{ID: "c1", Type: "function", Function: modelclient.ToolCallFunction{Name: "echo", Arguments: `{"text":"hi"}`}}},
		ReasoningContent: &reasoning,
	}

	msg := original.ToMessage()
	roundTripped := FromMessage(msg, original.ID, original.Sequence, Step{
		SessionID: original.SessionID,
		RunID:     original.RunID,
	})

	require.Equal(t, original.Content, roundTripped.Content)
	require.Equal(t, original.ToolCalls, roundTripped.ToolCalls)
	require.Equal(t, original.ReasoningContent, roundTripped.ReasoningContent)
	assert.Equal(t, original.SessionID, roundTripped.SessionID)
	assert.Equal(t, original.RunID, roundTripped.RunID)
}

func TestToMessages_IsPureMapPreservingOrder(t *testing.T) {
	steps := []*Step{
		{Role: modelclient.RoleUser, Content: "first"},
		{Role: modelclient.RoleAssistant, Content: "second"},
	}
	msgs := ToMessages(steps)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
}

func TestConversation_AppendAndProject(t *testing.T) {
	conv := NewConversation([]modelclient.Message{{Role: modelclient.RoleUser, Content: "echo hi"}})
	conv.AppendAssistant(modelclient.Message{Role: modelclient.RoleAssistant, ToolCalls: []modelclient.ToolCall{{ID: "c1"}}})
	conv.AppendToolResult(modelclient.Message{Role: modelclient.RoleTool, ToolCallID: "c1", Content: "Echo: hi"})

	msgs := conv.ToLLMMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, modelclient.RoleUser, msgs[0].Role)
	assert.Equal(t, modelclient.RoleTool, msgs[2].Role)
	assert.Equal(t, 3, conv.Len())
}
