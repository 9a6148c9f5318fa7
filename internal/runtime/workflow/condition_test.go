package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCondition_EmptyIsAlwaysTrue(t *testing.T) {
	c, err := ParseCondition("")
	require.NoError(t, err)
	assert.True(t, c.Evaluate(nil))
}

func TestParseCondition_VariableTruthiness(t *testing.T) {
	c, err := ParseCondition("{classify}")
	require.NoError(t, err)
	assert.True(t, c.Evaluate(map[string]any{"classify": "tech"}))
	assert.False(t, c.Evaluate(map[string]any{}))
}

func TestParseCondition_Negation(t *testing.T) {
	c, err := ParseCondition("not {classify}")
	require.NoError(t, err)
	assert.True(t, c.Evaluate(map[string]any{}))
	assert.False(t, c.Evaluate(map[string]any{"classify": "tech"}))
}

func TestParseCondition_Contains(t *testing.T) {
	c, err := ParseCondition("{classify} contains 'tech'")
	require.NoError(t, err)
	assert.True(t, c.Evaluate(map[string]any{"classify": "rust lifetimes are tech"}))
	assert.False(t, c.Evaluate(map[string]any{"classify": "how are you"}))
}

func TestParseCondition_NumericComparison(t *testing.T) {
	c, err := ParseCondition("{loop.iteration} >= 2")
	require.NoError(t, err)
	assert.True(t, c.Evaluate(map[string]any{"loop": map[string]any{"iteration": 2.0}}))
	assert.False(t, c.Evaluate(map[string]any{"loop": map[string]any{"iteration": 1.0}}))
}

func TestParseCondition_AndOrPrecedence(t *testing.T) {
	c, err := ParseCondition("{a} and {b} or {c}")
	require.NoError(t, err)
	// (a and b) or c
	assert.True(t, c.Evaluate(map[string]any{"a": "x", "b": "y"}))
	assert.True(t, c.Evaluate(map[string]any{"c": "z"}))
	assert.False(t, c.Evaluate(map[string]any{"a": "x"}))
}

func TestParseCondition_BooleanLiterals(t *testing.T) {
	c, err := ParseCondition("false")
	require.NoError(t, err)
	assert.False(t, c.Evaluate(nil))

	c2, err := ParseCondition("true")
	require.NoError(t, err)
	assert.True(t, c2.Evaluate(nil))
}
