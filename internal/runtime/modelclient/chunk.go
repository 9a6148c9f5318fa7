package modelclient

// Usage is the normalised token accounting every backend must produce,
// regardless of how the provider names its fields.
type Usage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	TotalTokens         int `json:"total_tokens"`
	CachedTokens        int `json:"cached_tokens,omitempty"`
	CacheCreationTokens int `json:"cache_creation_tokens,omitempty"`
}

// ToolCallFragment is a partial tool call keyed by its stable streaming
// index; the executor merges fragments sharing the same Index before
// finalising a Step.
type ToolCallFragment struct {
	Index    int                      `json:"index"`
	ID       *string                  `json:"id,omitempty"`
	Type     *string                  `json:"type,omitempty"`
	Function ToolCallFunctionFragment `json:"function"`
}

// ToolCallFunctionFragment is the partial name/arguments pair of one
// streamed tool-call fragment; either field may be nil when this chunk
// didn't carry it.
type ToolCallFunctionFragment struct {
	Name      *string `json:"name,omitempty"`
	Arguments *string `json:"arguments,omitempty"`
}

// FinishReason is the provider's terminal signal for one stream.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishContent   FinishReason = "content_filter"
)

// Chunk is one item of the lazy sequence ModelClient.Stream produces. A
// Chunk carries at most one of Content, ReasoningContent, or ToolCalls;
// Usage is only ever populated on the final chunk of a stream.
type Chunk struct {
	Content          string
	ReasoningContent string
	ToolCalls        []ToolCallFragment
	Usage            *Usage
	FinishReason     FinishReason
}
