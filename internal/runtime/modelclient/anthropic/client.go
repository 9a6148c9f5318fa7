// Package anthropic is a modelclient.Client backend for Anthropic's Claude
// Messages API, adapting github.com/anthropics/anthropic-sdk-go's streaming
// events into the provider-neutral modelclient.Chunk sequence.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/runloom/orchestra/internal/runtime/modelclient"
)

// MessagesClient captures the subset of the SDK used here so tests can pass
// a fake in place of *sdk.MessageService.
type MessagesClient interface {
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Config configures a Client. APIKey is required; everything else has a
// sensible default mirroring typical Claude deployments.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	MaxRetries int
	RetryBase  time.Duration
	RetryMax   time.Duration
}

// Client implements modelclient.Client against Anthropic's Messages API.
type Client struct {
	msg        MessagesClient
	model      string
	maxTokens  int
	maxRetries int
	retryBase  time.Duration
	retryMax   time.Duration
}

// New constructs a Client from raw configuration, building its own SDK
// client from APIKey/BaseURL.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	sdkClient := sdk.NewClient(opts...)
	return NewWithMessagesClient(&sdkClient.Messages, cfg)
}

// NewWithMessagesClient builds a Client around an already-constructed
// MessagesClient, letting callers (and tests) supply a fake.
func NewWithMessagesClient(msg MessagesClient, cfg Config) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = time.Second
	}
	retryMax := cfg.RetryMax
	if retryMax <= 0 {
		retryMax = 30 * time.Second
	}
	return &Client{
		msg:        msg,
		model:      model,
		maxTokens:  maxTokens,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		retryMax:   retryMax,
	}, nil
}

func (c *Client) Name() string  { return "anthropic" }
func (c *Client) Model() string { return c.model }

// Stream implements modelclient.Client. The channel is populated by a
// goroutine that converts the messages into Anthropic's wire format, opens
// a streaming request (retrying transparently on transient pre-first-chunk
// failures), and turns SSE events into Chunks.
func (c *Client) Stream(ctx context.Context, req modelclient.StreamRequest) (<-chan modelclient.Chunk, <-chan error, error) {
	normalized := modelclient.NormalizeReasoning(req.Messages)
	system, converted := modelclient.ToAnthropicMessages(normalized)
	messages := toSDKMessages(converted)

	tools, err := toSDKTools(req.Tools)
	if err != nil {
		return nil, nil, fmt.Errorf("anthropic: %w", err)
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		Messages:  messages,
		MaxTokens: int64(c.maxTokens),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	chunks := make(chan modelclient.Chunk)
	errCh := make(chan error, 1)

	go c.run(ctx, params, chunks, errCh)
	return chunks, errCh, nil
}

func (c *Client) run(ctx context.Context, params sdk.MessageNewParams, chunks chan<- modelclient.Chunk, errCh chan<- error) {
	defer close(chunks)
	defer close(errCh)

	err := modelclient.WithRetry(ctx, c.maxRetries, c.retryBase, c.retryMax, func(ctx context.Context) error {
		return c.attempt(ctx, params, chunks)
	})
	if err != nil {
		errCh <- err
	}
}

// attempt runs one streaming request end to end. Only a failure discovered
// before any chunk was emitted is classified as retryable — once content has
// reached the caller, retrying would replay it, so stream errors mid-flight
// are surfaced directly.
func (c *Client) attempt(ctx context.Context, params sdk.MessageNewParams, chunks chan<- modelclient.Chunk) error {
	stream := c.msg.NewStreaming(ctx, params)
	defer stream.Close()

	toolNames := make(map[int64]string)
	toolIDs := make(map[int64]string)
	var inputTokens, outputTokens int
	var finish modelclient.FinishReason
	emittedAny := false

	for stream.Next() {
		event := stream.Current()

		switch ev := event.AsAny().(type) {
		case sdk.MessageStartEvent:
			if ev.Message.Usage.InputTokens > 0 {
				inputTokens = int(ev.Message.Usage.InputTokens)
			}

		case sdk.ContentBlockStartEvent:
			if toolUse, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
				toolIDs[ev.Index] = toolUse.ID
				toolNames[ev.Index] = toolUse.Name
			}

		case sdk.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case sdk.TextDelta:
				if delta.Text == "" {
					continue
				}
				if err := send(ctx, chunks, modelclient.Chunk{Content: delta.Text}); err != nil {
					return err
				}
				emittedAny = true

			case sdk.ThinkingDelta:
				if delta.Thinking == "" {
					continue
				}
				if err := send(ctx, chunks, modelclient.Chunk{ReasoningContent: delta.Thinking}); err != nil {
					return err
				}
				emittedAny = true

			case sdk.InputJSONDelta:
				if delta.PartialJSON == "" {
					continue
				}
				frag := modelclient.ToolCallFragment{Index: int(ev.Index)}
				if id, ok := toolIDs[ev.Index]; ok {
					frag.ID = &id
				}
				if name, ok := toolNames[ev.Index]; ok {
					frag.Function.Name = &name
				}
				partial := delta.PartialJSON
				frag.Function.Arguments = &partial
				if err := send(ctx, chunks, modelclient.Chunk{ToolCalls: []modelclient.ToolCallFragment{frag}}); err != nil {
					return err
				}
				emittedAny = true
			}

		case sdk.MessageDeltaEvent:
			if ev.Usage.OutputTokens > 0 {
				outputTokens = int(ev.Usage.OutputTokens)
			}
			finish = mapStopReason(string(ev.Delta.StopReason))

		case sdk.MessageStopEvent:
			usage := modelclient.Usage{
				InputTokens:  inputTokens,
				OutputTokens: outputTokens,
				TotalTokens:  inputTokens + outputTokens,
			}
			if err := send(ctx, chunks, modelclient.Chunk{Usage: &usage, FinishReason: finish}); err != nil {
				return err
			}
			emittedAny = true
		}
	}

	if err := stream.Err(); err != nil {
		if !emittedAny {
			if retryable, ok := classifyRetryable(err); ok {
				return retryable
			}
		}
		return err
	}
	return nil
}

func send(ctx context.Context, chunks chan<- modelclient.Chunk, c modelclient.Chunk) error {
	select {
	case chunks <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func mapStopReason(reason string) modelclient.FinishReason {
	switch reason {
	case "tool_use":
		return modelclient.FinishToolCalls
	case "max_tokens":
		return modelclient.FinishLength
	case "":
		return modelclient.FinishStop
	default:
		return modelclient.FinishStop
	}
}

func classifyRetryable(err error) (*modelclient.RetryableError, bool) {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if modelclient.IsRetryableStatus(apiErr.StatusCode) {
			return &modelclient.RetryableError{StatusCode: apiErr.StatusCode, Err: err}, true
		}
		return nil, false
	}
	// Network-level failures (connection reset, DNS, timeouts) carry no
	// status code but are transient in the same way.
	return &modelclient.RetryableError{Err: err}, true
}

func toSDKMessages(messages []modelclient.AnthropicMessage) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Type {
			case "text":
				blocks = append(blocks, sdk.NewTextBlock(b.Text))
			case "tool_use":
				blocks = append(blocks, sdk.NewToolUseBlock(b.ID, b.Input, b.Name))
			case "tool_result":
				blocks = append(blocks, sdk.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
			}
		}
		if m.Role == "assistant" {
			out = append(out, sdk.NewAssistantMessage(blocks...))
		} else {
			out = append(out, sdk.NewUserMessage(blocks...))
		}
	}
	return out
}

func toSDKTools(defs []modelclient.ToolDef) ([]sdk.ToolUnionParam, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		schema := sdk.ToolInputSchemaParam{ExtraFields: d.Schema}
		tool := sdk.ToolUnionParamOfTool(schema, d.Name)
		if tool.OfTool == nil {
			return nil, fmt.Errorf("tool %q: missing tool definition after conversion", d.Name)
		}
		tool.OfTool.Description = sdk.String(d.Description)
		out = append(out, tool)
	}
	return out, nil
}
