// Package vertex is a modelclient.Client backend for Gemini models, calling
// either Vertex AI (GCP project/location + Application Default Credentials)
// or the Gemini Developer API (a bare API key) through
// google.golang.org/genai, depending on which Config fields are set.
package vertex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2/google"
	"google.golang.org/genai"

	"github.com/runloom/orchestra/internal/runtime/modelclient"
)

const (
	// cloudPlatformScope is the OAuth2 scope Vertex AI calls are authorized under.
	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

	// DefaultModel is the default Gemini chat model.
	DefaultModel = "gemini-3-flash-preview"

	// DefaultMaxRetries is the default number of attempts per Stream call,
	// the first attempt included.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the base delay for exponential backoff.
	DefaultBaseDelay = 100 * time.Millisecond

	// DefaultMaxDelay is the maximum delay for exponential backoff.
	DefaultMaxDelay = 10 * time.Second
)

// Config holds the configuration for a Gemini Client. Either GoogleAPIKey,
// or both ProjectID and Location, must be set.
type Config struct {
	// ProjectID and Location select the Vertex AI backend, authenticated via
	// Application Default Credentials.
	ProjectID string
	Location  string

	// GoogleAPIKey selects the Gemini Developer API backend instead, and
	// takes priority over ProjectID/Location when both are set.
	GoogleAPIKey string

	Model           string
	Temperature     float64
	MaxOutputTokens int

	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithMaxRetries sets the maximum number of attempts per Stream call, the
// first attempt included.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// Client implements modelclient.Client against the Gemini streaming API.
type Client struct {
	genai           *genai.Client
	model           string
	temperature     float64
	maxOutputTokens int
	log             *slog.Logger

	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewClient constructs a Client, resolving credentials for whichever
// backend Config selects.
func NewClient(ctx context.Context, cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	gc := &genai.ClientConfig{}
	switch {
	case cfg.GoogleAPIKey != "":
		gc.APIKey = cfg.GoogleAPIKey
		gc.Backend = genai.BackendGeminiAPI
	case cfg.ProjectID != "" && cfg.Location != "":
		creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("vertex: find default credentials: %w", err)
		}
		gc.Project = cfg.ProjectID
		gc.Location = cfg.Location
		gc.Backend = genai.BackendVertexAI
		gc.Credentials = creds
	default:
		return nil, fmt.Errorf("vertex: either GoogleAPIKey or ProjectID+Location is required")
	}

	genaiClient, err := genai.NewClient(ctx, gc)
	if err != nil {
		return nil, fmt.Errorf("vertex: construct genai client: %w", err)
	}

	c := &Client{
		genai:           genaiClient,
		model:           cfg.Model,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		log:             slog.Default(),
		maxRetries:      DefaultMaxRetries,
		baseDelay:       DefaultBaseDelay,
		maxDelay:        DefaultMaxDelay,
	}
	if cfg.MaxRetries > 0 {
		c.maxRetries = cfg.MaxRetries
	}
	if cfg.BaseDelay > 0 {
		c.baseDelay = cfg.BaseDelay
	}
	if cfg.MaxDelay > 0 {
		c.maxDelay = cfg.MaxDelay
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string  { return "vertex-gemini" }
func (c *Client) Model() string { return c.model }

// Stream implements modelclient.Client, converting the provider-neutral
// request into Gemini's Content/Tool shape and relaying
// GenerateContentStream chunks as modelclient.Chunk values.
func (c *Client) Stream(ctx context.Context, req modelclient.StreamRequest) (<-chan modelclient.Chunk, <-chan error, error) {
	normalized := modelclient.NormalizeReasoning(req.Messages)
	system, contents := toGeminiContents(normalized)

	genConfig := &genai.GenerateContentConfig{}
	if system != "" {
		genConfig.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if c.temperature > 0 {
		genConfig.Temperature = genai.Ptr(float32(c.temperature))
	}
	if c.maxOutputTokens > 0 {
		genConfig.MaxOutputTokens = int32(c.maxOutputTokens)
	}
	if len(req.Tools) > 0 {
		genConfig.Tools = toGeminiTools(req.Tools)
	}

	chunks := make(chan modelclient.Chunk)
	errCh := make(chan error, 1)
	go c.run(ctx, contents, genConfig, chunks, errCh)
	return chunks, errCh, nil
}

func (c *Client) run(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig, chunks chan<- modelclient.Chunk, errCh chan<- error) {
	defer close(chunks)
	defer close(errCh)

	err := modelclient.WithRetry(ctx, c.maxRetries, c.baseDelay, c.maxDelay, func(ctx context.Context) error {
		return c.attempt(ctx, contents, cfg, chunks)
	})
	if err != nil {
		errCh <- err
	}
}

// attempt runs one streaming request end to end. Only a failure discovered
// before any chunk was emitted is classified as retryable, mirroring the
// anthropic backend's attempt/retry split.
func (c *Client) attempt(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig, chunks chan<- modelclient.Chunk) error {
	var usage modelclient.Usage
	var finish modelclient.FinishReason
	emittedAny := false
	hadFunctionCall := false
	toolIndex := 0

	for genResp, err := range c.genai.Models.GenerateContentStream(ctx, c.model, contents, cfg) {
		if err != nil {
			if !emittedAny {
				return &modelclient.RetryableError{Err: err}
			}
			return err
		}

		if genResp.UsageMetadata != nil {
			usage = modelclient.Usage{
				InputTokens:  int(genResp.UsageMetadata.PromptTokenCount),
				OutputTokens: int(genResp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:  int(genResp.UsageMetadata.TotalTokenCount),
			}
		}
		if len(genResp.Candidates) == 0 || genResp.Candidates[0].Content == nil {
			continue
		}

		candidate := genResp.Candidates[0]
		if candidate.FinishReason != "" {
			finish = mapFinishReason(candidate.FinishReason)
		}

		for _, part := range candidate.Content.Parts {
			switch {
			case part.Text != "":
				if err := send(ctx, chunks, modelclient.Chunk{Content: part.Text}); err != nil {
					return err
				}
				emittedAny = true

			case part.FunctionCall != nil:
				args, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					return fmt.Errorf("vertex: marshal function call args: %w", err)
				}
				id := part.FunctionCall.ID
				if id == "" {
					id = uuid.NewString()
				}
				name := part.FunctionCall.Name
				argsStr := string(args)
				frag := modelclient.ToolCallFragment{
					Index:    toolIndex,
					ID:       &id,
					Function: modelclient.ToolCallFunctionFragment{Name: &name, Arguments: &argsStr},
				}
				toolIndex++
				hadFunctionCall = true
				if err := send(ctx, chunks, modelclient.Chunk{ToolCalls: []modelclient.ToolCallFragment{frag}}); err != nil {
					return err
				}
				emittedAny = true
			}
		}
	}

	if hadFunctionCall {
		finish = modelclient.FinishToolCalls
	}
	if err := send(ctx, chunks, modelclient.Chunk{Usage: &usage, FinishReason: finish}); err != nil {
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

func mapFinishReason(reason genai.FinishReason) modelclient.FinishReason {
	switch reason {
	case genai.FinishReasonStop:
		return modelclient.FinishStop
	case genai.FinishReasonMaxTokens:
		return modelclient.FinishLength
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return modelclient.FinishContent
	default:
		return modelclient.FinishStop
	}
}
