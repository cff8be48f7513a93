// Package openai implements the provider client for OpenAI and
// OpenAI-compatible endpoints, including streaming chat completion.
package openai

import (
	"context"
	"errors"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cecil-the-coder/chat-runtime-kit/pkg/config"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/ratelimit"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

// DefaultRequestsPerMinute is the client-side budget when the caller does not
// size the limiter to a plan tier.
const DefaultRequestsPerMinute = 60

// Client is a provider client backed by the OpenAI chat completion API.
type Client struct {
	types.MetricsRecorder

	api     *openai.Client
	model   string
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// New builds a client from a resolved configuration. A missing credential or
// model is a ConfigurationError; nothing is cached behind one.
func New(ctx context.Context, cfg config.Effective, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		return nil, types.NewConfigurationError(types.ProviderTypeOpenAI, "model", "model must be set")
	}
	key, err := cfg.ResolveAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	apiConfig := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:     openai.NewClientWithConfig(apiConfig),
		model:   cfg.Model,
		limiter: ratelimit.PerMinute(DefaultRequestsPerMinute),
		logger:  logger,
	}, nil
}

// ProviderType returns the provider id this client was built from.
func (c *Client) ProviderType() types.ProviderType { return types.ProviderTypeOpenAI }

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Generate performs a blocking, non-streaming completion.
func (c *Client) Generate(ctx context.Context, messages []types.ChatMessage, opts types.GenerateOptions) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, c.buildRequest(messages, opts))
	if err != nil {
		c.RecordError(err)
		return "", &types.GenerationError{
			Provider:  types.ProviderTypeOpenAI,
			Model:     c.requestModel(opts),
			Operation: "generate",
			Err:       err,
		}
	}
	c.RecordSuccess(time.Since(start))

	if len(resp.Choices) == 0 {
		return "", &types.GenerationError{
			Provider:  types.ProviderTypeOpenAI,
			Model:     c.requestModel(opts),
			Operation: "generate",
			Err:       errors.New("response contained no choices"),
		}
	}
	return resp.Choices[0].Message.Content, nil
}

// StreamGenerate starts a streaming completion. Fragment order follows the
// provider's delta order; the stream ends with io.EOF.
func (c *Client) StreamGenerate(ctx context.Context, messages []types.ChatMessage, opts types.GenerateOptions) (types.TextStream, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, c.buildRequest(messages, opts))
	if err != nil {
		c.RecordError(err)
		return nil, &types.GenerationError{
			Provider:  types.ProviderTypeOpenAI,
			Model:     c.requestModel(opts),
			Operation: "stream_generate",
			Err:       err,
		}
	}

	c.logger.Debug("streaming completion started", zap.String("model", c.requestModel(opts)))
	return &textStream{stream: stream, recorder: &c.MetricsRecorder, started: time.Now()}, nil
}

func (c *Client) buildRequest(messages []types.ChatMessage, opts types.GenerateOptions) openai.ChatCompletionRequest {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return openai.ChatCompletionRequest{
		Model:       c.requestModel(opts),
		Messages:    converted,
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
		Stop:        opts.Stop,
	}
}

func (c *Client) requestModel(opts types.GenerateOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return c.model
}

// textStream adapts the SDK stream to types.TextStream, skipping empty
// deltas.
type textStream struct {
	stream   *openai.ChatCompletionStream
	recorder *types.MetricsRecorder
	started  time.Time
	finished bool
}

func (s *textStream) Next() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			if !s.finished {
				s.finished = true
				s.recorder.RecordSuccess(time.Since(s.started))
			}
			return "", io.EOF
		}
		if err != nil {
			if !s.finished {
				s.finished = true
				s.recorder.RecordError(err)
			}
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *textStream) Close() error { return s.stream.Close() }
