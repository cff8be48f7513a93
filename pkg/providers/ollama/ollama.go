// Package ollama implements the provider client for a local Ollama server
// using its native chat API with NDJSON streaming.
package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	internalhttp "github.com/cecil-the-coder/chat-runtime-kit/internal/http"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/config"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

// DefaultBaseURL is the local Ollama endpoint used when none is configured.
const DefaultBaseURL = "http://localhost:11434"

// Client is a provider client backed by a local Ollama server. No credential
// is required; only the endpoint and model are validated.
type Client struct {
	types.MetricsRecorder

	http    *internalhttp.Client
	baseURL string
	model   string
	logger  *zap.Logger
}

// New builds a client from a resolved configuration.
func New(cfg config.Effective, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		return nil, types.NewConfigurationError(types.ProviderTypeOllama, "model", "model must be set")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		http:    internalhttp.NewClient(internalhttp.ClientConfig{Timeout: timeout}),
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   cfg.Model,
		logger:  logger,
	}, nil
}

// ProviderType returns the provider id this client was built from.
func (c *Client) ProviderType() types.ProviderType { return types.ProviderTypeOllama }

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// chatRequest is the native Ollama chat API request body.
type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is one NDJSON object from the chat endpoint. In non-streaming
// mode it is the entire response.
type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// Generate performs a blocking, non-streaming completion.
func (c *Client) Generate(ctx context.Context, messages []types.ChatMessage, opts types.GenerateOptions) (string, error) {
	start := time.Now()
	resp, err := c.http.PostJSON(ctx, c.baseURL+"/api/chat", c.buildRequest(messages, opts, false))
	if err != nil {
		c.RecordError(err)
		return "", c.generationError("generate", opts, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != nethttp.StatusOK {
		err := internalhttp.ReadError(resp)
		c.RecordError(err)
		return "", c.generationError("generate", opts, err)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.RecordError(err)
		return "", c.generationError("generate", opts, fmt.Errorf("failed to decode response: %w", err))
	}
	if parsed.Error != "" {
		err := fmt.Errorf("ollama: %s", parsed.Error)
		c.RecordError(err)
		return "", c.generationError("generate", opts, err)
	}

	c.RecordSuccess(time.Since(start))
	return parsed.Message.Content, nil
}

// StreamGenerate starts a streaming completion over NDJSON.
func (c *Client) StreamGenerate(ctx context.Context, messages []types.ChatMessage, opts types.GenerateOptions) (types.TextStream, error) {
	resp, err := c.http.PostJSON(ctx, c.baseURL+"/api/chat", c.buildRequest(messages, opts, true))
	if err != nil {
		c.RecordError(err)
		return nil, c.generationError("stream_generate", opts, err)
	}
	if resp.StatusCode != nethttp.StatusOK {
		err := internalhttp.ReadError(resp)
		c.RecordError(err)
		return nil, c.generationError("stream_generate", opts, err)
	}

	c.logger.Debug("streaming completion started",
		zap.String("model", c.requestModel(opts)),
		zap.String("base_url", c.baseURL))
	return &ndjsonStream{
		body:     resp.Body,
		scanner:  bufio.NewScanner(resp.Body),
		recorder: &c.MetricsRecorder,
		started:  time.Now(),
	}, nil
}

func (c *Client) buildRequest(messages []types.ChatMessage, opts types.GenerateOptions, stream bool) chatRequest {
	converted := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		converted = append(converted, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	options := make(map[string]any)
	if opts.Temperature != 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens != 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if len(options) == 0 {
		options = nil
	}

	return chatRequest{
		Model:    c.requestModel(opts),
		Messages: converted,
		Stream:   stream,
		Options:  options,
	}
}

func (c *Client) requestModel(opts types.GenerateOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return c.model
}

func (c *Client) generationError(operation string, opts types.GenerateOptions, err error) error {
	return &types.GenerationError{
		Provider:  types.ProviderTypeOllama,
		Model:     c.requestModel(opts),
		Operation: operation,
		Err:       err,
	}
}

// ndjsonStream decodes one NDJSON object per Next call, yielding message
// content until the server marks the stream done.
type ndjsonStream struct {
	body     io.ReadCloser
	scanner  *bufio.Scanner
	recorder *types.MetricsRecorder
	started  time.Time
	done     bool
}

func (s *ndjsonStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		var parsed chatResponse
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			// Malformed interleaved lines are skipped, matching the lenient
			// handling of other NDJSON consumers.
			continue
		}
		if parsed.Error != "" {
			s.done = true
			err := fmt.Errorf("ollama: %s", parsed.Error)
			s.recorder.RecordError(err)
			return "", err
		}
		if parsed.Done {
			s.done = true
			s.recorder.RecordSuccess(time.Since(s.started))
			if parsed.Message.Content != "" {
				return parsed.Message.Content, nil
			}
			return "", io.EOF
		}
		if parsed.Message.Content != "" {
			return parsed.Message.Content, nil
		}
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		s.recorder.RecordError(err)
		return "", fmt.Errorf("error reading stream: %w", err)
	}
	s.recorder.RecordSuccess(time.Since(s.started))
	return "", io.EOF
}

func (s *ndjsonStream) Close() error {
	s.done = true
	return s.body.Close()
}
