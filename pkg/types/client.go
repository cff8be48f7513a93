package types

import (
	"context"
	"io"
	"sync"
	"time"
)

// ProviderType represents the type of AI provider a client is built from.
type ProviderType string

const (
	ProviderTypeOpenAI ProviderType = "openai"
	ProviderTypeOllama ProviderType = "ollama"
)

// GenerateOptions carries per-request generation parameters. Zero values mean
// "use the client's configured default".
type GenerateOptions struct {
	Model       string   `json:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// TextStream is a pull-based sequence of text fragments produced by a
// streaming generation call. Next returns io.EOF after the final fragment.
// Callers must Close the stream to release the underlying transport.
type TextStream interface {
	Next() (string, error)
	Close() error
}

// Client is the capability surface of one cached provider instance. A client
// is built from one resolved configuration and is reused until the owning
// factory invalidates it.
type Client interface {
	// ProviderType returns the provider this client was built from.
	ProviderType() ProviderType

	// Model returns the model identifier this client generates with.
	Model() string

	// Generate performs a blocking, non-streaming completion and returns the
	// full response text.
	Generate(ctx context.Context, messages []ChatMessage, opts GenerateOptions) (string, error)

	// StreamGenerate starts a streaming completion. The returned stream yields
	// text fragments in production order and ends with io.EOF.
	StreamGenerate(ctx context.Context, messages []ChatMessage, opts GenerateOptions) (TextStream, error)
}

// staticTextStream replays a fixed set of fragments. It is used when a full
// response has to be presented through the TextStream interface, for example
// after a non-streaming fallback call.
type staticTextStream struct {
	fragments []string
	pos       int
}

// NewStaticTextStream returns a TextStream that yields the given fragments in
// order and then io.EOF.
func NewStaticTextStream(fragments ...string) TextStream {
	return &staticTextStream{fragments: fragments}
}

func (s *staticTextStream) Next() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

func (s *staticTextStream) Close() error { return nil }

// ClientMetrics tracks request outcomes for a single provider client.
type ClientMetrics struct {
	RequestCount    int64         `json:"request_count"`
	SuccessCount    int64         `json:"success_count"`
	ErrorCount      int64         `json:"error_count"`
	TotalLatency    time.Duration `json:"total_latency"`
	LastRequestTime time.Time     `json:"last_request_time"`
	LastError       string        `json:"last_error"`
}

// MetricsRecorder accumulates ClientMetrics under a lock. Provider
// implementations embed it to get consistent bookkeeping.
type MetricsRecorder struct {
	mu      sync.RWMutex
	metrics ClientMetrics
}

// RecordSuccess records one successful request and its latency.
func (r *MetricsRecorder) RecordSuccess(latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics.RequestCount++
	r.metrics.SuccessCount++
	r.metrics.TotalLatency += latency
	r.metrics.LastRequestTime = time.Now()
}

// RecordError records one failed request.
func (r *MetricsRecorder) RecordError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics.RequestCount++
	r.metrics.ErrorCount++
	r.metrics.LastRequestTime = time.Now()
	if err != nil {
		r.metrics.LastError = err.Error()
	}
}

// Metrics returns a snapshot of the accumulated metrics.
func (r *MetricsRecorder) Metrics() ClientMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics
}
