// Package testutil provides shared testing utilities, mocks, and fixtures
// for use across the chat-runtime-kit test suite.
package testutil

import (
	"context"
	"io"
	"sync"

	"github.com/cecil-the-coder/chat-runtime-kit/pkg/retrieval"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

// MockClient is a configurable types.Client for tests. It replays canned
// responses and records calls.
type MockClient struct {
	mu sync.Mutex

	Provider types.ProviderType
	ModelID  string

	// GenerateText is returned by Generate when GenerateErr is nil.
	GenerateText string
	GenerateErr  error

	// StreamChunks are yielded by StreamGenerate when StreamErr is nil.
	StreamChunks []string
	StreamErr    error

	// MidStreamErr, when set, surfaces after StreamChunks are exhausted
	// instead of io.EOF.
	MidStreamErr error

	GenerateCalls int
	StreamCalls   int
}

// ProviderType implements types.Client.
func (m *MockClient) ProviderType() types.ProviderType {
	if m.Provider == "" {
		return types.ProviderType("mock")
	}
	return m.Provider
}

// Model implements types.Client.
func (m *MockClient) Model() string {
	if m.ModelID == "" {
		return "mock-model"
	}
	return m.ModelID
}

// Generate implements types.Client.
func (m *MockClient) Generate(_ context.Context, _ []types.ChatMessage, _ types.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.GenerateCalls++
	m.mu.Unlock()
	if m.GenerateErr != nil {
		return "", m.GenerateErr
	}
	return m.GenerateText, nil
}

// StreamGenerate implements types.Client.
func (m *MockClient) StreamGenerate(_ context.Context, _ []types.ChatMessage, _ types.GenerateOptions) (types.TextStream, error) {
	m.mu.Lock()
	m.StreamCalls++
	m.mu.Unlock()
	if m.StreamErr != nil {
		return nil, m.StreamErr
	}
	return &mockTextStream{chunks: m.StreamChunks, finalErr: m.MidStreamErr}, nil
}

type mockTextStream struct {
	chunks   []string
	finalErr error
	pos      int
	closed   bool
}

func (s *mockTextStream) Next() (string, error) {
	if s.pos >= len(s.chunks) {
		if s.finalErr != nil {
			return "", s.finalErr
		}
		return "", io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *mockTextStream) Close() error {
	s.closed = true
	return nil
}

// MockRetriever returns canned passages for every query.
type MockRetriever struct {
	Passages []retrieval.Passage
	Err      error

	mu      sync.Mutex
	Queries []string
}

// SimilaritySearch implements retrieval.Retriever.
func (m *MockRetriever) SimilaritySearch(_ context.Context, query string, k int) ([]retrieval.Passage, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Passages) > k {
		return m.Passages[:k], nil
	}
	return m.Passages, nil
}

// MockAgent returns a canned answer for every question.
type MockAgent struct {
	Answer string
	Err    error

	mu    sync.Mutex
	Calls int
}

// Run implements pipeline.AgentRunner.
func (m *MockAgent) Run(_ context.Context, _ string, _ []types.ChatMessage) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	return m.Answer, nil
}
