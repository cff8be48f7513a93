package history

import (
	"context"
	"sync"
	"time"

	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

// MemoryStore is an in-memory Store for tests and ephemeral deployments.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]types.ChatMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string][]types.ChatMessage)}
}

// LoadHistory returns the conversation's messages, oldest first.
func (s *MemoryStore) LoadHistory(_ context.Context, conversationID string) ([]types.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages := s.conversations[conversationID]
	out := make([]types.ChatMessage, len(messages))
	copy(out, messages)
	return out, nil
}

// AppendMessage adds one message to the conversation.
func (s *MemoryStore) AppendMessage(_ context.Context, conversationID string, role types.MessageRole, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conversationID] = append(s.conversations[conversationID], types.ChatMessage{
		Role:      role,
		Content:   text,
		Timestamp: time.Now(),
	})
	return nil
}
