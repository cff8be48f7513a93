// Package history persists conversation transcripts. The Store interface is
// the pipeline's only view of persistence; implementations cover an embedded
// BadgerDB store for production and an in-memory store for tests.
package history

import (
	"context"

	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

// Store loads and appends conversation messages. Messages are returned in
// append order.
type Store interface {
	// LoadHistory returns every message of the conversation, oldest first.
	// An unknown conversation id yields an empty history, not an error.
	LoadHistory(ctx context.Context, conversationID string) ([]types.ChatMessage, error)

	// AppendMessage adds one message to the end of the conversation.
	AppendMessage(ctx context.Context, conversationID string, role types.MessageRole, text string) error
}
