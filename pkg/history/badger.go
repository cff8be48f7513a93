package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

// BadgerStore persists conversations in an embedded BadgerDB. Messages are
// keyed msg/<conversation>/<seq> with a zero-padded sequence number so a
// prefix scan returns them in append order; the per-conversation counter
// lives under seq/<conversation> and is advanced in the same transaction as
// the append.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger
}

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Path is the directory for the database files. Ignored when InMemory
	// is set.
	Path string

	// InMemory disables disk persistence; useful for tests.
	InMemory bool

	// SyncWrites makes appends durable before returning.
	SyncWrites bool

	// Logger receives store-level log output. Nil disables logging.
	Logger *zap.Logger
}

// OpenBadger opens (or creates) a BadgerDB-backed store.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error { return s.db.Close() }

func messageKey(conversationID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg/%s/%020d", conversationID, seq))
}

func messagePrefix(conversationID string) []byte {
	return []byte(fmt.Sprintf("msg/%s/", conversationID))
}

func seqKey(conversationID string) []byte {
	return []byte("seq/" + conversationID)
}

// LoadHistory returns the conversation's messages, oldest first.
func (s *BadgerStore) LoadHistory(_ context.Context, conversationID string) ([]types.ChatMessage, error) {
	var messages []types.ChatMessage
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := messagePrefix(conversationID)
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var m types.ChatMessage
				if err := json.Unmarshal(val, &m); err != nil {
					return fmt.Errorf("corrupt message at %s: %w", it.Item().Key(), err)
				}
				messages = append(messages, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", conversationID, err)
	}
	return messages, nil
}

// AppendMessage adds one message, advancing the conversation's sequence
// counter atomically with the write.
func (s *BadgerStore) AppendMessage(_ context.Context, conversationID string, role types.MessageRole, text string) error {
	message := types.ChatMessage{Role: role, Content: text, Timestamp: time.Now()}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		var seq uint64
		item, err := txn.Get(seqKey(conversationID))
		switch {
		case err == badger.ErrKeyNotFound:
			seq = 0
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				if len(val) == 8 {
					seq = binary.BigEndian.Uint64(val)
				}
				return nil
			}); err != nil {
				return err
			}
		}

		if err := txn.Set(messageKey(conversationID, seq), payload); err != nil {
			return err
		}

		encoded := make([]byte, 8)
		binary.BigEndian.PutUint64(encoded, seq+1)
		return txn.Set(seqKey(conversationID), encoded)
	})
	if err != nil {
		return fmt.Errorf("failed to append message to %s: %w", conversationID, err)
	}

	s.logger.Debug("message appended",
		zap.String("conversation_id", conversationID),
		zap.String("role", string(role)))
	return nil
}
