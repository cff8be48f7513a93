package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies one colleague invocation in the audit log.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeTimedOut Outcome = "timed_out"
	OutcomeSkipped  Outcome = "skipped"
)

// ChangeEvent is one configuration-change notification as delivered to a
// colleague. Events are ephemeral; the audit log is their only retention.
type ChangeEvent struct {
	ID        uuid.UUID `json:"id"`
	Kind      EventKind `json:"kind"`
	Sender    string    `json:"sender"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditEntry records one colleague invocation, regardless of outcome.
type AuditEntry struct {
	Event     ChangeEvent   `json:"event"`
	Colleague string        `json:"colleague"`
	Outcome   Outcome       `json:"outcome"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// AuditLog is a bounded ring buffer of audit entries. When full, the oldest
// entry is dropped first.
type AuditLog struct {
	mu      sync.RWMutex
	entries []AuditEntry
	next    int
	full    bool
}

// DefaultAuditCapacity bounds the audit log when no capacity is given.
const DefaultAuditCapacity = 1000

// NewAuditLog creates a ring-buffer audit log holding at most capacity
// entries.
func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &AuditLog{entries: make([]AuditEntry, capacity)}
}

// Append records one entry, evicting the oldest when the buffer is full.
func (l *AuditLog) Append(entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = entry
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
}

// Entries returns a snapshot of the retained entries, oldest first.
func (l *AuditLog) Entries() []AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.full {
		out := make([]AuditEntry, l.next)
		copy(out, l.entries[:l.next])
		return out
	}
	out := make([]AuditEntry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	out = append(out, l.entries[:l.next]...)
	return out
}

// Len returns the number of retained entries.
func (l *AuditLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}
