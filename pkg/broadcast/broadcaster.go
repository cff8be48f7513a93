// Package broadcast propagates live configuration changes to registered
// components ("colleagues") without the components holding references to each
// other. Colleagues are notified strictly sequentially in ascending priority
// order, each bounded by its own timeout; a failing colleague that is not
// marked failure-tolerant halts the chain so that components derived from its
// output are never left ahead of it. Every invocation is recorded in a
// bounded audit log.
package broadcast

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventKind names a category of configuration change.
type EventKind string

const (
	// EventConfigChanged announces a new runtime configuration. The payload
	// is the new settings value.
	EventConfigChanged EventKind = "config.changed"

	// EventCacheInvalidate requests that derived caches drop their contents.
	EventCacheInvalidate EventKind = "cache.invalidate"
)

// Handler processes one change event. The context carries the colleague's
// deadline; work still running at expiry is abandoned, so handlers should be
// idempotent or side-effect-free on timeout.
type Handler func(ctx context.Context, event ChangeEvent) error

// Colleague is one registered recipient of change events.
type Colleague struct {
	// Name uniquely identifies the colleague and is used for sender
	// exclusion.
	Name string

	// Priority orders delivery; lower ranks are notified first.
	Priority int

	// Timeout bounds one handler invocation. Zero means DefaultTimeout.
	Timeout time.Duration

	// ContinueOnFailure lets the chain proceed past this colleague's
	// failure or timeout.
	ContinueOnFailure bool

	// Events is the subscription set. Empty subscribes to every kind.
	Events []EventKind

	// Handler receives matching events.
	Handler Handler
}

// DefaultTimeout bounds a handler invocation when the colleague does not set
// its own.
const DefaultTimeout = 5 * time.Second

func (c Colleague) subscribes(kind EventKind) bool {
	if len(c.Events) == 0 {
		return true
	}
	for _, e := range c.Events {
		if e == kind {
			return true
		}
	}
	return false
}

// NotifyState is the terminal state of one notification chain.
type NotifyState string

const (
	// NotifyDone means every selected colleague was reached.
	NotifyDone NotifyState = "done"

	// NotifyAborted means the chain halted early on a non-tolerated failure;
	// lower-priority colleagues were neither invoked nor recorded.
	NotifyAborted NotifyState = "aborted"
)

// Result reports the outcome of one Notify call, listing colleague names by
// disposition.
type Result struct {
	State     NotifyState
	Succeeded []string
	Failed    []string
	TimedOut  []string
	Skipped   []string
}

// HandlerError reports a colleague handler that returned an error.
type HandlerError struct {
	Colleague string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("colleague %s failed: %v", e.Colleague, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// TimeoutError reports a colleague handler that exceeded its deadline.
type TimeoutError struct {
	Colleague string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("colleague %s timed out after %s", e.Colleague, e.Timeout)
}

// Broadcaster mediates configuration-change delivery between independently
// owned colleagues.
type Broadcaster struct {
	mu         sync.RWMutex
	colleagues map[string]Colleague
	audit      *AuditLog
	logger     *zap.Logger
}

// NewBroadcaster creates a broadcaster with an audit log of the given
// capacity. A nil logger disables logging.
func NewBroadcaster(logger *zap.Logger, auditCapacity int) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		colleagues: make(map[string]Colleague),
		audit:      NewAuditLog(auditCapacity),
		logger:     logger,
	}
}

// Register adds a colleague. Registration is once per process lifetime;
// re-registering a name is an error.
func (b *Broadcaster) Register(c Colleague) error {
	if c.Name == "" {
		return fmt.Errorf("colleague name must not be empty")
	}
	if c.Handler == nil {
		return fmt.Errorf("colleague %s has no handler", c.Name)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.colleagues[c.Name]; exists {
		return fmt.Errorf("colleague %s already registered", c.Name)
	}
	b.colleagues[c.Name] = c
	b.logger.Debug("colleague registered",
		zap.String("name", c.Name),
		zap.Int("priority", c.Priority))
	return nil
}

// Unregister removes a colleague by name. Unknown names are a no-op.
func (b *Broadcaster) Unregister(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.colleagues, name)
}

// Audit returns the broadcaster's audit log.
func (b *Broadcaster) Audit() *AuditLog { return b.audit }

// Notify delivers one change event to every colleague subscribed to kind,
// in ascending priority order, skipping the sender. Colleagues run strictly
// in sequence because ordering is load-bearing: foundational colleagues must
// see the change before colleagues derived from their output. The chain
// halts at the first failure or timeout of a colleague that is not
// failure-tolerant; colleagues after the halt appear in no result list.
func (b *Broadcaster) Notify(ctx context.Context, sender string, kind EventKind, payload any) Result {
	event := ChangeEvent{
		ID:        uuid.New(),
		Kind:      kind,
		Sender:    sender,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.RLock()
	selected := make([]Colleague, 0, len(b.colleagues))
	for _, c := range b.colleagues {
		if c.subscribes(kind) {
			selected = append(selected, c)
		}
	}
	b.mu.RUnlock()

	sort.Slice(selected, func(i, j int) bool {
		if selected[i].Priority != selected[j].Priority {
			return selected[i].Priority < selected[j].Priority
		}
		return selected[i].Name < selected[j].Name
	})

	result := Result{State: NotifyDone}
	b.logger.Info("notifying colleagues",
		zap.String("event_id", event.ID.String()),
		zap.String("kind", string(kind)),
		zap.String("sender", sender),
		zap.Int("selected", len(selected)))

	for _, c := range selected {
		if c.Name == sender {
			result.Skipped = append(result.Skipped, c.Name)
			b.audit.Append(AuditEntry{Event: event, Colleague: c.Name, Outcome: OutcomeSkipped})
			continue
		}

		start := time.Now()
		err := b.invoke(ctx, c, event)
		elapsed := time.Since(start)

		switch e := err.(type) {
		case nil:
			result.Succeeded = append(result.Succeeded, c.Name)
			b.audit.Append(AuditEntry{Event: event, Colleague: c.Name, Outcome: OutcomeSuccess, Duration: elapsed})
		case *TimeoutError:
			result.TimedOut = append(result.TimedOut, c.Name)
			b.audit.Append(AuditEntry{Event: event, Colleague: c.Name, Outcome: OutcomeTimedOut, Error: e.Error(), Duration: elapsed})
			b.logger.Warn("colleague timed out",
				zap.String("event_id", event.ID.String()),
				zap.String("colleague", c.Name),
				zap.Duration("timeout", c.Timeout))
		default:
			result.Failed = append(result.Failed, c.Name)
			b.audit.Append(AuditEntry{Event: event, Colleague: c.Name, Outcome: OutcomeFailed, Error: err.Error(), Duration: elapsed})
			b.logger.Warn("colleague failed",
				zap.String("event_id", event.ID.String()),
				zap.String("colleague", c.Name),
				zap.Error(err))
		}

		if err != nil && !c.ContinueOnFailure {
			result.State = NotifyAborted
			b.logger.Warn("notification chain aborted",
				zap.String("event_id", event.ID.String()),
				zap.String("colleague", c.Name))
			return result
		}
	}

	return result
}

// invoke runs one handler bounded by the colleague's timeout. The handler
// runs in its own goroutine so an overrunning colleague can be abandoned; its
// work is not cancelled beyond the context signal.
func (b *Broadcaster) invoke(ctx context.Context, c Colleague, event ChangeEvent) error {
	cctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.Handler(cctx, event)
	}()

	select {
	case err := <-done:
		if err != nil {
			return &HandlerError{Colleague: c.Name, Err: err}
		}
		return nil
	case <-cctx.Done():
		return &TimeoutError{Colleague: c.Name, Timeout: c.Timeout}
	}
}
