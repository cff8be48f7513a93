// Package pipeline drives one conversation's chat requests end to end:
// history load, retrieval, provider invocation, per-fragment redaction, and
// the one-shot fallback from streaming to non-streaming generation.
//
// A pipeline owns one conversation and its state machine. Fragment sequences
// are lazy and single-pass; the pipeline performs no work until the consumer
// pulls.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cecil-the-coder/chat-runtime-kit/pkg/config"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/factory"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/history"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/redact"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/retrieval"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

// Strategy selects how a pipeline produces answers. The strategy is fixed at
// construction for the life of the conversation.
type Strategy string

const (
	// StrategyDirectRetrieval fetches top-k passages, builds one prompt, and
	// streams the provider's answer.
	StrategyDirectRetrieval Strategy = "direct_retrieval"

	// StrategyAgent delegates to a tool-using control loop that returns one
	// finished answer, emitted as a single fragment.
	StrategyAgent Strategy = "agent"
)

// DefaultTopK is the passage count for direct retrieval when unset.
const DefaultTopK = 4

// AgentRunner is the agent strategy's control loop. It owns its own tool
// orchestration internally and returns one finished answer.
type AgentRunner interface {
	Run(ctx context.Context, question string, historyMessages []types.ChatMessage) (string, error)
}

// Options configures a Pipeline.
type Options struct {
	// ConversationID identifies the conversation. Empty generates one.
	ConversationID string

	// Factory supplies provider clients.
	Factory *factory.Factory

	// History persists the transcript.
	History history.Store

	// Retriever is required for StrategyDirectRetrieval.
	Retriever retrieval.Retriever

	// Agent is required for StrategyAgent.
	Agent AgentRunner

	// Explicit carries per-conversation configuration ranked above the
	// runtime override.
	Explicit *config.Settings

	// TopK overrides DefaultTopK for direct retrieval.
	TopK int

	// FilterWindow overrides the redaction filter's window size.
	FilterWindow int

	// Logger receives pipeline log output. Nil disables logging.
	Logger *zap.Logger
}

// Pipeline executes chat requests for one conversation.
type Pipeline struct {
	strategy       Strategy
	conversationID string
	factory        *factory.Factory
	history        history.Store
	retriever      retrieval.Retriever
	agent          AgentRunner
	explicit       *config.Settings
	topK           int
	filterWindow   int
	logger         *zap.Logger

	mu    sync.Mutex
	state types.ChatState
}

// NewDirectRetrieval creates a pipeline using the direct-retrieval strategy.
func NewDirectRetrieval(opts Options) (*Pipeline, error) {
	if opts.Retriever == nil {
		return nil, fmt.Errorf("direct-retrieval pipeline requires a retriever")
	}
	return newPipeline(StrategyDirectRetrieval, opts)
}

// NewAgent creates a pipeline using the agent strategy.
func NewAgent(opts Options) (*Pipeline, error) {
	if opts.Agent == nil {
		return nil, fmt.Errorf("agent pipeline requires an agent runner")
	}
	return newPipeline(StrategyAgent, opts)
}

func newPipeline(strategy Strategy, opts Options) (*Pipeline, error) {
	if opts.Factory == nil {
		return nil, fmt.Errorf("pipeline requires a client factory")
	}
	if opts.History == nil {
		return nil, fmt.Errorf("pipeline requires a history store")
	}
	if opts.ConversationID == "" {
		opts.ConversationID = uuid.NewString()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Pipeline{
		strategy:       strategy,
		conversationID: opts.ConversationID,
		factory:        opts.Factory,
		history:        opts.History,
		retriever:      opts.Retriever,
		agent:          opts.Agent,
		explicit:       opts.Explicit,
		topK:           opts.TopK,
		filterWindow:   opts.FilterWindow,
		logger:         opts.Logger,
		state:          types.ChatStateIdle,
	}, nil
}

// ConversationID returns the conversation this pipeline serves.
func (p *Pipeline) ConversationID() string { return p.conversationID }

// Strategy returns the strategy fixed at construction.
func (p *Pipeline) Strategy() Strategy { return p.strategy }

// State returns the conversation's current lifecycle state.
func (p *Pipeline) State() types.ChatState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s types.ChatState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Send submits one user message and returns the lazy fragment sequence of
// the answer. The sequence emits, in order: an optional sources fragment,
// answer fragments (redacted), an optional warning on fallback, and an
// explicit end marker; terminal failures surface as a single error fragment
// before the end marker. A send is rejected while another is in flight.
func (p *Pipeline) Send(ctx context.Context, message string) (types.FragmentStream, error) {
	p.mu.Lock()
	if !p.state.CanSend() {
		state := p.state
		p.mu.Unlock()
		return nil, fmt.Errorf("cannot send in state %q", state)
	}
	p.state = types.ChatStateSending
	p.mu.Unlock()

	if err := p.history.AppendMessage(ctx, p.conversationID, types.RoleUser, message); err != nil {
		p.setState(types.ChatStateError)
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	historyMessages, err := p.history.LoadHistory(ctx, p.conversationID)
	if err != nil {
		p.setState(types.ChatStateError)
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	// The just-appended user turn is passed separately.
	if n := len(historyMessages); n > 0 && historyMessages[n-1].Role == types.RoleUser {
		historyMessages = historyMessages[:n-1]
	}

	p.logger.Info("send accepted",
		zap.String("conversation_id", p.conversationID),
		zap.String("strategy", string(p.strategy)))

	switch p.strategy {
	case StrategyAgent:
		return newAgentStream(ctx, p, message, historyMessages), nil
	default:
		return newDirectStream(ctx, p, message, historyMessages), nil
	}
}

func (p *Pipeline) newFilter() *redact.Filter {
	return redact.NewFilter(p.filterWindow)
}

// persistAnswer stores the assistant's completed answer. Persistence failures
// are logged, not surfaced: the user already has the answer.
func (p *Pipeline) persistAnswer(ctx context.Context, answer string) {
	if answer == "" {
		return
	}
	if err := p.history.AppendMessage(ctx, p.conversationID, types.RoleAssistant, answer); err != nil {
		p.logger.Warn("failed to persist assistant answer",
			zap.String("conversation_id", p.conversationID),
			zap.Error(err))
	}
}
