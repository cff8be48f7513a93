package pipeline

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

// agentStream is the lazy fragment sequence of one agent-strategy send. The
// agent's control loop produces one finished answer, emitted as a single
// redacted fragment; there is no internal streaming and no sources fragment.
type agentStream struct {
	ctx      context.Context
	pipeline *Pipeline
	question string
	history  []types.ChatMessage

	queue  []types.Fragment
	ran    bool
	closed bool
}

func newAgentStream(ctx context.Context, p *Pipeline, question string, historyMessages []types.ChatMessage) *agentStream {
	return &agentStream{
		ctx:      ctx,
		pipeline: p,
		question: question,
		history:  historyMessages,
	}
}

// Next runs the agent on first pull, then drains the queued fragments.
func (s *agentStream) Next() (types.Fragment, error) {
	if len(s.queue) > 0 {
		frag := s.queue[0]
		s.queue = s.queue[1:]
		return frag, nil
	}
	if s.ran {
		return types.Fragment{}, io.EOF
	}
	if s.closed {
		return types.Fragment{}, errors.New("stream is closed")
	}

	s.ran = true
	s.run()

	frag := s.queue[0]
	s.queue = s.queue[1:]
	return frag, nil
}

// Close marks the sequence abandoned. An unfinished sequence leaves the
// conversation in the recoverable Error state.
func (s *agentStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.ran {
		s.pipeline.setState(types.ChatStateError)
	}
	return nil
}

func (s *agentStream) run() {
	p := s.pipeline
	p.setState(types.ChatStateStreaming)

	answer, err := p.agent.Run(s.ctx, s.question, s.history)
	if err != nil {
		p.logger.Error("agent run failed",
			zap.String("conversation_id", p.conversationID),
			zap.Error(err))
		s.queue = append(s.queue,
			types.Fragment{Kind: types.FragmentError, Text: "agent run failed: " + err.Error()},
			types.Fragment{Kind: types.FragmentEnd},
		)
		p.setState(types.ChatStateError)
		return
	}

	filter := p.newFilter()
	redacted := filter.Process(answer) + filter.Flush()
	if redacted != "" {
		s.queue = append(s.queue, types.Fragment{Kind: types.FragmentAnswer, Text: redacted})
	}
	s.queue = append(s.queue, types.Fragment{Kind: types.FragmentEnd})

	p.persistAnswer(s.ctx, redacted)
	p.setState(types.ChatStateCompleted)
	p.logger.Info("send completed",
		zap.String("conversation_id", p.conversationID),
		zap.String("strategy", string(StrategyAgent)))
}
