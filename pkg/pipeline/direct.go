package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/cecil-the-coder/chat-runtime-kit/pkg/redact"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

// fallbackWarning is the user-visible notice emitted before the one-shot
// non-streaming retry.
const fallbackWarning = "Streaming is unavailable for this provider; retrying without streaming."

// Phases of the direct-retrieval sequence. Work happens on pull: each Next
// call advances the phase machine until a fragment is available.
const (
	phaseRetrieve = iota
	phaseStart
	phaseStream
	phaseFinished
)

// directStream is the lazy fragment sequence of one direct-retrieval send.
type directStream struct {
	ctx      context.Context
	pipeline *Pipeline
	question string
	messages []types.ChatMessage

	filter   *redact.Filter
	client   types.Client
	genOpts  types.GenerateOptions
	provider types.TextStream

	phase    int
	queue    []types.Fragment
	answer   strings.Builder
	fellBack bool
	closed   bool
}

func newDirectStream(ctx context.Context, p *Pipeline, question string, historyMessages []types.ChatMessage) *directStream {
	return &directStream{
		ctx:      ctx,
		pipeline: p,
		question: question,
		messages: historyMessages,
		filter:   p.newFilter(),
		phase:    phaseRetrieve,
	}
}

// Next returns the next fragment, running retrieval, provider calls, and
// redaction as needed. After the end marker it returns io.EOF.
func (s *directStream) Next() (types.Fragment, error) {
	for {
		if len(s.queue) > 0 {
			frag := s.queue[0]
			s.queue = s.queue[1:]
			return frag, nil
		}
		if s.phase == phaseFinished {
			return types.Fragment{}, io.EOF
		}
		if s.closed {
			return types.Fragment{}, errors.New("stream is closed")
		}

		switch s.phase {
		case phaseRetrieve:
			s.retrieve()
		case phaseStart:
			s.startStreaming()
		case phaseStream:
			s.pullChunk()
		}
	}
}

// Close releases the provider stream. Closing an unfinished sequence leaves
// the conversation in the recoverable Error state.
func (s *directStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.phase != phaseFinished {
		s.pipeline.setState(types.ChatStateError)
	}
	if s.provider != nil {
		return s.provider.Close()
	}
	return nil
}

// retrieve runs similarity search, emits the sources fragment, and prepares
// the provider request.
func (s *directStream) retrieve() {
	p := s.pipeline
	passages, err := p.retriever.SimilaritySearch(s.ctx, s.question, p.topK)
	if err != nil {
		s.fail("retrieval failed", err)
		return
	}

	eff := p.factory.ResolveConfiguration(p.explicit)
	s.genOpts = eff.GenerateOptions()

	client, err := p.factory.GetClient(s.ctx, p.explicit)
	if err != nil {
		s.fail("no provider client available", err)
		return
	}
	s.client = client

	s.queue = append(s.queue, types.Fragment{
		Kind:    types.FragmentSources,
		Sources: sourceRefs(passages),
	})
	s.messages = buildPromptMessages(s.question, s.messages, passages)
	s.phase = phaseStart
}

// startStreaming attempts the streaming call, falling back once to
// non-streaming when the transport error looks like a stream-format
// mismatch.
func (s *directStream) startStreaming() {
	stream, err := s.client.StreamGenerate(s.ctx, s.messages, s.genOpts)
	if err != nil {
		if types.IsStreamFormatMismatch(err) {
			s.fallback(err)
			return
		}
		s.fail("generation failed", err)
		return
	}
	s.provider = stream
	s.pipeline.setState(types.ChatStateStreaming)
	s.phase = phaseStream
}

// pullChunk reads provider fragments until the filter releases emittable
// text, the stream ends, or an error surfaces.
func (s *directStream) pullChunk() {
	for {
		chunk, err := s.provider.Next()
		if errors.Is(err, io.EOF) {
			s.finish()
			return
		}
		if err != nil {
			s.fail("stream interrupted", err)
			return
		}

		if out := s.filter.Process(chunk); out != "" {
			s.answer.WriteString(out)
			s.queue = append(s.queue, types.Fragment{Kind: types.FragmentAnswer, Text: out})
			return
		}
	}
}

// fallback performs the one-shot non-streaming retry: one warning fragment,
// then the full answer as a single fragment. A second failure is terminal.
func (s *directStream) fallback(cause error) {
	p := s.pipeline
	s.fellBack = true
	p.logger.Warn("falling back to non-streaming generation",
		zap.String("conversation_id", p.conversationID),
		zap.Error(cause))
	s.queue = append(s.queue, types.Fragment{Kind: types.FragmentWarning, Text: fallbackWarning})

	full, err := s.client.Generate(s.ctx, s.messages, s.genOpts)
	if err != nil {
		s.fail("fallback generation failed", err)
		return
	}

	out := s.filter.Process(full) + s.filter.Flush()
	if out != "" {
		s.answer.WriteString(out)
		s.queue = append(s.queue, types.Fragment{Kind: types.FragmentAnswer, Text: out})
	}
	s.complete()
}

// finish drains the filter after a successful stream and completes the
// sequence.
func (s *directStream) finish() {
	if out := s.filter.Flush(); out != "" {
		s.answer.WriteString(out)
		s.queue = append(s.queue, types.Fragment{Kind: types.FragmentAnswer, Text: out})
	}
	s.complete()
}

func (s *directStream) complete() {
	p := s.pipeline
	p.persistAnswer(s.ctx, s.answer.String())
	p.setState(types.ChatStateCompleted)
	s.queue = append(s.queue, types.Fragment{Kind: types.FragmentEnd})
	s.phase = phaseFinished
	p.logger.Info("send completed",
		zap.String("conversation_id", p.conversationID),
		zap.Bool("fell_back", s.fellBack))
}

// fail ends the sequence with the buffered safe text, one error fragment,
// and the end marker. The conversation re-enters a sendable state.
func (s *directStream) fail(message string, err error) {
	p := s.pipeline
	p.logger.Error(message,
		zap.String("conversation_id", p.conversationID),
		zap.Error(err))

	if out := s.filter.Flush(); out != "" {
		s.answer.WriteString(out)
		s.queue = append(s.queue, types.Fragment{Kind: types.FragmentAnswer, Text: out})
	}
	s.queue = append(s.queue,
		types.Fragment{Kind: types.FragmentError, Text: message + ": " + err.Error()},
		types.Fragment{Kind: types.FragmentEnd},
	)
	p.setState(types.ChatStateError)
	s.phase = phaseFinished
}
