package types

// FragmentKind identifies one unit of streamed pipeline output.
type FragmentKind string

const (
	// FragmentSources carries the document identifiers backing an answer.
	// Emitted at most once, before any answer text.
	FragmentSources FragmentKind = "sources"

	// FragmentAnswer carries one increment of answer text.
	FragmentAnswer FragmentKind = "answer"

	// FragmentWarning carries a transient, user-visible notice such as the
	// switch to a non-streaming fallback.
	FragmentWarning FragmentKind = "warning"

	// FragmentError carries a terminal error message. It is the last content
	// fragment of its sequence.
	FragmentError FragmentKind = "error"

	// FragmentEnd is the explicit end marker terminating every sequence.
	FragmentEnd FragmentKind = "end"
)

// SourceRef identifies one retrieved passage backing an answer.
type SourceRef struct {
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score,omitempty"`
}

// Fragment is one unit of streamed output from a chat pipeline.
type Fragment struct {
	Kind    FragmentKind `json:"kind"`
	Text    string       `json:"text,omitempty"`
	Sources []SourceRef  `json:"sources,omitempty"`
}

// FragmentStream is a pull-based, single-pass sequence of fragments. Next
// returns io.EOF after the end marker has been delivered. Close releases any
// underlying provider stream; abandoning a sequence without Close leaves the
// provider call to run out on its own.
type FragmentStream interface {
	Next() (Fragment, error)
	Close() error
}

// ChatState is the lifecycle state of one conversation's pipeline.
type ChatState string

const (
	ChatStateIdle      ChatState = "idle"
	ChatStateSending   ChatState = "sending"
	ChatStateStreaming ChatState = "streaming"
	ChatStateCompleted ChatState = "completed"
	ChatStateError     ChatState = "error"
)

// CanSend reports whether a new message may be submitted in this state.
// Completed and Error re-enter Sending on the next message; a send already in
// flight blocks further sends.
func (s ChatState) CanSend() bool {
	switch s {
	case ChatStateIdle, ChatStateCompleted, ChatStateError:
		return true
	}
	return false
}
