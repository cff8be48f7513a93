package pipeline

import (
	"fmt"
	"strings"

	"github.com/cecil-the-coder/chat-runtime-kit/pkg/retrieval"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

const answerInstruction = "You are a helpful assistant. Answer the question " +
	"using the provided context passages. If the context does not contain the " +
	"answer, say so instead of guessing. Cite passages by their number."

// buildPromptMessages assembles the provider message list for one
// direct-retrieval request: a system message embedding the retrieved context,
// the prior conversation turns, and the new question.
func buildPromptMessages(question string, historyMessages []types.ChatMessage, passages []retrieval.Passage) []types.ChatMessage {
	var sb strings.Builder
	sb.WriteString(answerInstruction)
	if len(passages) > 0 {
		sb.WriteString("\n\nContext:\n")
		for i, passage := range passages {
			fmt.Fprintf(&sb, "[%d] (%s) %s\n", i+1, passage.DocumentID, passage.Text)
		}
	}

	messages := make([]types.ChatMessage, 0, len(historyMessages)+2)
	messages = append(messages, types.SystemMessage(sb.String()))
	messages = append(messages, historyMessages...)
	messages = append(messages, types.UserMessage(question))
	return messages
}

// sourceRefs converts passages to the sources-fragment payload, preserving
// rank order.
func sourceRefs(passages []retrieval.Passage) []types.SourceRef {
	refs := make([]types.SourceRef, 0, len(passages))
	for _, p := range passages {
		refs = append(refs, types.SourceRef{DocumentID: p.DocumentID, Score: p.Score})
	}
	return refs
}
