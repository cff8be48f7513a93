package redact

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRedact_OneShot tests whole-string redaction of both categories.
func TestRedact_OneShot(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "phone number",
			input:    "call 13812345678 now",
			expected: "call " + PhonePlaceholder + " now",
		},
		{
			name:     "email address",
			input:    "mail alice@example.com please",
			expected: "mail " + EmailPlaceholder + " please",
		},
		{
			name:     "both categories",
			input:    "reach bob@corp.io or 15987654321",
			expected: "reach " + EmailPlaceholder + " or " + PhonePlaceholder,
		},
		{
			name:     "second digit out of range",
			input:    "order 12345678901 shipped",
			expected: "order 12345678901 shipped",
		},
		{
			name:     "clean text",
			input:    "nothing sensitive here",
			expected: "nothing sensitive here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Redact(tt.input))
		})
	}
}

// TestFilter_HoldsUnsafeTail verifies that nothing is emitted before the
// buffer exceeds twice the window size.
func TestFilter_HoldsUnsafeTail(t *testing.T) {
	f := NewFilter(10)

	assert.Empty(t, f.Process("call 138"))
	assert.Empty(t, f.Process("12345678 now")) // buffer is exactly 2*window

	out := f.Flush()
	assert.Contains(t, out, PhonePlaceholder)
	assert.NotContains(t, out, "13812345678")
}

// TestFilter_PhoneSplitAcrossChunks is the window=10 phone scenario: the
// 11-digit number spans both chunks and must still be redacted.
func TestFilter_PhoneSplitAcrossChunks(t *testing.T) {
	f := NewFilter(10)

	var combined strings.Builder
	combined.WriteString(f.Process("call 138"))
	combined.WriteString(f.Process("12345678 now"))
	combined.WriteString(f.Flush())

	assert.Contains(t, combined.String(), PhonePlaceholder)
	assert.NotContains(t, combined.String(), "13812345678")
}

// TestFilter_ChunkBoundaryInvariance verifies that for every split point of
// an input containing sensitive data, the concatenated streamed output equals
// one-shot redaction of the whole input.
func TestFilter_ChunkBoundaryInvariance(t *testing.T) {
	inputs := []string{
		"please contact alice@example.com for details about the launch",
		"the number 13812345678 is on file and confirmed working today",
		"two hits: bob@corp.io then 15900001111 at the very end of text",
	}

	for _, input := range inputs {
		expected := Redact(input)
		for split := 0; split <= len(input); split++ {
			f := NewFilter(DefaultWindowSize)
			var out strings.Builder
			out.WriteString(f.Process(input[:split]))
			out.WriteString(f.Process(input[split:]))
			out.WriteString(f.Flush())
			require.Equal(t, expected, out.String(),
				"split at %d of %q diverged from one-shot redaction", split, input)
		}
	}
}

// TestFilter_ManyChunks feeds one character at a time.
func TestFilter_ManyChunks(t *testing.T) {
	input := "start 13812345678 middle carol@mail.example.org end"
	expected := Redact(input)

	f := NewFilter(DefaultWindowSize)
	var out strings.Builder
	for _, r := range input {
		out.WriteString(f.Process(string(r)))
	}
	out.WriteString(f.Flush())

	assert.Equal(t, expected, out.String())
}

// TestFilter_EmitsBeforeFlush verifies long streams emit progressively, with
// only the unsafe tail withheld.
func TestFilter_EmitsBeforeFlush(t *testing.T) {
	f := NewFilter(10)

	var input, emitted strings.Builder
	for i := 0; i < 10; i++ {
		chunk := fmt.Sprintf("chunk-%02d ", i)
		input.WriteString(chunk)
		emitted.WriteString(f.Process(chunk))
	}
	assert.NotEmpty(t, emitted.String(), "long stream should emit before flush")
	assert.Positive(t, f.Pending(), "the unsafe tail stays buffered")

	emitted.WriteString(f.Flush())
	assert.Equal(t, input.String(), emitted.String())
	assert.Zero(t, f.Pending())
}

// TestFilter_SpentAfterFlush verifies the filter refuses further input after
// the one allowed Flush.
func TestFilter_SpentAfterFlush(t *testing.T) {
	f := NewFilter(10)
	_ = f.Process("some text")
	_ = f.Flush()

	assert.Empty(t, f.Process("more text"))
	assert.Empty(t, f.Flush())
}

// TestFilter_DefaultWindow verifies the zero value falls back to the default
// window size.
func TestFilter_DefaultWindow(t *testing.T) {
	f := NewFilter(0)
	assert.Equal(t, DefaultWindowSize, f.window)
}
