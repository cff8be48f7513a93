// Package redact provides a sliding-window redaction filter for streamed
// text. Sensitive patterns are removed even when a match straddles two
// increments: the filter withholds a trailing window of characters until
// later chunks push it out or the stream is flushed, so a partially arrived
// match is never emitted unredacted.
package redact

import (
	"regexp"
	"strings"
)

const (
	// DefaultWindowSize is the length of the retained unsafe tail. It must be
	// at least the longest matchable pattern; a full e-mail address is the
	// longest category at roughly 30 characters.
	DefaultWindowSize = 32

	// PhonePlaceholder replaces matched phone numbers.
	PhonePlaceholder = "[PHONE_REDACTED]"

	// EmailPlaceholder replaces matched e-mail addresses.
	EmailPlaceholder = "[EMAIL_REDACTED]"
)

var (
	// phonePattern matches 11-digit mobile numbers: leading 1, second digit
	// 3 through 9.
	phonePattern = regexp.MustCompile(`1[3-9]\d{9}`)

	// emailPattern matches local@domain.tld shaped addresses.
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

// Redact replaces all sensitive matches in text in one shot. It is the
// non-streaming reference behavior the filter converges to.
func Redact(text string) string {
	text = emailPattern.ReplaceAllString(text, EmailPlaceholder)
	text = phonePattern.ReplaceAllString(text, PhonePlaceholder)
	return text
}

// Filter accumulates streamed text and emits it redacted, always retaining a
// window-sized unsafe tail. A Filter serves exactly one stream: feed every
// chunk through Process, then call Flush exactly once to drain the tail.
// Skipping Flush leaks any sensitive data still buffered.
type Filter struct {
	window  int
	buf     strings.Builder
	flushed bool
}

// NewFilter creates a filter with the given window size. Sizes smaller than
// the longest matchable pattern forfeit the cross-chunk guarantee, so values
// below DefaultWindowSize should only appear in tests.
func NewFilter(windowSize int) *Filter {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Filter{window: windowSize}
}

// Process appends chunk to the buffer and returns the portion now safe to
// emit. Nothing is emitted until the buffer exceeds twice the window size;
// the trailing window of characters is always withheld as the unsafe tail.
func (f *Filter) Process(chunk string) string {
	if f.flushed {
		return ""
	}
	f.buf.WriteString(chunk)
	if f.buf.Len() <= 2*f.window {
		return ""
	}

	redacted := []rune(Redact(f.buf.String()))
	cut := len(redacted) - f.window
	if cut <= 0 {
		return ""
	}
	out := string(redacted[:cut])
	f.buf.Reset()
	f.buf.WriteString(string(redacted[cut:]))
	return out
}

// Flush redacts and returns the entire remaining buffer. The filter is spent
// afterwards; further Process or Flush calls return empty strings.
func (f *Filter) Flush() string {
	if f.flushed {
		return ""
	}
	f.flushed = true
	out := Redact(f.buf.String())
	f.buf.Reset()
	return out
}

// Pending returns the current unsafe-tail length, for diagnostics.
func (f *Filter) Pending() int { return f.buf.Len() }
