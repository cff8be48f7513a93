package types

import (
	"fmt"
	"sort"
	"strings"
)

// ConfigurationError reports an invalid or incomplete effective configuration,
// such as a missing credential. It is surfaced immediately and never retried;
// a client is never cached behind one.
type ConfigurationError struct {
	Provider ProviderType // Provider being configured ("" if not provider-specific)
	Field    string       // Offending setting, if identifiable
	Message  string       // Human-readable message
	Err      error        // Wrapped original error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	switch {
	case e.Provider != "" && e.Field != "":
		return fmt.Sprintf("configuration error for %s (%s): %s", e.Provider, e.Field, e.Message)
	case e.Provider != "":
		return fmt.Sprintf("configuration error for %s: %s", e.Provider, e.Message)
	default:
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
}

// Unwrap returns the original error for errors.Is/As.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError creates a ConfigurationError for the given provider.
func NewConfigurationError(provider ProviderType, field, message string) *ConfigurationError {
	return &ConfigurationError{Provider: provider, Field: field, Message: message}
}

// WithErr attaches the original error and returns the error for chaining.
func (e *ConfigurationError) WithErr(err error) *ConfigurationError {
	e.Err = err
	return e
}

// UnsupportedProviderError reports a provider id with no registered builder.
// The supported set is included so callers can surface actionable messages.
type UnsupportedProviderError struct {
	Provider  ProviderType
	Supported []ProviderType
}

// Error implements the error interface.
func (e *UnsupportedProviderError) Error() string {
	names := make([]string, 0, len(e.Supported))
	for _, p := range e.Supported {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return fmt.Sprintf("unsupported provider %q (supported: %s)", e.Provider, strings.Join(names, ", "))
}

// GenerationError reports a terminal provider failure during generation.
// It ends the fragment sequence for that one send; the conversation itself
// remains recoverable.
type GenerationError struct {
	Provider  ProviderType
	Model     string
	Operation string // "generate" or "stream_generate"
	Err       error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("[%s] %s failed for model %s: %v", e.Provider, e.Operation, e.Model, e.Err)
}

// Unwrap returns the original error for errors.Is/As.
func (e *GenerationError) Unwrap() error { return e.Err }

// streamFormatMarkers are the error-text fragments treated as evidence of a
// stream-format mismatch between the client and the provider transport.
var streamFormatMarkers = []string{
	"text/event-stream",
	"content-type",
	"stream format",
	"invalid sse",
	"unexpected sse",
	"data: [done]",
}

// IsStreamFormatMismatch reports whether err looks like the provider rejected
// or mangled the streaming transport rather than the request itself. Matching
// is a string heuristic over the error text (content-type conflicts and
// SSE-specific markers); providers do not expose a structured error for this
// condition, so this is best-effort by nature.
func IsStreamFormatMismatch(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	for _, marker := range streamFormatMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
