// Package types defines the core types and interfaces for the chat runtime kit.
// It includes the chat message model, the provider client capability surface,
// the streamed fragment model, and the shared error taxonomy used across all
// runtime components.
package types
