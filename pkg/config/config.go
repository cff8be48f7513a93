// Package config provides layered configuration resolution for provider
// clients. Settings come from three sources with strict precedence:
// explicit per-call settings, a process-wide runtime override, and static
// defaults loaded from a YAML file. The resolved result is an immutable
// snapshot identified by a (provider, model) fingerprint.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

// Settings is one layer of provider configuration. Zero-valued fields defer
// to the next layer down during resolution.
type Settings struct {
	Provider    types.ProviderType `yaml:"provider" json:"provider"`
	Model       string             `yaml:"model" json:"model"`
	BaseURL     string             `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey      string             `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	APIKeyEnv   string             `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
	MaxTokens   int                `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Temperature *float64           `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	Timeout     time.Duration      `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	OAuth       *OAuthCredential   `yaml:"oauth,omitempty" json:"oauth,omitempty"`
}

// Fingerprint identifies one cacheable client instance. Two resolutions with
// the same fingerprint are interchangeable for caching purposes.
type Fingerprint string

// Effective is a fully resolved, immutable configuration snapshot.
type Effective struct {
	Provider    types.ProviderType
	Model       string
	BaseURL     string
	APIKey      string
	APIKeyEnv   string
	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration
	OAuth       *OAuthCredential
}

// Fingerprint returns the (provider, model) cache key for this snapshot.
func (e Effective) Fingerprint() Fingerprint {
	return Fingerprint(fmt.Sprintf("%s/%s", e.Provider, e.Model))
}

// GenerateOptions converts the snapshot's sampling parameters to per-request
// generation options.
func (e Effective) GenerateOptions() types.GenerateOptions {
	opts := types.GenerateOptions{
		Model:     e.Model,
		MaxTokens: e.MaxTokens,
	}
	if e.Temperature != nil {
		opts.Temperature = *e.Temperature
	}
	return opts
}

// Resolver merges the three configuration layers. The static defaults are
// fixed at construction; the runtime override is replaceable for the life of
// the process.
type Resolver struct {
	mu       sync.RWMutex
	defaults Settings
	override *Settings
}

// NewResolver creates a resolver over the given static defaults.
func NewResolver(defaults Settings) *Resolver {
	return &Resolver{defaults: defaults}
}

// SetOverride replaces the runtime override. A nil override removes the
// layer entirely.
func (r *Resolver) SetOverride(override *Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if override == nil {
		r.override = nil
		return
	}
	copied := *override
	r.override = &copied
}

// Override returns a copy of the current runtime override, or nil when none
// is set.
func (r *Resolver) Override() *Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.override == nil {
		return nil
	}
	copied := *r.override
	return &copied
}

// Resolve merges explicit settings over the runtime override over the static
// defaults, field by field. A nil explicit resolves from the lower layers
// alone.
func (r *Resolver) Resolve(explicit *Settings) Effective {
	r.mu.RLock()
	defer r.mu.RUnlock()

	layers := make([]*Settings, 0, 3)
	if explicit != nil {
		layers = append(layers, explicit)
	}
	if r.override != nil {
		layers = append(layers, r.override)
	}
	layers = append(layers, &r.defaults)

	var e Effective
	for _, layer := range layers {
		if e.Provider == "" {
			e.Provider = layer.Provider
		}
		if e.Model == "" {
			e.Model = layer.Model
		}
		if e.BaseURL == "" {
			e.BaseURL = layer.BaseURL
		}
		if e.APIKey == "" {
			e.APIKey = layer.APIKey
		}
		if e.APIKeyEnv == "" {
			e.APIKeyEnv = layer.APIKeyEnv
		}
		if e.MaxTokens == 0 {
			e.MaxTokens = layer.MaxTokens
		}
		if e.Temperature == nil && layer.Temperature != nil {
			t := *layer.Temperature
			e.Temperature = &t
		}
		if e.Timeout == 0 {
			e.Timeout = layer.Timeout
		}
		if e.OAuth == nil && layer.OAuth != nil {
			o := *layer.OAuth
			e.OAuth = &o
		}
	}
	return e
}
