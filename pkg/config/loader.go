package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

// File is the on-disk YAML shape for static defaults.
//
// Example:
//
//	default:
//	  provider: openai
//	  model: gpt-4o-mini
//	  api_key_env: OPENAI_API_KEY
//	providers:
//	  ollama:
//	    base_url: http://localhost:11434
type File struct {
	// Default holds the process-wide static defaults.
	Default Settings `yaml:"default"`

	// Providers holds per-provider setting overlays, applied when the
	// resolved provider matches the map key.
	Providers map[string]Settings `yaml:"providers,omitempty"`
}

// LoadDefaults reads and validates static defaults from a YAML file.
func LoadDefaults(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks that the defaults are internally consistent.
func (f *File) Validate() error {
	if f.Default.Provider == "" {
		return types.NewConfigurationError("", "provider", "default provider must be set")
	}
	if f.Default.Model == "" {
		return types.NewConfigurationError(f.Default.Provider, "model", "default model must be set")
	}
	if f.Default.Temperature != nil {
		t := *f.Default.Temperature
		if t < 0 || t > 2 {
			return types.NewConfigurationError(f.Default.Provider, "temperature",
				fmt.Sprintf("temperature %.2f out of range [0, 2]", t))
		}
	}
	return nil
}

// DefaultsFor returns the static defaults with the named provider's overlay
// applied on top. The overlay never changes the provider id itself.
func (f *File) DefaultsFor(provider types.ProviderType) Settings {
	defaults := f.Default
	overlay, ok := f.Providers[string(provider)]
	if !ok {
		return defaults
	}
	if overlay.Model != "" {
		defaults.Model = overlay.Model
	}
	if overlay.BaseURL != "" {
		defaults.BaseURL = overlay.BaseURL
	}
	if overlay.APIKey != "" {
		defaults.APIKey = overlay.APIKey
	}
	if overlay.APIKeyEnv != "" {
		defaults.APIKeyEnv = overlay.APIKeyEnv
	}
	if overlay.MaxTokens != 0 {
		defaults.MaxTokens = overlay.MaxTokens
	}
	if overlay.Temperature != nil {
		t := *overlay.Temperature
		defaults.Temperature = &t
	}
	if overlay.Timeout != 0 {
		defaults.Timeout = overlay.Timeout
	}
	if overlay.OAuth != nil {
		o := *overlay.OAuth
		defaults.OAuth = &o
	}
	return defaults
}
