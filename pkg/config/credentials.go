package config

import (
	"context"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

// OAuthCredential configures an OAuth2 client-credentials grant for providers
// fronted by an authenticating gateway.
type OAuthCredential struct {
	ClientID     string   `yaml:"client_id" json:"client_id"`
	ClientSecret string   `yaml:"client_secret" json:"client_secret"`
	TokenURL     string   `yaml:"token_url" json:"token_url"`
	Scopes       []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`
}

// TokenSource returns a self-refreshing token source for this credential.
func (c *OAuthCredential) TokenSource(ctx context.Context) oauth2.TokenSource {
	cfg := clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		Scopes:       c.Scopes,
	}
	return cfg.TokenSource(ctx)
}

// ResolveAPIKey returns the credential for this snapshot: the literal key if
// present, otherwise the value of the configured environment variable, and
// finally a bearer token minted from the OAuth credential. A missing
// credential is a ConfigurationError, surfaced before any client is built.
func (e Effective) ResolveAPIKey(ctx context.Context) (string, error) {
	if e.APIKey != "" {
		return e.APIKey, nil
	}
	if e.APIKeyEnv != "" {
		if key := os.Getenv(e.APIKeyEnv); key != "" {
			return key, nil
		}
		return "", types.NewConfigurationError(e.Provider, "api_key_env",
			"environment variable "+e.APIKeyEnv+" is empty or unset")
	}
	if e.OAuth != nil {
		token, err := e.OAuth.TokenSource(ctx).Token()
		if err != nil {
			return "", types.NewConfigurationError(e.Provider, "oauth",
				"failed to obtain OAuth token").WithErr(err)
		}
		return token.AccessToken, nil
	}
	return "", types.NewConfigurationError(e.Provider, "api_key", "no credential configured")
}
