// Package factory builds and caches provider clients. It resolves the
// effective configuration for each request, keys cached clients by their
// (provider, model) fingerprint, and rebuilds lazily after invalidation.
package factory

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cecil-the-coder/chat-runtime-kit/pkg/broadcast"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/config"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

// BuilderFunc constructs one client from a resolved configuration.
// Construction may perform I/O (credential exchange, endpoint probing) and is
// bounded by the caller's context.
type BuilderFunc func(ctx context.Context, cfg config.Effective) (types.Client, error)

// Factory resolves configuration and hands out cached provider clients.
// At most one live client exists per fingerprint; a cache hit performs no
// I/O. Construction failures are never cached, so the next request retries
// fresh.
type Factory struct {
	mu       sync.RWMutex
	builders map[types.ProviderType]BuilderFunc
	cache    map[config.Fingerprint]types.Client
	group    singleflight.Group
	resolver *config.Resolver
	logger   *zap.Logger
}

// NewFactory creates a factory over the given configuration resolver. A nil
// logger disables logging.
func NewFactory(resolver *config.Resolver, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		builders: make(map[types.ProviderType]BuilderFunc),
		cache:    make(map[config.Fingerprint]types.Client),
		resolver: resolver,
		logger:   logger,
	}
}

// RegisterBuilder registers the constructor for a provider type, replacing
// any previous registration.
func (f *Factory) RegisterBuilder(provider types.ProviderType, builder BuilderFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[provider] = builder
}

// SupportedProviders returns every provider type with a registered builder.
func (f *Factory) SupportedProviders() []types.ProviderType {
	f.mu.RLock()
	defer f.mu.RUnlock()
	providers := make([]types.ProviderType, 0, len(f.builders))
	for p := range f.builders {
		providers = append(providers, p)
	}
	return providers
}

// ResolveConfiguration merges explicit settings over the runtime override
// over the static defaults. Pure; no cache interaction.
func (f *Factory) ResolveConfiguration(explicit *config.Settings) config.Effective {
	return f.resolver.Resolve(explicit)
}

// GetClient returns the client for the resolved configuration, building and
// caching it on a miss. Concurrent misses for one fingerprint collapse into
// a single construction. Unknown provider ids fail with
// UnsupportedProviderError; construction failures surface as-is and leave
// the cache untouched.
func (f *Factory) GetClient(ctx context.Context, explicit *config.Settings) (types.Client, error) {
	eff := f.resolver.Resolve(explicit)
	fp := eff.Fingerprint()

	f.mu.RLock()
	client, ok := f.cache[fp]
	f.mu.RUnlock()
	if ok {
		return client, nil
	}

	v, err, _ := f.group.Do(string(fp), func() (any, error) {
		// Recheck under the flight: another caller may have populated the
		// cache between the miss and this closure running.
		f.mu.RLock()
		client, ok := f.cache[fp]
		builder, registered := f.builders[eff.Provider]
		f.mu.RUnlock()
		if ok {
			return client, nil
		}
		if !registered {
			return nil, &types.UnsupportedProviderError{
				Provider:  eff.Provider,
				Supported: f.SupportedProviders(),
			}
		}

		built, err := builder(ctx, eff)
		if err != nil {
			f.logger.Warn("client construction failed",
				zap.String("fingerprint", string(fp)),
				zap.Error(err))
			return nil, err
		}

		f.mu.Lock()
		f.cache[fp] = built
		f.mu.Unlock()
		f.logger.Info("client built",
			zap.String("provider", string(eff.Provider)),
			zap.String("model", eff.Model))
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(types.Client), nil
}

// SetRuntimeOverride replaces the runtime override and unconditionally clears
// the entire cache. Invalidation is coarse on purpose: a changed provider may
// imply other changed fields that are unsafe to diff incrementally.
func (f *Factory) SetRuntimeOverride(override *config.Settings) {
	f.resolver.SetOverride(override)
	f.ClearCache()
}

// ClearCache drops every cached client. The next GetClient per fingerprint
// rebuilds against the current configuration.
func (f *Factory) ClearCache() {
	f.mu.Lock()
	n := len(f.cache)
	f.cache = make(map[config.Fingerprint]types.Client)
	f.mu.Unlock()
	if n > 0 {
		f.logger.Info("client cache cleared", zap.Int("evicted", n))
	}
}

// CachedClients returns the number of live cached clients.
func (f *Factory) CachedClients() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}

// Colleague adapts the factory into a broadcast colleague. On a
// config.changed event carrying *config.Settings the factory stores the new
// override and clears its cache; on cache.invalidate it clears the cache
// only. Factories are foundational and must not be skipped over, so the
// colleague does not tolerate failure.
func (f *Factory) Colleague(name string, priority int) broadcast.Colleague {
	return broadcast.Colleague{
		Name:     name,
		Priority: priority,
		Events:   []broadcast.EventKind{broadcast.EventConfigChanged, broadcast.EventCacheInvalidate},
		Handler: func(ctx context.Context, event broadcast.ChangeEvent) error {
			switch event.Kind {
			case broadcast.EventConfigChanged:
				settings, ok := event.Payload.(*config.Settings)
				if !ok {
					return types.NewConfigurationError("", "payload",
						"config.changed payload must be *config.Settings")
				}
				f.SetRuntimeOverride(settings)
			case broadcast.EventCacheInvalidate:
				f.ClearCache()
			}
			return nil
		},
	}
}
