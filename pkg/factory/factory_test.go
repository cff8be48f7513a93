package factory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/chat-runtime-kit/internal/testutil"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/broadcast"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/config"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

const (
	providerP1 = types.ProviderType("p1")
	providerP2 = types.ProviderType("p2")
)

// countingBuilder returns a builder that constructs a fresh MockClient per
// call and counts invocations.
func countingBuilder(provider types.ProviderType, calls *int) BuilderFunc {
	return func(_ context.Context, cfg config.Effective) (types.Client, error) {
		*calls++
		return &testutil.MockClient{Provider: provider, ModelID: cfg.Model}, nil
	}
}

func newTestFactory(defaults config.Settings) *Factory {
	return NewFactory(config.NewResolver(defaults), nil)
}

// TestGetClient_Idempotent verifies repeated requests for one fingerprint
// return the same instance and build only once.
func TestGetClient_Idempotent(t *testing.T) {
	f := newTestFactory(config.Settings{Provider: providerP1, Model: "m1"})
	builds := 0
	f.RegisterBuilder(providerP1, countingBuilder(providerP1, &builds))

	first, err := f.GetClient(context.Background(), nil)
	require.NoError(t, err)
	second, err := f.GetClient(context.Background(), nil)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, builds)
	assert.Equal(t, 1, f.CachedClients())
}

// TestGetClient_DistinctFingerprints verifies different (provider, model)
// pairs get independent clients.
func TestGetClient_DistinctFingerprints(t *testing.T) {
	f := newTestFactory(config.Settings{Provider: providerP1, Model: "m1"})
	builds := 0
	f.RegisterBuilder(providerP1, countingBuilder(providerP1, &builds))

	a, err := f.GetClient(context.Background(), nil)
	require.NoError(t, err)
	b, err := f.GetClient(context.Background(), &config.Settings{Model: "m2"})
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, builds)
	assert.Equal(t, 2, f.CachedClients())
}

// TestGetClient_UnsupportedProvider verifies an unregistered provider id
// fails with the supported set listed, and nothing is cached.
func TestGetClient_UnsupportedProvider(t *testing.T) {
	f := newTestFactory(config.Settings{Provider: types.ProviderType("nope"), Model: "m1"})
	builds := 0
	f.RegisterBuilder(providerP1, countingBuilder(providerP1, &builds))

	_, err := f.GetClient(context.Background(), nil)

	var unsupported *types.UnsupportedProviderError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, types.ProviderType("nope"), unsupported.Provider)
	assert.Contains(t, unsupported.Supported, providerP1)
	assert.Zero(t, f.CachedClients())
}

// TestGetClient_FailureNotCached verifies a construction failure surfaces and
// the next request retries fresh.
func TestGetClient_FailureNotCached(t *testing.T) {
	f := newTestFactory(config.Settings{Provider: providerP1, Model: "m1"})

	calls := 0
	f.RegisterBuilder(providerP1, func(_ context.Context, cfg config.Effective) (types.Client, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("endpoint unreachable")
		}
		return &testutil.MockClient{Provider: providerP1, ModelID: cfg.Model}, nil
	})

	_, err := f.GetClient(context.Background(), nil)
	require.Error(t, err)
	assert.Zero(t, f.CachedClients())

	client, err := f.GetClient(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, f.CachedClients())
}

// TestSetRuntimeOverride_Invalidates is the provider-switch scenario: after
// the override lands, the next request resolves to the new provider and
// builds a new client.
func TestSetRuntimeOverride_Invalidates(t *testing.T) {
	f := newTestFactory(config.Settings{Provider: providerP1, Model: "m1"})
	p1Builds, p2Builds := 0, 0
	f.RegisterBuilder(providerP1, countingBuilder(providerP1, &p1Builds))
	f.RegisterBuilder(providerP2, countingBuilder(providerP2, &p2Builds))

	before, err := f.GetClient(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, providerP1, before.ProviderType())

	f.SetRuntimeOverride(&config.Settings{Provider: providerP2})
	assert.Zero(t, f.CachedClients(), "override clears the whole cache")

	after, err := f.GetClient(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, providerP2, after.ProviderType())
	assert.Equal(t, "m1", after.Model(), "model falls through from defaults")
	assert.NotSame(t, before, after)
}

// TestClearCache verifies invalidation forces a rebuild for the same
// fingerprint.
func TestClearCache(t *testing.T) {
	f := newTestFactory(config.Settings{Provider: providerP1, Model: "m1"})
	builds := 0
	f.RegisterBuilder(providerP1, countingBuilder(providerP1, &builds))

	before, err := f.GetClient(context.Background(), nil)
	require.NoError(t, err)

	f.ClearCache()
	assert.Zero(t, f.CachedClients())

	after, err := f.GetClient(context.Background(), nil)
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.Equal(t, 2, builds)
}

// TestGetClient_ConcurrentMisses verifies concurrent first requests collapse
// into one construction.
func TestGetClient_ConcurrentMisses(t *testing.T) {
	f := newTestFactory(config.Settings{Provider: providerP1, Model: "m1"})

	var mu sync.Mutex
	builds := 0
	f.RegisterBuilder(providerP1, func(_ context.Context, cfg config.Effective) (types.Client, error) {
		mu.Lock()
		builds++
		mu.Unlock()
		return &testutil.MockClient{Provider: providerP1, ModelID: cfg.Model}, nil
	})

	var wg sync.WaitGroup
	clients := make([]types.Client, 8)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.GetClient(context.Background(), nil)
			assert.NoError(t, err)
			clients[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, builds)
	for _, c := range clients {
		assert.Same(t, clients[0], c)
	}
}

// TestColleague verifies the broadcast adapter: a config.changed event stores
// the override and clears the cache, and a malformed payload fails the chain.
func TestColleague(t *testing.T) {
	f := newTestFactory(config.Settings{Provider: providerP1, Model: "m1"})
	p1Builds, p2Builds := 0, 0
	f.RegisterBuilder(providerP1, countingBuilder(providerP1, &p1Builds))
	f.RegisterBuilder(providerP2, countingBuilder(providerP2, &p2Builds))

	_, err := f.GetClient(context.Background(), nil)
	require.NoError(t, err)

	b := broadcast.NewBroadcaster(nil, 0)
	require.NoError(t, b.Register(f.Colleague("client-factory", 10)))

	result := b.Notify(context.Background(), "config-service",
		broadcast.EventConfigChanged, &config.Settings{Provider: providerP2})
	assert.Equal(t, broadcast.NotifyDone, result.State)
	assert.Equal(t, []string{"client-factory"}, result.Succeeded)
	assert.Zero(t, f.CachedClients())

	client, err := f.GetClient(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, providerP2, client.ProviderType())

	result = b.Notify(context.Background(), "config-service",
		broadcast.EventConfigChanged, "not-settings")
	assert.Equal(t, broadcast.NotifyAborted, result.State)
	assert.Equal(t, []string{"client-factory"}, result.Failed)

	result = b.Notify(context.Background(), "config-service",
		broadcast.EventCacheInvalidate, nil)
	assert.Equal(t, broadcast.NotifyDone, result.State)
	assert.Zero(t, f.CachedClients())
}

func TestSupportedProviders(t *testing.T) {
	f := newTestFactory(config.Settings{Provider: providerP1, Model: "m1"})
	assert.Empty(t, f.SupportedProviders())

	builds := 0
	f.RegisterBuilder(providerP1, countingBuilder(providerP1, &builds))
	f.RegisterBuilder(providerP2, countingBuilder(providerP2, &builds))

	supported := f.SupportedProviders()
	assert.Len(t, supported, 2)
	assert.Contains(t, supported, providerP1)
	assert.Contains(t, supported, providerP2)
}
