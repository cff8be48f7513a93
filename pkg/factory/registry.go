package factory

import (
	"context"

	"go.uber.org/zap"

	"github.com/cecil-the-coder/chat-runtime-kit/pkg/config"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/providers/ollama"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/providers/openai"
	"github.com/cecil-the-coder/chat-runtime-kit/pkg/types"
)

// RegisterDefaultBuilders registers the builders for every provider shipped
// with the kit.
func RegisterDefaultBuilders(f *Factory, logger *zap.Logger) {
	f.RegisterBuilder(types.ProviderTypeOpenAI, func(ctx context.Context, cfg config.Effective) (types.Client, error) {
		return openai.New(ctx, cfg, logger)
	})
	f.RegisterBuilder(types.ProviderTypeOllama, func(_ context.Context, cfg config.Effective) (types.Client, error) {
		return ollama.New(cfg, logger)
	})
}
