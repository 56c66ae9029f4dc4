package embed

import (
	"log/slog"

	"planetcf/internal/pkg/config"
)

// LoadProviderFromEnv builds the Provider named by EMBEDDING_PROVIDER
// ("openai" | "stub", default "stub"). An openai provider with no
// OPENAI_API_KEY set falls back to the stub rather than failing startup —
// embedding is best-effort by design, so a missing key degrades search()
// instead of blocking the worker.
//
// Environment variables:
//   - EMBEDDING_PROVIDER: "openai" or "stub" (default "stub")
//   - OPENAI_API_KEY: required when EMBEDDING_PROVIDER=openai
//   - OPENAI_EMBEDDING_MODEL: model name (default "text-embedding-3-small")
//   - EMBEDDING_DIMENSIONS: stub vector width (default 768)
func LoadProviderFromEnv(logger *slog.Logger) Provider {
	providerName := config.LoadEnvString("EMBEDDING_PROVIDER", "stub")
	dimResult := config.LoadEnvInt("EMBEDDING_DIMENSIONS", 768, func(v int) error {
		return config.ValidateIntRange(v, 1, 8192)
	})
	dimension := dimResult.Value.(int)

	switch providerName {
	case "openai":
		apiKey := config.LoadEnvString("OPENAI_API_KEY", "")
		if apiKey == "" {
			logger.Warn("EMBEDDING_PROVIDER=openai but OPENAI_API_KEY is unset, falling back to stub provider")
			return NewStubProvider(dimension)
		}
		model := config.LoadEnvString("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small")
		return NewOpenAIProvider(apiKey, model)
	case "stub":
		return NewStubProvider(dimension)
	default:
		logger.Warn("unrecognized EMBEDDING_PROVIDER, falling back to stub provider", slog.String("value", providerName))
		return NewStubProvider(dimension)
	}
}
