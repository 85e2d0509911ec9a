// internal/reasoning/factory.go
package reasoning

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/glimpse/internal/config"
)

// NewClient creates the Client for the configured provider.
func NewClient(ctx context.Context, cfg config.ReasoningConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOllama, "":
		return NewOllamaClient(cfg, logger), nil
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported reasoning provider configured: '%s'. Supported: [%s, %s]", cfg.Provider, config.ProviderOllama, config.ProviderGemini)
	}
}
