package ai

import (
	"context"
	"fmt"

	"recruify/internal/config"
)

// NewCompleter 根据配置选择供应商；未配置密钥时返回 nil，调用方据此启用模拟模式。
func NewCompleter(ctx context.Context, cfg config.AIConfig) (Completer, error) {
	if cfg.ProviderKey() == "" {
		return nil, nil
	}
	switch cfg.Provider {
	case "gemini":
		model := cfg.Model
		if model == "gpt-4o" {
			model = ""
		}
		c, err := NewGeminiCompleter(ctx, cfg.GeminiAPIKey, model)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai", "":
		return NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}
