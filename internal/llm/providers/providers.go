// Package providers 根据配置构造具体的模型后端适配器。
package providers

import (
	"fmt"

	"anvil-cli/internal/config"
	"anvil-cli/internal/llm"
	"anvil-cli/internal/llm/anthropic"
	"anvil-cli/internal/llm/openai"
)

// New 根据配置选择后端。custom 复用 chat-completions 适配器并指向自定义端点。
func New(cfg config.Config) (llm.Provider, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return anthropic.New(anthropic.Options{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
		})
	case config.ProviderOpenAI:
		return openai.New(openai.Options{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
		})
	case config.ProviderCustom:
		return openai.New(openai.Options{
			APIKey:  cfg.CustomAPIKey,
			BaseURL: cfg.CustomEndpoint,
			Model:   cfg.CustomModel,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
