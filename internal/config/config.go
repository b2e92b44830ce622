package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// 支持的后端标识。custom 使用 chat-completions 协议访问自定义端点。
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderCustom    = "custom"
)

// Config is the only persisted config file schema.
type Config struct {
	Provider string `toml:"provider"`

	AnthropicModel  string `toml:"anthropic_model"`
	AnthropicAPIKey string `toml:"anthropic_api_key"`
	OpenAIModel     string `toml:"openai_model"`
	OpenAIAPIKey    string `toml:"openai_api_key"`

	CustomEndpoint string `toml:"custom_endpoint"`
	CustomModel    string `toml:"custom_model"`
	CustomAPIKey   string `toml:"custom_api_key"`

	MaxTokens       int     `toml:"max_tokens"`
	Temperature     float64 `toml:"temperature"`
	Streaming       bool    `toml:"streaming"`
	ToolTimeoutSecs int     `toml:"tool_timeout_secs"`
	DebugLogging    bool    `toml:"debug_logging"`

	Source string `toml:"-"`
}

func Default() Config {
	return Config{
		Provider:        ProviderAnthropic,
		AnthropicModel:  "claude-sonnet-4-20250514",
		OpenAIModel:     "gpt-4o-mini",
		MaxTokens:       4096,
		Temperature:     0.7,
		Streaming:       true,
		ToolTimeoutSecs: 60,
	}
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".anvil", "config.toml")
}

// Load 读取配置文件并叠加环境变量。文件不存在时返回默认值（不视为错误）。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, errors.New("config path is empty and $HOME is not set")
	}
	cfg.Source = path

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyEnv(cfg), nil
		}
		return cfg, err
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return cfg, err
	}
	return applyEnv(cfg), nil
}

// Validate 校验选中的后端配置齐备。
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic:
		if strings.TrimSpace(c.AnthropicAPIKey) == "" {
			return errors.New("anthropic_api_key missing (set ANTHROPIC_API_KEY or edit config)")
		}
	case ProviderOpenAI:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return errors.New("openai_api_key missing (set OPENAI_API_KEY or edit config)")
		}
	case ProviderCustom:
		if strings.TrimSpace(c.CustomEndpoint) == "" {
			return errors.New("custom_endpoint missing for provider=custom")
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	return nil
}

// Model 返回当前后端对应的模型名。
func (c Config) Model() string {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAIModel
	case ProviderCustom:
		return c.CustomModel
	default:
		return c.AnthropicModel
	}
}

func applyEnv(cfg Config) Config {
	if env := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); env != "" {
		cfg.AnthropicAPIKey = env
	}
	if env := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); env != "" {
		cfg.OpenAIAPIKey = env
	}
	if env := strings.TrimSpace(os.Getenv("ANVIL_PROVIDER")); env != "" {
		cfg.Provider = env
	}
	if env := strings.TrimSpace(os.Getenv("ANVIL_ENDPOINT")); env != "" {
		cfg.CustomEndpoint = env
	}
	return cfg
}
