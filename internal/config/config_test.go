package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANVIL_PROVIDER", "")
	t.Setenv("ANVIL_ENDPOINT", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != ProviderAnthropic {
		t.Fatalf("provider = %q, want %q", cfg.Provider, ProviderAnthropic)
	}
	if cfg.MaxTokens != 4096 {
		t.Fatalf("max_tokens = %d, want 4096", cfg.MaxTokens)
	}
	if !cfg.Streaming {
		t.Fatalf("streaming = false, want true")
	}
}

func TestLoad_ParsesFileAndKeepsUnsetDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ANVIL_PROVIDER", "")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
provider = "openai"
openai_model = "gpt-4o"
openai_api_key = "sk-file"
max_tokens = 1024
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != ProviderOpenAI {
		t.Fatalf("provider = %q, want %q", cfg.Provider, ProviderOpenAI)
	}
	if cfg.OpenAIModel != "gpt-4o" {
		t.Fatalf("model = %q, want %q", cfg.OpenAIModel, "gpt-4o")
	}
	if cfg.MaxTokens != 1024 {
		t.Fatalf("max_tokens = %d, want 1024", cfg.MaxTokens)
	}
	// 文件未设置的字段保持默认。
	if cfg.AnthropicModel != Default().AnthropicModel {
		t.Fatalf("anthropic_model = %q, want default", cfg.AnthropicModel)
	}
	if cfg.ToolTimeoutSecs != 60 {
		t.Fatalf("tool_timeout_secs = %d, want 60", cfg.ToolTimeoutSecs)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`anthropic_api_key = "file-key"`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	t.Setenv("ANVIL_PROVIDER", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AnthropicAPIKey != "env-key" {
		t.Fatalf("api key = %q, want %q", cfg.AnthropicAPIKey, "env-key")
	}
}

func TestLoad_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`provider = [broken`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("Load = nil error, want parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("anthropic without key: err = nil, want error")
	}
	cfg.AnthropicAPIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cfg.Provider = ProviderOpenAI
	if err := cfg.Validate(); err == nil {
		t.Fatalf("openai without key: err = nil, want error")
	}
	cfg.OpenAIAPIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cfg.Provider = ProviderCustom
	if err := cfg.Validate(); err == nil {
		t.Fatalf("custom without endpoint: err = nil, want error")
	}
	cfg.CustomEndpoint = "http://localhost:8080/v1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cfg.Provider = "mystery"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("unknown provider: err = nil, want error")
	}

	cfg.Provider = ProviderCustom
	cfg.MaxTokens = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("zero max_tokens: err = nil, want error")
	}
}

func TestModel(t *testing.T) {
	cfg := Default()
	cfg.AnthropicModel = "claude-a"
	cfg.OpenAIModel = "gpt-b"
	cfg.CustomModel = "local-c"

	cfg.Provider = ProviderAnthropic
	if got := cfg.Model(); got != "claude-a" {
		t.Fatalf("Model = %q, want %q", got, "claude-a")
	}
	cfg.Provider = ProviderOpenAI
	if got := cfg.Model(); got != "gpt-b" {
		t.Fatalf("Model = %q, want %q", got, "gpt-b")
	}
	cfg.Provider = ProviderCustom
	if got := cfg.Model(); got != "local-c" {
		t.Fatalf("Model = %q, want %q", got, "local-c")
	}
}
