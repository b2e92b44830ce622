package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"anvil-cli/internal/agent"
	"anvil-cli/internal/config"
	"anvil-cli/internal/conversation"
	"anvil-cli/internal/llm/providers"
	"anvil-cli/internal/logger"
	"anvil-cli/internal/tools"
	"anvil-cli/internal/tools/handlers"
	"anvil-cli/internal/tui"
)

type rootFlags struct {
	cfgPath  string
	provider string
	model    string
	workdir  string
	prompt   string
}

func rootCmd() *cobra.Command {
	var flags rootFlags
	cmd := &cobra.Command{
		Use:           "anvil-cli",
		Short:         "Terminal coding assistant backed by LLM tool calling",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(flags)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.cfgPath, "config", "", "config file path (default ~/.anvil/config.toml)")
	pf.StringVar(&flags.provider, "provider", "", "override provider: anthropic, openai or custom")
	pf.StringVar(&flags.model, "model", "", "override the model name")
	pf.StringVarP(&flags.workdir, "workdir", "C", "", "working directory for tools (default: current directory)")
	cmd.Flags().StringVarP(&flags.prompt, "prompt", "p", "", "send this prompt on startup")

	cmd.AddCommand(execCmd(&flags))
	cmd.AddCommand(versionCmd())
	return cmd
}

func runChat(flags rootFlags) error {
	ag, cfg, workdir, err := buildAgent(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return tui.Run(tui.Options{
		Agent:         ag,
		Model:         cfg.Model(),
		Provider:      cfg.Provider,
		Workdir:       workdir,
		InitialPrompt: flags.prompt,
	})
}

// buildAgent 按配置装配 provider、工具与会话，返回可用的 Agent。
func buildAgent(flags rootFlags) (*agent.Agent, config.Config, string, error) {
	cfg, err := config.Load(flags.cfgPath)
	if err != nil {
		return nil, config.Config{}, "", fmt.Errorf("load config: %w", err)
	}
	if flags.provider != "" {
		cfg.Provider = flags.provider
	}
	if flags.model != "" {
		switch cfg.Provider {
		case config.ProviderOpenAI:
			cfg.OpenAIModel = flags.model
		case config.ProviderCustom:
			cfg.CustomModel = flags.model
		default:
			cfg.AnthropicModel = flags.model
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, config.Config{}, "", err
	}
	logger.SetWire(logger.NewWireLogger(logger.Root(), cfg.DebugLogging))

	workdir := flags.workdir
	if workdir == "" {
		if cwd, err := os.Getwd(); err == nil {
			workdir = cwd
		}
	}

	provider, err := providers.New(cfg)
	if err != nil {
		return nil, config.Config{}, "", err
	}
	registry := tools.NewRegistry(handlers.Default(workdir)...)
	dispatcher := tools.NewDispatcher(registry, time.Duration(cfg.ToolTimeoutSecs)*time.Second)

	ag := agent.New(agent.Options{
		Provider:     provider,
		Conversation: conversation.New(""),
		Tools:        dispatcher,
		MaxTokens:    cfg.MaxTokens,
		Temperature:  cfg.Temperature,
		Streaming:    cfg.Streaming,
	})
	log.Infof("agent ready provider=%s model=%s workdir=%s", cfg.Provider, cfg.Model(), workdir)
	return ag, cfg, workdir, nil
}
