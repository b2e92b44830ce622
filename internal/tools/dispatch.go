package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"anvil-cli/internal/llm"
	"anvil-cli/internal/logger"
)

// Dispatcher 把（工具名, 参数 JSON）路由到已注册的 Handler 并执行。
// 未知工具与非法参数 JSON 都以 error 报告给调用方，由 agent 层回灌模型。
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	log      *logger.LogEntry
}

// NewDispatcher 构造调度器。timeout<=0 时不加整体超时（run_terminal 自带
// 命令级超时）。
func NewDispatcher(registry *Registry, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		timeout:  timeout,
		log:      logger.Named("tools"),
	}
}

// Definitions 返回可供模型调用的全部工具 schema。
func (d *Dispatcher) Definitions() []llm.ToolDefinition {
	return d.registry.Definitions()
}

// Dispatch 执行一次工具调用并返回其文本输出。
func (d *Dispatcher) Dispatch(ctx context.Context, name string, arguments string) (string, error) {
	handler, ok := d.registry.Handler(name)
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}

	args, err := normalizeArgs(arguments)
	if err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := handler.Handle(ctx, args)
	elapsed := time.Since(start)
	if err != nil {
		d.log.Warnf("tool=%s elapsed=%s err=%v", name, elapsed, err)
		return "", err
	}
	d.log.Infof("tool=%s elapsed=%s output_len=%d", name, elapsed, len(output))
	return output, nil
}

// normalizeArgs 校验参数必须是 JSON object；空串按空对象处理。
func normalizeArgs(arguments string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(arguments)
	if trimmed == "" {
		return json.RawMessage("{}"), nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return nil, err
	}
	return json.RawMessage(trimmed), nil
}
