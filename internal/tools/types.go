package tools

import (
	"context"
	"encoding/json"

	"anvil-cli/internal/llm"
)

// Handler 定义具体工具的执行入口。Handle 返回的 error 表示工具失败，
// 由调度层转成可回灌给模型的错误文本，不会让回合中断。
type Handler interface {
	Name() string
	Definition() llm.ToolDefinition
	Handle(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry 按名字索引全部已注册工具。
type Registry struct {
	handlers map[string]Handler
	order    []string
}

func NewRegistry(handlers ...Handler) *Registry {
	table := make(map[string]Handler, len(handlers))
	order := make([]string, 0, len(handlers))
	for _, h := range handlers {
		if h == nil {
			continue
		}
		table[h.Name()] = h
		order = append(order, h.Name())
	}
	return &Registry{handlers: table, order: order}
}

func (r *Registry) Handler(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Definitions 按注册顺序返回全部工具 schema。
func (r *Registry) Definitions() []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handlers[name].Definition())
	}
	return out
}
