package llm

import "sort"

// Role 标识消息在对话中的角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall 表示模型发起的一次工具调用。Arguments 为原始 JSON 文本，
// 流式场景下先增量累积，随消息入库后不再改写。
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message 是后端无关的对话消息。Content 与 ToolCalls 恰有其一承载语义；
// RoleTool 的消息必须携带 ToolCallID。
type Message struct {
	Role       Role
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ParameterDefinition 描述工具参数的 schema 元数据。
type ParameterDefinition struct {
	Type        string
	Description string
	Required    bool
	Enum        []string
}

// ToolDefinition 是对外声明的工具 schema，由各适配器翻译成后端的原生形态。
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]ParameterDefinition
}

// SchemaObject 将参数定义翻译为 JSON-schema 形态的 object。
// required 按参数名排序，保证序列化结果稳定。
func SchemaObject(params map[string]ParameterDefinition) map[string]any {
	properties := make(map[string]any, len(params))
	required := make([]string, 0, len(params))
	for name, def := range params {
		prop := map[string]any{
			"type":        def.Type,
			"description": def.Description,
		}
		if len(def.Enum) > 0 {
			prop["enum"] = def.Enum
		}
		properties[name] = prop
		if def.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Request 代表一次模型调用的完整请求。
type Request struct {
	Messages    []Message
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature float64
}
