package conversation

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"anvil-cli/internal/llm"
)

// MaxToolResultLength 是单条工具结果入库前的长度上限（约 2000 token）。
// 工具输出（文件内容、搜索结果）可能非常大，超限部分截断并附标记，
// 阈值与标记措辞是下游 token 预算的既定约定，不可改动。
const MaxToolResultLength = 8000

// Conversation 持有按序追加的消息历史。首条永远是系统前导；消息一经
// 追加即不可变，修正只能以新消息表达。
//
// 写入只发生在活跃回合内（单活跃回合不变式由 agent 层保证），但 TUI 会
// 并发读取快照，因此仍以互斥锁保护。
type Conversation struct {
	mu       sync.Mutex
	preamble string
	messages []llm.Message
}

func New(preamble string) *Conversation {
	if preamble == "" {
		preamble = DefaultPreamble
	}
	return &Conversation{
		preamble: preamble,
		messages: []llm.Message{{Role: llm.RoleSystem, Content: preamble}},
	}
}

// AddUser 追加一条用户消息。
func (c *Conversation) AddUser(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, llm.Message{Role: llm.RoleUser, Content: text})
}

// AddAssistant 追加一条助手文本消息。
func (c *Conversation) AddAssistant(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, llm.Message{Role: llm.RoleAssistant, Content: text})
}

// AddAssistantToolCalls 追加一条助手工具调用消息（本轮全部调用，按序）。
func (c *Conversation) AddAssistantToolCalls(calls []llm.ToolCall) {
	copied := make([]llm.ToolCall, len(calls))
	copy(copied, calls)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, llm.Message{Role: llm.RoleAssistant, ToolCalls: copied})
}

// AddToolResult 追加一条工具结果消息，超过上限的文本被截断并附说明标记。
func (c *Conversation) AddToolResult(callID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: callID,
		Content:    truncateResult(text),
	})
}

func truncateResult(text string) string {
	total := utf8.RuneCountInString(text)
	if total <= MaxToolResultLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxToolResultLength]) +
		fmt.Sprintf("\n\n[Result truncated - showing first %d characters of %d total]", MaxToolResultLength, total)
}

// Messages 返回当前历史的快照。
func (c *Conversation) Messages() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Clear 重置为仅剩系统前导的状态。
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = []llm.Message{{Role: llm.RoleSystem, Content: c.preamble}}
}

// IsEmpty 在仅剩系统前导时为 true。
func (c *Conversation) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages) <= 1
}

// Len 返回消息条数（含系统前导）。
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// LastUserMessage 返回最近一条用户消息内容，不存在时返回空串。
func (c *Conversation) LastUserMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == llm.RoleUser {
			return c.messages[i].Content
		}
	}
	return ""
}
