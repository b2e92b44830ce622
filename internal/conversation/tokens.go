package conversation

import (
	"sync"

	"anvil-cli/internal/logger"

	"github.com/pkoukk/tiktoken-go"
)

const approxBytesPerToken = 4

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens 粗估当前历史占用的 token 数，供状态栏与预算展示使用。
// 优先使用 cl100k_base 编码；编码表加载失败（离线环境）时回落到
// bytes/4 启发式。
func (c *Conversation) EstimateTokens() int {
	total := 0
	for _, msg := range c.Messages() {
		total += countTokens(msg.Content)
		for _, call := range msg.ToolCalls {
			total += countTokens(call.Name)
			total += countTokens(call.Arguments)
		}
	}
	return total
}

func countTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := loadEncoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return ApproxTokenCount(text)
}

func loadEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			logger.Warnf("tiktoken encoding unavailable, falling back to byte estimate: %v", err)
			return
		}
		encoding = enc
	})
	return encoding
}

// ApproxTokenCount 是 ceil(len_bytes/4) 的粗略估计。
func ApproxTokenCount(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + approxBytesPerToken - 1) / approxBytesPerToken
}
