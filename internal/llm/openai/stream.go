package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"anvil-cli/internal/llm"
	"anvil-cli/internal/logger"

	"github.com/google/uuid"
)

const doneSentinel = "[DONE]"

type streamPayload struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamChat 发起流式请求并增量解码，流终止于 data: [DONE] 哨兵行。
func (c *Client) StreamChat(ctx context.Context, req llm.Request) <-chan llm.StreamChunk {
	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		emit := func(chunk llm.StreamChunk) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		body, err := json.Marshal(c.buildRequest(req, true))
		if err != nil {
			emit(llm.StreamError{Message: fmt.Sprintf("encode request: %v", err)})
			return
		}
		logger.Wire().Request(backendName, c.model, len(req.Messages))
		logger.Wire().RequestBody(backendName, body)

		resp, err := c.post(ctx, body)
		if err != nil {
			logger.Wire().Error(backendName, err)
			emit(llm.StreamError{Message: fmt.Sprintf("stream failed: %v", err)})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			payload, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(payload)))
			logger.Wire().Error(backendName, err)
			emit(llm.StreamError{Message: err.Error()})
			return
		}

		decodeStream(resp.Body, emit)
	}()
	return out
}

// decodeStream 是协议 B 的增量解码器。
//
// 每个 tool_calls 条目带位置 index，id 只在首个分片出现。首次见到某 index
// 时登记 index→id（id 缺失则造一个占位 id，保证后续片段仍可归属）；参数
// 片段优先用条目自带的 id 归属，id 缺失或未宣告时回落到 index 查表，绝不按插入顺序
// 猜测，交错的多个调用各自归位。[DONE] 哨兵触发收尾：按开始顺序补发
// ToolCallEnd，再发 StreamDone。
func decodeStream(body io.Reader, emit func(llm.StreamChunk) bool) {
	idByIndex := map[int]string{}
	open := map[string]bool{}
	order := []string{}

	flush := func() bool {
		for _, id := range order {
			if !open[id] {
				continue
			}
			open[id] = false
			if !emit(llm.ToolCallEnd{ID: id}) {
				return false
			}
		}
		return true
	}

	scanner := llm.NewSSEScanner(body)
	for {
		data, ok := scanner.Next()
		if !ok {
			break
		}
		logger.Wire().StreamChunk(backendName, data)

		if data == doneSentinel {
			if !flush() {
				return
			}
			emit(llm.StreamDone{})
			logger.Wire().StreamComplete(backendName)
			return
		}

		var payload streamPayload
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			// 单行损坏：跳过并继续，保持流存活。
			continue
		}
		if len(payload.Choices) == 0 {
			continue
		}
		delta := payload.Choices[0].Delta

		for _, call := range delta.ToolCalls {
			if _, known := idByIndex[call.Index]; !known {
				id := call.ID
				if id == "" {
					// 后端在首片未给 id：造占位 id，保住片段归属。
					id = "call_" + uuid.NewString()
				}
				idByIndex[call.Index] = id
				open[id] = true
				order = append(order, id)
				if !emit(llm.ToolCallStart{ID: id, Name: call.Function.Name}) {
					return
				}
			}

			if call.Function.Arguments == "" {
				continue
			}
			// 片段自带的 id 未必是已宣告的那个：首片缺 id 时该 index 已
			// 登记为占位 id，后到的真实 id 仍按 index 归回原调用。
			id := call.ID
			if id == "" || !open[id] {
				id = idByIndex[call.Index]
			}
			if id == "" || !open[id] {
				continue
			}
			if !emit(llm.ToolCallDelta{ID: id, Fragment: call.Function.Arguments}) {
				return
			}
		}

		if delta.Content != "" {
			if !emit(llm.TextDelta{Text: delta.Content}) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Wire().Error(backendName, err)
		emit(llm.StreamError{Message: fmt.Sprintf("stream read: %v", err)})
		return
	}
	// 连接在 [DONE] 之前正常关闭：尽力收尾。
	if !flush() {
		return
	}
	emit(llm.StreamDone{})
	logger.Wire().StreamComplete(backendName)
}
