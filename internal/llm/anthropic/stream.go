package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"anvil-cli/internal/llm"
	"anvil-cli/internal/logger"
)

// streamEvent 覆盖 messages 协议的全部事件形态；未知字段被忽略。
type streamEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta"`
}

// StreamChat 发起流式请求并增量解码。事件按到达顺序交付；单行解码失败只
// 跳过该行，不中断整个流。
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

// decodeStream 是协议 A 的增量解码器。
//
// 工具参数片段自身不携带调用 id，只有块 index；content_block_start 建立
// index→id 映射，后续 input_json_delta 经由事件上的 index 找回归属的调用，
// 块之间交错也不会串号。收到 message_stop 时先补齐所有未关闭调用的
// ToolCallEnd（按开始顺序），再发 StreamDone。
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

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// 单行损坏：跳过并继续，保持流存活。
			continue
		}

		switch event.Type {
		case "content_block_start":
			if event.ContentBlock == nil || event.ContentBlock.Type != "tool_use" {
				continue
			}
			id := event.ContentBlock.ID
			idByIndex[event.Index] = id
			open[id] = true
			order = append(order, id)
			if !emit(llm.ToolCallStart{ID: id, Name: event.ContentBlock.Name}) {
				return
			}
		case "content_block_delta":
			if event.Delta == nil {
				continue
			}
			switch event.Delta.Type {
			case "text_delta":
				if event.Delta.Text == "" {
					continue
				}
				if !emit(llm.TextDelta{Text: event.Delta.Text}) {
					return
				}
			case "input_json_delta":
				id, known := idByIndex[event.Index]
				if !known || !open[id] {
					continue
				}
				if !emit(llm.ToolCallDelta{ID: id, Fragment: event.Delta.PartialJSON}) {
					return
				}
			}
		case "content_block_stop":
			id, known := idByIndex[event.Index]
			if !known || !open[id] {
				continue
			}
			open[id] = false
			if !emit(llm.ToolCallEnd{ID: id}) {
				return
			}
		case "message_stop":
			if !flush() {
				return
			}
			emit(llm.StreamDone{})
			logger.Wire().StreamComplete(backendName)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Wire().Error(backendName, err)
		emit(llm.StreamError{Message: fmt.Sprintf("stream read: %v", err)})
		return
	}
	// 连接在 message_stop 之前正常关闭：尽力收尾。
	if !flush() {
		return
	}
	emit(llm.StreamDone{})
	logger.Wire().StreamComplete(backendName)
}
