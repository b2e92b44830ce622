package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"anvil-cli/internal/llm"
	"anvil-cli/internal/logger"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	backendName    = "anthropic"
)

// Options 描述构造客户端所需的配置。
type Options struct {
	APIKey  string
	BaseURL string
	Model   string

	// HTTPClient 可注入，测试中指向 httptest server。
	HTTPClient *http.Client
}

// Client 直连 messages 端点的适配器。请求与流式解码都在本包内完成。
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

var _ llm.Provider = (*Client)(nil)

func New(opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("missing api key")
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
			},
		}
	}
	return &Client{
		apiKey:  key,
		baseURL: base,
		model:   strings.TrimSpace(opts.Model),
		http:    httpClient,
	}, nil
}

func (c *Client) Name() string { return backendName }

// Chat 发送非流式请求。任何失败都折叠为 llm.Failure。
func (c *Client) Chat(ctx context.Context, req llm.Request) llm.Response {
	body, err := json.Marshal(c.buildRequest(req, false))
	if err != nil {
		return llm.Failure{Message: fmt.Sprintf("encode request: %v", err)}
	}
	logger.Wire().Request(backendName, c.model, len(req.Messages))
	logger.Wire().RequestBody(backendName, body)

	resp, err := c.post(ctx, body)
	if err != nil {
		logger.Wire().Error(backendName, err)
		return llm.Failure{Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Wire().Error(backendName, err)
		return llm.Failure{Message: fmt.Sprintf("read response: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(payload)))
		logger.Wire().Error(backendName, err)
		return llm.Failure{Message: err.Error()}
	}
	logger.Wire().Response(backendName, payload)
	return decodeResponse(payload)
}

func (c *Client) post(ctx context.Context, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	httpReq.Header.Set("Content-Type", "application/json")
	return c.http.Do(httpReq)
}

// ---- 请求编码 ----

type chatRequest struct {
	Model       string         `json:"model"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
	Stream      bool           `json:"stream"`
	System      string         `json:"system,omitempty"`
	Messages    []messageParam `json:"messages"`
	Tools       []toolParam    `json:"tools,omitempty"`
}

type messageParam struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type toolParam struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// buildRequest 把中立消息映射为 messages 协议的请求体：system 提升为顶层
// 字段；工具结果以 user 角色的 tool_result 块表示；助手侧工具调用回放为
// tool_use 块。
func (c *Client) buildRequest(req llm.Request, stream bool) chatRequest {
	out := chatRequest{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			if out.System == "" {
				out.System = msg.Content
			}
		case llm.RoleTool:
			out.Messages = append(out.Messages, messageParam{
				Role: "user",
				Content: []contentBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})
		case llm.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				blocks := make([]contentBlock, 0, len(msg.ToolCalls))
				for _, call := range msg.ToolCalls {
					blocks = append(blocks, contentBlock{
						Type:  "tool_use",
						ID:    call.ID,
						Name:  call.Name,
						Input: normalizeArguments(call.Arguments),
					})
				}
				out.Messages = append(out.Messages, messageParam{Role: "assistant", Content: blocks})
				continue
			}
			out.Messages = append(out.Messages, messageParam{Role: "assistant", Content: msg.Content})
		default:
			out.Messages = append(out.Messages, messageParam{Role: "user", Content: msg.Content})
		}
	}
	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, toolParam{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: llm.SchemaObject(tool.Parameters),
		})
	}
	return out
}

func normalizeArguments(args string) json.RawMessage {
	trimmed := strings.TrimSpace(args)
	if trimmed == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return json.RawMessage("{}")
}

// ---- 响应解码 ----

type chatResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
}

// decodeResponse 提取回答内容：出现 tool_use 块时工具调用优先，穿插的
// 文本被忽略；否则拼接全部 text 块。
func decodeResponse(payload []byte) llm.Response {
	var decoded chatResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return llm.Failure{Message: fmt.Sprintf("parse response: %v", err)}
	}
	if decoded.Content == nil {
		return llm.Failure{Message: "no content in response"}
	}

	var calls []llm.ToolCall
	var text strings.Builder
	for _, block := range decoded.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			args := strings.TrimSpace(string(block.Input))
			if args == "" {
				args = "{}"
			}
			calls = append(calls, llm.ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		}
	}
	if len(calls) > 0 {
		return llm.ToolUse{ToolCalls: calls}
	}
	return llm.Text{Content: text.String()}
}
