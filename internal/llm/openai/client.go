package openai

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
	defaultBaseURL = "https://api.openai.com/v1"
	backendName    = "openai"
)

// Options 描述构造客户端所需的配置。BaseURL 指向 /v1 一级，
// 自定义端点（chat-completions 兼容服务）走同一实现。
type Options struct {
	APIKey  string
	BaseURL string
	Model   string

	HTTPClient *http.Client
}

// Client 直连 chat-completions 端点的适配器。
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

var _ llm.Provider = (*Client)(nil)

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("missing model")
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
		apiKey:  strings.TrimSpace(opts.APIKey),
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
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.http.Do(httpReq)
}

// ---- 请求编码 ----

type chatRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
	Messages    []chatMessage `json:"messages"`
	Tools       []toolParam   `json:"tools,omitempty"`
}

type chatMessage struct {
	Role       string          `json:"role"`
	Content    string          `json:"content"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCallParam `json:"tool_calls,omitempty"`
}

type toolCallParam struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Function functionParam `json:"function"`
}

type functionParam struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolParam struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// buildRequest 把中立消息映射为 chat-completions 请求体：角色平铺，
// 工具结果用独立的 tool 角色加 tool_call_id，助手侧调用回放为 tool_calls。
func (c *Client) buildRequest(req llm.Request, stream bool) chatRequest {
	out := chatRequest{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
	for _, msg := range req.Messages {
		entry := chatMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			entry.ToolCalls = append(entry.ToolCalls, toolCallParam{
				ID:   call.ID,
				Type: "function",
				Function: functionParam{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		out.Messages = append(out.Messages, entry)
	}
	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, toolParam{
			Type: "function",
			Function: functionSpec{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  llm.SchemaObject(tool.Parameters),
			},
		})
	}
	return out
}

// ---- 响应解码 ----

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func decodeResponse(payload []byte) llm.Response {
	var decoded chatResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return llm.Failure{Message: fmt.Sprintf("parse response: %v", err)}
	}
	if len(decoded.Choices) == 0 {
		return llm.Failure{Message: "no choices in response"}
	}
	message := decoded.Choices[0].Message
	if len(message.ToolCalls) > 0 {
		calls := make([]llm.ToolCall, 0, len(message.ToolCalls))
		for _, call := range message.ToolCalls {
			args := call.Function.Arguments
			if strings.TrimSpace(args) == "" {
				args = "{}"
			}
			calls = append(calls, llm.ToolCall{ID: call.ID, Name: call.Function.Name, Arguments: args})
		}
		return llm.ToolUse{ToolCalls: calls}
	}
	return llm.Text{Content: message.Content}
}
