package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"anvil-cli/internal/llm"
	"anvil-cli/internal/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	logger.SetWire(logger.NoopWireLogger{})
	t.Cleanup(func() { logger.SetWire(nil) })
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(Options{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "claude-test",
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("New with empty key: err = nil, want error")
	}
}

func TestChat_DecodesTextResponse(t *testing.T) {
	var gotPath, gotKey, gotVersion string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		io.WriteString(w, `{"content":[{"type":"text","text":"Hello"},{"type":"text","text":" world"}]}`)
	})

	resp := client.Chat(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	text, ok := resp.(llm.Text)
	if !ok {
		t.Fatalf("response = %#v, want llm.Text", resp)
	}
	if text.Content != "Hello world" {
		t.Fatalf("content = %q, want %q", text.Content, "Hello world")
	}
	if gotPath != "/v1/messages" {
		t.Fatalf("path = %q, want %q", gotPath, "/v1/messages")
	}
	if gotKey != "test-key" {
		t.Fatalf("x-api-key = %q, want %q", gotKey, "test-key")
	}
	if gotVersion != "2023-06-01" {
		t.Fatalf("anthropic-version = %q, want %q", gotVersion, "2023-06-01")
	}
}

func TestChat_ToolUseWinsOverText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"content":[
			{"type":"text","text":"Let me check."},
			{"type":"tool_use","id":"toolu_1","name":"read_file","input":{"path":"main.go"}},
			{"type":"tool_use","id":"toolu_2","name":"list_files","input":{}}
		]}`)
	})

	resp := client.Chat(context.Background(), llm.Request{})
	use, ok := resp.(llm.ToolUse)
	if !ok {
		t.Fatalf("response = %#v, want llm.ToolUse", resp)
	}
	if len(use.ToolCalls) != 2 {
		t.Fatalf("calls = %d, want 2", len(use.ToolCalls))
	}
	if use.ToolCalls[0].ID != "toolu_1" || use.ToolCalls[0].Name != "read_file" {
		t.Fatalf("unexpected first call: %#v", use.ToolCalls[0])
	}
	if use.ToolCalls[0].Arguments != `{"path":"main.go"}` {
		t.Fatalf("arguments = %q, want %q", use.ToolCalls[0].Arguments, `{"path":"main.go"}`)
	}
	if use.ToolCalls[1].Arguments != "{}" {
		t.Fatalf("empty input arguments = %q, want %q", use.ToolCalls[1].Arguments, "{}")
	}
}

func TestChat_NonOKStatusBecomesFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"rate limited"}}`)
	})

	resp := client.Chat(context.Background(), llm.Request{})
	failure, ok := resp.(llm.Failure)
	if !ok {
		t.Fatalf("response = %#v, want llm.Failure", resp)
	}
	if !strings.Contains(failure.Message, "API error: 429") {
		t.Fatalf("message = %q, want it to contain %q", failure.Message, "API error: 429")
	}
}

func TestChat_MissingContentBecomesFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"msg_1"}`)
	})

	resp := client.Chat(context.Background(), llm.Request{})
	failure, ok := resp.(llm.Failure)
	if !ok {
		t.Fatalf("response = %#v, want llm.Failure", resp)
	}
	if failure.Message != "no content in response" {
		t.Fatalf("message = %q, want %q", failure.Message, "no content in response")
	}
}

func TestBuildRequest_MapsRoles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	req := client.buildRequest(llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are helpful."},
			{Role: llm.RoleUser, Content: "list files"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
				{ID: "toolu_1", Name: "list_files", Arguments: `{"path":"."}`},
			}},
			{Role: llm.RoleTool, ToolCallID: "toolu_1", Content: "main.go"},
		},
		MaxTokens:   512,
		Temperature: 0.2,
	}, true)

	if !req.Stream {
		t.Fatalf("stream = false, want true")
	}
	if req.System != "You are helpful." {
		t.Fatalf("system = %q, want %q", req.System, "You are helpful.")
	}
	if len(req.Messages) != 3 {
		t.Fatalf("messages = %d, want 3 (system lifted out)", len(req.Messages))
	}

	assistant := req.Messages[1]
	blocks, ok := assistant.Content.([]contentBlock)
	if !ok || len(blocks) != 1 {
		t.Fatalf("assistant content = %#v, want one tool_use block", assistant.Content)
	}
	if blocks[0].Type != "tool_use" || blocks[0].ID != "toolu_1" {
		t.Fatalf("unexpected tool_use block: %#v", blocks[0])
	}

	result := req.Messages[2]
	if result.Role != "user" {
		t.Fatalf("tool result role = %q, want %q", result.Role, "user")
	}
	rblocks, ok := result.Content.([]contentBlock)
	if !ok || len(rblocks) != 1 || rblocks[0].Type != "tool_result" {
		t.Fatalf("tool result content = %#v, want one tool_result block", result.Content)
	}
	if rblocks[0].ToolUseID != "toolu_1" {
		t.Fatalf("tool_use_id = %q, want %q", rblocks[0].ToolUseID, "toolu_1")
	}
}

func TestNormalizeArguments(t *testing.T) {
	if got := string(normalizeArguments("")); got != "{}" {
		t.Fatalf("empty = %q, want %q", got, "{}")
	}
	if got := string(normalizeArguments("{invalid")); got != "{}" {
		t.Fatalf("invalid = %q, want %q", got, "{}")
	}
	if got := string(normalizeArguments(`{"a":1}`)); got != `{"a":1}` {
		t.Fatalf("valid = %q, want %q", got, `{"a":1}`)
	}
}

func TestBuildRequest_ToolSchema(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	req := client.buildRequest(llm.Request{
		Tools: []llm.ToolDefinition{{
			Name:        "read_file",
			Description: "Read a file",
			Parameters: map[string]llm.ParameterDefinition{
				"path": {Type: "string", Description: "file path", Required: true},
			},
		}},
	}, false)

	if len(req.Tools) != 1 {
		t.Fatalf("tools = %d, want 1", len(req.Tools))
	}
	schema, err := json.Marshal(req.Tools[0].InputSchema)
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	for _, want := range []string{`"type":"object"`, `"required":["path"]`} {
		if !strings.Contains(string(schema), want) {
			t.Fatalf("schema = %s, want it to contain %s", schema, want)
		}
	}
}
