package openai

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"anvil-cli/internal/llm"
)

func collectStream(body string) []llm.StreamChunk {
	var chunks []llm.StreamChunk
	decodeStream(strings.NewReader(body), func(c llm.StreamChunk) bool {
		chunks = append(chunks, c)
		return true
	})
	return chunks
}

func sseBody(lines ...string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("data: ")
		b.WriteString(l)
		b.WriteString("\n\n")
	}
	return b.String()
}

func TestDecodeStream_TextDeltas(t *testing.T) {
	chunks := collectStream(sseBody(
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`[DONE]`,
	))

	want := []llm.StreamChunk{
		llm.TextDelta{Text: "Hel"},
		llm.TextDelta{Text: "lo"},
		llm.StreamDone{},
	}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %d, want %d: %#v", len(chunks), len(want), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk[%d] = %#v, want %#v", i, chunks[i], want[i])
		}
	}
}

func TestDecodeStream_SingleToolCall(t *testing.T) {
	chunks := collectStream(sseBody(
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"read_file","arguments":""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"path\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"a.go\"}"}}]}}]}`,
		`[DONE]`,
	))

	want := []llm.StreamChunk{
		llm.ToolCallStart{ID: "call_1", Name: "read_file"},
		llm.ToolCallDelta{ID: "call_1", Fragment: `{"path":`},
		llm.ToolCallDelta{ID: "call_1", Fragment: `"a.go"}`},
		llm.ToolCallEnd{ID: "call_1"},
		llm.StreamDone{},
	}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %d, want %d: %#v", len(chunks), len(want), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk[%d] = %#v, want %#v", i, chunks[i], want[i])
		}
	}
}

// 两个并行调用的片段交错到达：id 缺失时按 index 查表归属，不得串号。
func TestDecodeStream_InterleavedToolCalls(t *testing.T) {
	chunks := collectStream(sseBody(
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a","function":{"name":"read_file","arguments":""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_b","function":{"name":"search_code","arguments":""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":1,"function":{"arguments":"{\"pattern\":\"x\"}"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"path\":\"a.go\"}"}}]}}]}`,
		`[DONE]`,
	))

	argsByID := map[string]string{}
	for _, c := range chunks {
		if d, ok := c.(llm.ToolCallDelta); ok {
			argsByID[d.ID] += d.Fragment
		}
	}
	if got := argsByID["call_a"]; got != `{"path":"a.go"}` {
		t.Fatalf("call_a arguments = %q, want %q", got, `{"path":"a.go"}`)
	}
	if got := argsByID["call_b"]; got != `{"pattern":"x"}` {
		t.Fatalf("call_b arguments = %q, want %q", got, `{"pattern":"x"}`)
	}

	var ends []string
	for _, c := range chunks {
		if e, ok := c.(llm.ToolCallEnd); ok {
			ends = append(ends, e.ID)
		}
	}
	// 收尾按开始顺序补发。
	if len(ends) != 2 || ends[0] != "call_a" || ends[1] != "call_b" {
		t.Fatalf("ends = %v, want [call_a call_b]", ends)
	}
}

// 首片未携带 id：造占位 id，后续片段仍按 index 归属。
func TestDecodeStream_FabricatesMissingID(t *testing.T) {
	chunks := collectStream(sseBody(
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"name":"list_files","arguments":""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{}"}}]}}]}`,
		`[DONE]`,
	))

	start, ok := chunks[0].(llm.ToolCallStart)
	if !ok {
		t.Fatalf("chunk[0] = %#v, want ToolCallStart", chunks[0])
	}
	if !strings.HasPrefix(start.ID, "call_") {
		t.Fatalf("fabricated id = %q, want call_ prefix", start.ID)
	}
	delta, ok := chunks[1].(llm.ToolCallDelta)
	if !ok {
		t.Fatalf("chunk[1] = %#v, want ToolCallDelta", chunks[1])
	}
	if delta.ID != start.ID {
		t.Fatalf("delta id = %q, want %q", delta.ID, start.ID)
	}
}

// 首片缺 id、后续片段才补上真实 id：片段仍须归回占位 id 宣告的那个调用。
func TestDecodeStream_LateIDRoutesToAnnouncedCall(t *testing.T) {
	chunks := collectStream(sseBody(
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"name":"list_files","arguments":""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_real","function":{"arguments":"{\"path\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_real","function":{"arguments":"\".\"}"}}]}}]}`,
		`[DONE]`,
	))

	start, ok := chunks[0].(llm.ToolCallStart)
	if !ok {
		t.Fatalf("chunk[0] = %#v, want ToolCallStart", chunks[0])
	}
	var args string
	for _, c := range chunks {
		d, ok := c.(llm.ToolCallDelta)
		if !ok {
			continue
		}
		if d.ID != start.ID {
			t.Fatalf("delta id = %q, want announced id %q", d.ID, start.ID)
		}
		args += d.Fragment
	}
	if args != `{"path":"."}` {
		t.Fatalf("arguments = %q, want %q", args, `{"path":"."}`)
	}
}

func TestDecodeStream_SkipsMalformedLines(t *testing.T) {
	chunks := collectStream(sseBody(
		`{"choices":[{"delta":{"content":"ok"}}]}`,
		`{broken`,
		`{"choices":[{"delta":{"content":" good"}}]}`,
		`[DONE]`,
	))

	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3: %#v", len(chunks), chunks)
	}
}

// EOF 先于 [DONE]：尽力收尾，仍以 StreamDone 结束。
func TestDecodeStream_EOFWithoutDone(t *testing.T) {
	chunks := collectStream(sseBody(
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"read_file","arguments":""}}]}}]}`,
	))

	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3: %#v", len(chunks), chunks)
	}
	if end, ok := chunks[1].(llm.ToolCallEnd); !ok || end.ID != "call_1" {
		t.Fatalf("chunk[1] = %#v, want ToolCallEnd{call_1}", chunks[1])
	}
	if _, ok := chunks[2].(llm.StreamDone); !ok {
		t.Fatalf("chunk[2] = %#v, want StreamDone", chunks[2])
	}
}

func TestStreamChat_EndToEnd(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseBody(
			`{"choices":[{"delta":{"content":"done"}}]}`,
			`[DONE]`,
		))
	})

	var chunks []llm.StreamChunk
	for c := range client.StreamChat(t.Context(), llm.Request{}) {
		chunks = append(chunks, c)
	}
	want := []llm.StreamChunk{llm.TextDelta{Text: "done"}, llm.StreamDone{}}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %d, want %d: %#v", len(chunks), len(want), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk[%d] = %#v, want %#v", i, chunks[i], want[i])
		}
	}
}

func TestStreamChat_NonOKStatusBecomesStreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream down")
	})

	var chunks []llm.StreamChunk
	for c := range client.StreamChat(t.Context(), llm.Request{}) {
		chunks = append(chunks, c)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1: %#v", len(chunks), chunks)
	}
	serr, ok := chunks[0].(llm.StreamError)
	if !ok {
		t.Fatalf("chunk = %#v, want StreamError", chunks[0])
	}
	if !strings.Contains(serr.Message, "API error: 502") {
		t.Fatalf("message = %q, want it to contain %q", serr.Message, "API error: 502")
	}
}
