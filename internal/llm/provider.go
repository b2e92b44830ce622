package llm

import "context"

// Response 是非流式调用的封闭结果集：Text、ToolUse、Failure 三选一。
// 消费方对其做穷尽 type switch。
type Response interface {
	isResponse()
}

// Text 表示一段纯文本回答。
type Text struct {
	Content string
}

// ToolUse 表示模型要求调用一个或多个工具（按出现顺序）。
type ToolUse struct {
	ToolCalls []ToolCall
}

// Failure 表示适配器边界上被吸收的请求失败（网络、非 2xx、整体解码失败）。
type Failure struct {
	Message string
}

func (Text) isResponse()    {}
func (ToolUse) isResponse() {}
func (Failure) isResponse() {}

// StreamChunk 是流式调用产出的封闭事件集，按到达顺序逐个交付。
type StreamChunk interface {
	isStreamChunk()
}

// TextDelta 是一段增量文本，到达即下发，不做缓冲。
type TextDelta struct {
	Text string
}

// ToolCallStart 宣告一次工具调用开始。
type ToolCallStart struct {
	ID   string
	Name string
}

// ToolCallDelta 是该调用参数 JSON 的一个片段。
type ToolCallDelta struct {
	ID       string
	Fragment string
}

// ToolCallEnd 表示该调用的参数已完整。
type ToolCallEnd struct {
	ID string
}

// StreamDone 是流的正常终点。
type StreamDone struct{}

// StreamError 是流的异常终点，此后不再有分片。
type StreamError struct {
	Message string
}

func (TextDelta) isStreamChunk()     {}
func (ToolCallStart) isStreamChunk() {}
func (ToolCallDelta) isStreamChunk() {}
func (ToolCallEnd) isStreamChunk()   {}
func (StreamDone) isStreamChunk()    {}
func (StreamError) isStreamChunk()   {}

// Provider 定义模型后端適配器。实现负责把失败转成 Failure/StreamError，
// 不得让网络或解析异常越过此边界。
type Provider interface {
	Name() string

	// Chat 单次阻塞调用。
	Chat(ctx context.Context, req Request) Response

	// StreamChat 返回按到达顺序交付的分片序列；终止于 StreamDone 或
	// StreamError，随后关闭通道。消费方通过 ctx 取消提前终止。
	StreamChat(ctx context.Context, req Request) <-chan StreamChunk
}
