package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"anvil-cli/internal/conversation"
	"anvil-cli/internal/llm"
	"anvil-cli/internal/logger"

	"github.com/google/uuid"
)

// DefaultMaxIterations 是单回合内模型往返的上限，防止模型反复调用工具
// 不给出最终回答时无限循环。无条件强制，没有旁路。
const DefaultMaxIterations = 10

const defaultRequestTimeout = 2 * time.Minute

// Dispatcher 是外部工具执行的窄契约。未知工具与参数 JSON 非法都以
// error 返回，绝不 panic。
type Dispatcher interface {
	Definitions() []llm.ToolDefinition
	Dispatch(ctx context.Context, name string, arguments string) (string, error)
}

// Options 定义 Agent 的可注入依赖。
type Options struct {
	Provider       llm.Provider
	Conversation   *conversation.Conversation
	Tools          Dispatcher
	MaxTokens      int
	Temperature    float64
	Streaming      bool
	MaxIterations  int
	RequestTimeout time.Duration
}

// Agent 负责回合编排：调用后端、识别工具调用、顺序执行工具、回填结果，
// 直到模型给出纯文本回答或触及迭代上限。
type Agent struct {
	provider       llm.Provider
	conv           *conversation.Conversation
	tools          Dispatcher
	maxTokens      int
	temperature    float64
	streaming      bool
	maxIterations  int
	requestTimeout time.Duration
	log            *logger.LogEntry

	activeMu sync.Mutex
	active   context.CancelFunc
}

func New(opts Options) *Agent {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	reqTimeout := opts.RequestTimeout
	if reqTimeout <= 0 {
		reqTimeout = defaultRequestTimeout
	}
	conv := opts.Conversation
	if conv == nil {
		conv = conversation.New("")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Agent{
		provider:       opts.Provider,
		conv:           conv,
		tools:          opts.Tools,
		maxTokens:      maxTokens,
		temperature:    opts.Temperature,
		streaming:      opts.Streaming,
		maxIterations:  maxIter,
		requestTimeout: reqTimeout,
		log:            logger.Named("agent"),
	}
}

// Conversation 暴露历史，供 TUI 渲染与状态栏估算使用。
func (a *Agent) Conversation() *conversation.Conversation {
	return a.conv
}

// Cancel 中止当前在飞的回合（若有）。
func (a *Agent) Cancel() {
	a.activeMu.Lock()
	if a.active != nil {
		a.active()
		a.active = nil
	}
	a.activeMu.Unlock()
}

// RunTurn 执行一个用户回合，返回按序交付的事件序列。
//
// 同一 Agent 至多一个活跃回合：新回合开始前先取消前一个（cancel-then-
// replace），历史只被活跃回合改写。事件通道在终结事件后关闭；调用方取消
// ctx 即可中途放弃，之后不会再发起新的后端调用或工具执行。
func (a *Agent) RunTurn(ctx context.Context, userText string) <-chan Event {
	turnCtx, cancel := context.WithCancel(ctx)

	a.activeMu.Lock()
	if a.active != nil {
		a.active()
	}
	a.active = cancel
	a.activeMu.Unlock()

	out := make(chan Event)
	turnID := uuid.NewString()

	go func() {
		defer close(out)
		defer func() {
			a.activeMu.Lock()
			if a.active != nil {
				// 只清掉自己的 handle，后继回合的不动。
				a.active = nil
			}
			a.activeMu.Unlock()
			cancel()
		}()

		emit := func(ev Event) bool {
			select {
			case out <- ev:
				return true
			case <-turnCtx.Done():
				return false
			}
		}

		a.log.WithField("turn_id", turnID).Infof("turn started")
		a.runTurn(turnCtx, userText, emit)
		a.log.WithField("turn_id", turnID).Infof("turn finished")
	}()
	return out
}

func (a *Agent) runTurn(ctx context.Context, userText string, emit func(Event) bool) {
	a.conv.AddUser(userText)
	if !emit(Thinking{}) {
		return
	}

	iterations := 0
	continueLoop := true

	for continueLoop && iterations < a.maxIterations {
		iterations++

		var calls []llm.ToolCall
		var failed bool

		if a.streaming {
			calls, continueLoop, failed = a.streamRound(ctx, emit)
		} else {
			calls, continueLoop, failed = a.blockingRound(ctx, emit)
		}
		if failed {
			break
		}
		if len(calls) == 0 {
			continue
		}

		if !a.executeCalls(ctx, calls, emit) {
			return
		}
		if !emit(Thinking{}) {
			return
		}
	}

	if continueLoop && iterations >= a.maxIterations {
		if !emit(Error{Message: fmt.Sprintf(
			"Agent reached maximum iterations (%d). Stopping to prevent infinite loop.", a.maxIterations)}) {
			return
		}
	}

	emit(Done{})
}

// blockingRound 执行一次非流式模型往返。返回待执行的工具调用、是否继续
// 循环、以及是否已失败终止。
func (a *Agent) blockingRound(ctx context.Context, emit func(Event) bool) (calls []llm.ToolCall, continueLoop bool, failed bool) {
	reqCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	resp := a.provider.Chat(reqCtx, a.request())
	cancel()

	switch v := resp.(type) {
	case llm.Text:
		a.conv.AddAssistant(v.Content)
		if !emit(TextResponse{Content: v.Content}) {
			return nil, false, true
		}
		return nil, false, false
	case llm.ToolUse:
		a.conv.AddAssistantToolCalls(v.ToolCalls)
		return v.ToolCalls, true, false
	case llm.Failure:
		emit(Error{Message: v.Message})
		return nil, false, true
	default:
		emit(Error{Message: fmt.Sprintf("unexpected response type %T", resp)})
		return nil, false, true
	}
}

// streamRound 执行一次流式模型往返：文本增量即时下发，工具参数片段按
// 调用 id 累积，流结束后冻结为完整参数。流式读取只受调用方 ctx 约束，
// 不套请求超时，慢生成是合法的。
func (a *Agent) streamRound(ctx context.Context, emit func(Event) bool) (calls []llm.ToolCall, continueLoop bool, failed bool) {
	var text strings.Builder
	builders := map[string]*strings.Builder{}
	terminated := false

	for chunk := range a.provider.StreamChat(ctx, a.request()) {
		switch v := chunk.(type) {
		case llm.TextDelta:
			text.WriteString(v.Text)
			if !emit(TextDelta{Text: v.Text}) {
				return nil, false, true
			}
		case llm.ToolCallStart:
			builders[v.ID] = &strings.Builder{}
			calls = append(calls, llm.ToolCall{ID: v.ID, Name: v.Name})
			if !emit(ToolCallStart{Name: v.Name}) {
				return nil, false, true
			}
		case llm.ToolCallDelta:
			if b, ok := builders[v.ID]; ok {
				b.WriteString(v.Fragment)
			}
		case llm.ToolCallEnd:
			freezeArguments(calls, builders, v.ID)
		case llm.StreamDone:
			terminated = true
		case llm.StreamError:
			emit(Error{Message: v.Message})
			return nil, false, true
		}
	}

	// 通道在终结分片之前关闭：取消或连接中断。此时累积的文本是被截断的
	// 半成品，绝不能当最终回答写进历史。
	if !terminated {
		msg := "stream interrupted before completion"
		if err := ctx.Err(); err != nil {
			msg = fmt.Sprintf("stream interrupted: %v", err)
		}
		emit(Error{Message: msg})
		return nil, false, true
	}

	// 解码器保证每个 start 都有 end，这里兜底冻结一次。
	for id := range builders {
		freezeArguments(calls, builders, id)
	}

	if len(calls) > 0 {
		a.conv.AddAssistantToolCalls(calls)
		return calls, true, false
	}

	full := text.String()
	if full == "" {
		// 走完整个流却既无文本也无工具调用，与阻塞路径的空响应同等对待。
		emit(Error{Message: "no content in response"})
		return nil, false, true
	}
	a.conv.AddAssistant(full)
	if !emit(TextResponse{Content: full}) {
		return nil, false, true
	}
	return nil, false, false
}

func freezeArguments(calls []llm.ToolCall, builders map[string]*strings.Builder, id string) {
	b, ok := builders[id]
	if !ok {
		return
	}
	args := b.String()
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	for i := range calls {
		if calls[i].ID == id && calls[i].Arguments == "" {
			calls[i].Arguments = args
		}
	}
}

// executeCalls 顺序执行本轮的全部工具调用并把结果回填历史。工具失败不
// 终止回合：以 "Error: ..." 文本回灌给模型。返回 false 表示回合被取消。
func (a *Agent) executeCalls(ctx context.Context, calls []llm.ToolCall, emit func(Event) bool) bool {
	for _, call := range calls {
		if ctx.Err() != nil {
			return false
		}
		if !a.streaming {
			if !emit(ToolCallStart{Name: call.Name, Arguments: call.Arguments}) {
				return false
			}
		}

		resultText, success := a.dispatch(ctx, call)
		a.conv.AddToolResult(call.ID, resultText)
		if !emit(ToolCallResult{Name: call.Name, Result: resultText, Success: success}) {
			return false
		}
	}
	return true
}

func (a *Agent) dispatch(ctx context.Context, call llm.ToolCall) (string, bool) {
	if a.tools == nil {
		return "Error: no tools available", false
	}
	output, err := a.tools.Dispatch(ctx, call.Name, call.Arguments)
	if err != nil {
		a.log.Warnf("tool %s failed: %v", call.Name, err)
		return "Error: " + err.Error(), false
	}
	return output, true
}

func (a *Agent) request() llm.Request {
	req := llm.Request{
		Messages:    a.conv.Messages(),
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	}
	if a.tools != nil {
		req.Tools = a.tools.Definitions()
	}
	return req
}
