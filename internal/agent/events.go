package agent

// Event 是回合执行过程对外发布的唯一契约。一个回合的事件序列以
// Thinking 开始（每次模型往返前都有一个），以恰好一个 Done 收尾，
// 无论正常完成、出错还是触发迭代上限。
type Event interface {
	isEvent()
}

// Thinking 表示即将发起一次模型往返。
type Thinking struct{}

// TextDelta 是流式模式下的增量文本。
type TextDelta struct {
	Text string
}

// TextResponse 是本回合的最终文本回答（流式模式下为累积全文）。
type TextResponse struct {
	Content string
}

// ToolCallStart 表示一次工具调用开始执行。流式模式下在调用宣告时发出，
// 彼时参数尚未到齐，Arguments 为空串。
type ToolCallStart struct {
	Name      string
	Arguments string
}

// ToolCallResult 携带一次工具调用的文本结果与成败标记。
type ToolCallResult struct {
	Name    string
	Result  string
	Success bool
}

// Error 表示回合级失败（后端错误、迭代上限）。之后仍会发出 Done。
type Error struct {
	Message string
}

// Done 是回合的终结事件，每回合恰好一次。
type Done struct{}

func (Thinking) isEvent()       {}
func (TextDelta) isEvent()      {}
func (TextResponse) isEvent()   {}
func (ToolCallStart) isEvent()  {}
func (ToolCallResult) isEvent() {}
func (Error) isEvent()          {}
func (Done) isEvent()           {}
