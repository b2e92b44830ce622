package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// WireLogger 负责输出与模型后端交互的请求、分片与错误信息。
// 适配器在每次 HTTP 往返处调用；debug 模式下逐分片记录。
type WireLogger interface {
	Request(backend, model string, messageCount int)
	RequestBody(backend string, body []byte)
	Response(backend string, body []byte)
	StreamChunk(backend string, line string)
	StreamComplete(backend string)
	Error(backend string, err error)
}

var wireLog WireLogger = NewWireLogger(nil, false)

// Wire 返回全局唯一的 wire 日志实例。
func Wire() WireLogger {
	return wireLog
}

// SetWire 覆盖全局 wire 日志实例，传入 nil 将重置为默认实现。
func SetWire(l WireLogger) {
	if l == nil {
		l = NewWireLogger(nil, false)
	}
	wireLog = l
}

// StdWireLogger 使用 logrus 输出日志。Debug=false 时仅记录请求概要与错误。
type StdWireLogger struct {
	entry *LogEntry
	debug bool
}

// NewWireLogger 构造默认的 wire 日志记录器。
func NewWireLogger(l *Logger, debug bool) *StdWireLogger {
	if l == nil {
		l = root()
	}
	return &StdWireLogger{
		entry: logrus.NewEntry(l).WithField("component", "wire"),
		debug: debug,
	}
}

// Request 记录一次请求的概要。
func (l *StdWireLogger) Request(backend, model string, messageCount int) {
	l.entry.Infof("-> request backend=%s model=%s messages=%d", backend, model, messageCount)
}

// RequestBody 在 debug 模式下记录完整请求体。
func (l *StdWireLogger) RequestBody(backend string, body []byte) {
	if !l.debug {
		return
	}
	l.entry.Infof("-> body backend=%s payload=%s", backend, sanitize(string(body)))
}

// Response 在 debug 模式下记录完整的非流式响应体。
func (l *StdWireLogger) Response(backend string, body []byte) {
	if !l.debug {
		return
	}
	l.entry.Infof("<- response backend=%s payload=%s", backend, sanitize(string(body)))
}

// StreamChunk 在 debug 模式下记录流式响应的单行。
func (l *StdWireLogger) StreamChunk(backend string, line string) {
	if !l.debug {
		return
	}
	l.entry.Debugf("<- line backend=%s text=%s", backend, sanitize(line))
}

// StreamComplete 记录流式响应完成。
func (l *StdWireLogger) StreamComplete(backend string) {
	l.entry.Infof("<- stream completed backend=%s", backend)
}

// Error 记录请求错误。
func (l *StdWireLogger) Error(backend string, err error) {
	l.entry.Errorf("!! error backend=%s err=%v", backend, err)
}

// NoopWireLogger 忽略所有日志输出，测试中使用。
type NoopWireLogger struct{}

func (NoopWireLogger) Request(backend, model string, messageCount int) {}
func (NoopWireLogger) RequestBody(backend string, body []byte)         {}
func (NoopWireLogger) Response(backend string, body []byte)            {}
func (NoopWireLogger) StreamChunk(backend string, line string)         {}
func (NoopWireLogger) StreamComplete(backend string)                   {}
func (NoopWireLogger) Error(backend string, err error)                 {}

func sanitize(text string) string {
	text = strings.ReplaceAll(text, "\n", `\n`)
	text = strings.ReplaceAll(text, "\r", `\r`)
	return text
}
