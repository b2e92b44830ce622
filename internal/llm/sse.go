package llm

import (
	"bufio"
	"io"
	"strings"
)

const dataPrefix = "data: "

// 单行事件的扫描上限。工具参数较大的事件可能超过 bufio 默认的 64KB。
const maxSSELineBytes = 1 << 20

// SSEScanner 按行消费 text/event-stream 响应体，只取 "data: " 帧的载荷。
// 非事件行（注释、event: 行、空行）被直接跳过。
type SSEScanner struct {
	scanner *bufio.Scanner
}

func NewSSEScanner(r io.Reader) *SSEScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxSSELineBytes)
	return &SSEScanner{scanner: s}
}

// Next 返回下一个非空 data 载荷；流耗尽或出错时返回 false。
func (s *SSEScanner) Next() (string, bool) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if data == "" {
			continue
		}
		return data, true
	}
	return "", false
}

// Err 返回底层读取错误；正常 EOF 返回 nil。
func (s *SSEScanner) Err() error {
	return s.scanner.Err()
}
