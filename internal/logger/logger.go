package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger/LogEntry 是对 logrus 类型的别名，调用方不直接 import logrus。
type Logger = logrus.Logger
type LogEntry = logrus.Entry

// DefaultLogPath 默认日志文件路径。
const DefaultLogPath = "logs/anvil-cli.log"

var rootLogger = logrus.StandardLogger()

func root() *logrus.Logger {
	if rootLogger == nil {
		rootLogger = logrus.StandardLogger()
	}
	return rootLogger
}

// Root 返回全局共享的 logger。
func Root() *Logger {
	return root()
}

// Configure 初始化全局日志：启用 caller 定位并安装行格式化器。
// 应在进程启动时调用一次。
func Configure() {
	l := root()
	l.SetReportCaller(true)
	l.SetFormatter(lineFormatter{})
}

// SetupFile 把全局日志重定向到 path 指向的文件（追加写入），
// 父目录不存在时自动创建。返回文件的 closer 与实际路径。
func SetupFile(path string) (io.Closer, string, error) {
	if path == "" {
		path = DefaultLogPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("open log file: %w", err)
	}
	root().SetOutput(f)
	return f, path, nil
}

// Named 返回带 component 字段的日志入口，各子系统用自己的名字创建。
func Named(component string) *LogEntry {
	entry := logrus.NewEntry(root())
	if component != "" {
		entry = entry.WithField("component", component)
	}
	return entry
}

// Warnf 通过全局 logger 输出一条 Warn 日志。
func Warnf(format string, args ...any) {
	root().Warnf(format, args...)
}

// lineFormatter 按 "file:line ts LEVEL [component] message k=v" 拼单行。
type lineFormatter struct{}

func (lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if entry == nil {
		return nil, nil
	}
	var b strings.Builder
	if entry.HasCaller() && entry.Caller != nil {
		b.WriteString(trimSourcePath(entry.Caller.File))
		fmt.Fprintf(&b, ":%d ", entry.Caller.Line)
	}
	b.WriteString(entry.Time.UTC().Format(time.RFC3339Nano))
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(entry.Level.String()))
	if component, ok := entry.Data["component"].(string); ok && component != "" {
		fmt.Fprintf(&b, " [%s]", component)
	}
	b.WriteByte(' ')
	b.WriteString(entry.Message)
	writeFields(&b, entry.Data)
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func writeFields(b *strings.Builder, data logrus.Fields) {
	keys := make([]string, 0, len(data))
	for k := range data {
		if k == "component" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, data[k])
	}
}

// trimSourcePath 把 caller 的绝对路径裁到仓库内相对路径。
func trimSourcePath(file string) string {
	file = filepath.ToSlash(file)
	for _, anchor := range []string{"/internal/", "/cmd/"} {
		if idx := strings.Index(file, anchor); idx != -1 {
			return file[idx+1:]
		}
	}
	return filepath.Base(file)
}
