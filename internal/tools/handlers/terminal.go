package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/creack/pty"
	shellwords "github.com/mattn/go-shellwords"

	"anvil-cli/internal/llm"
)

const (
	defaultCommandTimeout = 60 * time.Second
	maxOutputLines        = 500
)

type TerminalHandler struct {
	Workdir string
}

func (TerminalHandler) Name() string { return "run_terminal" }

func (TerminalHandler) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "run_terminal",
		Description: "Run a shell command and return its combined output. Long output is truncated.",
		Parameters: map[string]llm.ParameterDefinition{
			"command": {
				Type:        "string",
				Description: "The shell command to execute",
				Required:    true,
			},
			"cwd": {
				Type:        "string",
				Description: "Working directory for the command (defaults to the session working directory)",
			},
			"timeout_secs": {
				Type:        "number",
				Description: "Seconds to wait before the command is killed (default 60)",
			},
		},
	}
}

func (h TerminalHandler) Handle(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Command     string  `json:"command"`
		Cwd         string  `json:"cwd"`
		TimeoutSecs float64 `json:"timeout_secs"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid run_terminal payload: %w", err)
	}
	if strings.TrimSpace(in.Command) == "" {
		return "", fmt.Errorf("missing required parameter: command")
	}
	if reason := riskyCommand(in.Command); reason != "" {
		return "", fmt.Errorf("command refused: %s", reason)
	}

	timeout := defaultCommandTimeout
	if in.TimeoutSecs > 0 {
		timeout = time.Duration(in.TimeoutSecs * float64(time.Second))
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	workdir := h.Workdir
	if in.Cwd != "" {
		workdir = resolvePath(h.Workdir, in.Cwd)
	}

	cmd := exec.CommandContext(ctx, "bash", "-lc", in.Command)
	if workdir != "" {
		cmd.Dir = workdir
	}
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return "", fmt.Errorf("failed to start pty: %w", err)
	}
	defer ptmx.Close()

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(&buf, ptmx)
		close(done)
	}()

	waitErr := cmd.Wait()
	ptmx.Close()
	<-done

	out := capLines(buf.String(), maxOutputLines)
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("command timed out after %s", timeout)
	}
	if waitErr != nil {
		code := exitCode(waitErr)
		if out == "" {
			return "", fmt.Errorf("command exited with code %d", code)
		}
		return fmt.Sprintf("%s\nError: Command exited with code %d", out, code), nil
	}
	if out == "" {
		return "(no output)", nil
	}
	return out, nil
}

// riskyCommand 对明显破坏性的命令做一层保守拦截。返回空串表示放行。
func riskyCommand(command string) string {
	words, err := shellwords.Parse(command)
	if err != nil || len(words) == 0 {
		return ""
	}
	switch words[0] {
	case "rm":
		for _, w := range words[1:] {
			if strings.HasPrefix(w, "-") && strings.Contains(w, "r") && strings.Contains(w, "f") {
				for _, arg := range words[1:] {
					if arg == "/" || arg == "/*" {
						return "refusing to delete the filesystem root"
					}
				}
			}
		}
	case "mkfs", "mkfs.ext4", "mkfs.xfs":
		return "refusing to format a device"
	case "dd":
		for _, w := range words[1:] {
			if strings.HasPrefix(w, "of=/dev/") {
				return "refusing to write directly to a device"
			}
		}
	}
	return ""
}

func capLines(s string, max int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= max {
		return strings.TrimRight(s, "\n")
	}
	kept := strings.Join(lines[:max], "\n")
	return kept + fmt.Sprintf("\n... output truncated (exceeded %d lines)", max)
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
