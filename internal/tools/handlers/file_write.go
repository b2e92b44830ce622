package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"anvil-cli/internal/llm"
)

type FileWriteHandler struct {
	Workdir string
}

func (FileWriteHandler) Name() string { return "write_file" }

func (FileWriteHandler) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "write_file",
		Description: "Write content to a file, creating parent directories as needed. Overwrites the file if it already exists.",
		Parameters: map[string]llm.ParameterDefinition{
			"path": {
				Type:        "string",
				Description: "The file path to write (relative to the working directory or absolute)",
				Required:    true,
			},
			"content": {
				Type:        "string",
				Description: "The full content to write to the file",
				Required:    true,
			},
		},
	}
}

func (h FileWriteHandler) Handle(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid write_file payload: %w", err)
	}
	if in.Path == "" {
		return "", fmt.Errorf("missing required parameter: path")
	}

	target := resolvePath(h.Workdir, in.Path)
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(target, []byte(in.Content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("Successfully wrote %d bytes to %s", len(in.Content), in.Path), nil
}
