package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"anvil-cli/internal/llm"
)

type FileReadHandler struct {
	Workdir string
}

func (FileReadHandler) Name() string { return "read_file" }

func (FileReadHandler) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "read_file",
		Description: "Read the contents of a file. Returns the full text of the file.",
		Parameters: map[string]llm.ParameterDefinition{
			"path": {
				Type:        "string",
				Description: "The file path to read (relative to the working directory or absolute)",
				Required:    true,
			},
		},
	}
}

func (h FileReadHandler) Handle(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid read_file payload: %w", err)
	}
	if in.Path == "" {
		return "", fmt.Errorf("missing required parameter: path")
	}
	data, err := os.ReadFile(resolvePath(h.Workdir, in.Path))
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

func resolvePath(workdir, path string) string {
	if filepath.IsAbs(path) || workdir == "" {
		return path
	}
	return filepath.Join(workdir, path)
}
