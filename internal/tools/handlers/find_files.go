package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"anvil-cli/internal/llm"
	"anvil-cli/internal/search"
)

const maxFindResults = 200

type FindFilesHandler struct {
	Workdir string
}

func (FindFilesHandler) Name() string { return "find_files" }

func (FindFilesHandler) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "find_files",
		Description: "Locate files by a fuzzy query matched against relative paths, e.g. 'agtest' finds internal/agent/agent_test.go.",
		Parameters: map[string]llm.ParameterDefinition{
			"query": {
				Type:        "string",
				Description: "Fuzzy query matched against file paths; empty lists all files",
			},
		},
	}
}

func (h FindFilesHandler) Handle(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid find_files payload: %w", err)
	}
	root := h.Workdir
	if root == "" {
		root = "."
	}
	paths, err := search.FindFiles(root, maxFindResults)
	if err != nil {
		return "", fmt.Errorf("failed to walk files: %w", err)
	}
	paths = search.FilterPaths(paths, in.Query)
	if len(paths) == 0 {
		return fmt.Sprintf("No files matching %q", in.Query), nil
	}
	return strings.Join(paths, "\n"), nil
}
