package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"anvil-cli/internal/llm"
	"anvil-cli/internal/search"
)

const maxSearchMatches = 100

type SearchCodeHandler struct {
	Workdir string
}

func (SearchCodeHandler) Name() string { return "search_code" }

func (SearchCodeHandler) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "search_code",
		Description: "Search for a text pattern across files in the working directory. Returns matching lines as path:line: text.",
		Parameters: map[string]llm.ParameterDefinition{
			"pattern": {
				Type:        "string",
				Description: "The text to search for",
				Required:    true,
			},
			"file_pattern": {
				Type:        "string",
				Description: "Glob pattern restricting which file names are searched, e.g. *.go",
			},
		},
	}
}

func (h SearchCodeHandler) Handle(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Pattern     string `json:"pattern"`
		FilePattern string `json:"file_pattern"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid search_code payload: %w", err)
	}
	if in.Pattern == "" {
		return "", fmt.Errorf("missing required parameter: pattern")
	}

	root := h.Workdir
	if root == "" {
		root = "."
	}
	matches, err := search.Grep(root, in.Pattern, in.FilePattern, maxSearchMatches)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No matches found for %q", in.Pattern), nil
	}

	var b strings.Builder
	for _, m := range matches {
		b.WriteString(m.String())
		b.WriteByte('\n')
	}
	out := strings.TrimRight(b.String(), "\n")
	if len(matches) == maxSearchMatches {
		out += fmt.Sprintf("\n... results capped at %d matches", maxSearchMatches)
	}
	return out, nil
}
