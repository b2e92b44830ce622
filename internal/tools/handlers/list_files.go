package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"anvil-cli/internal/llm"
	"anvil-cli/internal/search"
)

type ListFilesHandler struct {
	Workdir string
}

func (ListFilesHandler) Name() string { return "list_files" }

func (ListFilesHandler) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "list_files",
		Description: "List files and directories at a path. Directories are suffixed with '/'.",
		Parameters: map[string]llm.ParameterDefinition{
			"path": {
				Type:        "string",
				Description: "The directory to list (defaults to the working directory)",
			},
			"recursive": {
				Type:        "boolean",
				Description: "Recurse into subdirectories",
			},
			"pattern": {
				Type:        "string",
				Description: "Glob pattern applied to file names, e.g. *.go",
			},
		},
	}
}

func (h ListFilesHandler) Handle(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Path      string `json:"path"`
		Recursive bool   `json:"recursive"`
		Pattern   string `json:"pattern"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid list_files payload: %w", err)
	}
	root := h.Workdir
	if in.Path != "" {
		root = resolvePath(h.Workdir, in.Path)
	}
	if root == "" {
		root = "."
	}

	var entries []string
	if in.Recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if path == root {
				return nil
			}
			if d.IsDir() && search.SkippedDir(d.Name()) {
				return filepath.SkipDir
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			if d.IsDir() {
				entries = append(entries, rel+"/")
				return nil
			}
			if matchName(in.Pattern, d.Name()) {
				entries = append(entries, rel)
			}
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to list files: %w", err)
		}
	} else {
		dirents, err := os.ReadDir(root)
		if err != nil {
			return "", fmt.Errorf("failed to list files: %w", err)
		}
		for _, d := range dirents {
			if d.IsDir() {
				entries = append(entries, d.Name()+"/")
				continue
			}
			if matchName(in.Pattern, d.Name()) {
				entries = append(entries, d.Name())
			}
		}
	}

	if len(entries) == 0 {
		return "No files found", nil
	}
	sort.Strings(entries)
	return strings.Join(entries, "\n"), nil
}

func matchName(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}

