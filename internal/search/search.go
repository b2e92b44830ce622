package search

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sahilm/fuzzy"
)

var skipDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	".idea":        {},
	"target":       {},
	"vendor":       {},
	"build":        {},
	"dist":         {},
}

// SkippedDir 报告 name 是否属于统一的目录忽略名单。遍历工作区的调用方
// 共用这一份名单，避免各处各维护一套。
func SkippedDir(name string) bool {
	_, skip := skipDirs[name]
	return skip
}

// FindFiles returns up to limit relative file paths under root, skipping common ignores.
func FindFiles(root string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 200
	}
	paths := make([]string, 0, limit)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, rel)
		if len(paths) >= limit {
			return fs.SkipAll
		}
		return nil
	})
	return paths, err
}

// FilterPaths 用模糊匹配筛选路径，query 为空时原样返回。
func FilterPaths(paths []string, query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return paths
	}
	matches := fuzzy.Find(strings.ToLower(query), lowered(paths))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, paths[m.Index])
	}
	return out
}

func lowered(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = strings.ToLower(p)
	}
	return out
}

// Match 是一次内容命中：相对路径、行号与该行文本。
type Match struct {
	Path string
	Line int
	Text string
}

func (m Match) String() string {
	return fmt.Sprintf("%s:%d: %s", m.Path, m.Line, m.Text)
}

// Grep 在 root 下做子串搜索，filePattern（glob，匹配文件名）可选，
// 命中数到 maxMatches 即停。二进制与超长行直接跳过。
func Grep(root, pattern, filePattern string, maxMatches int) ([]Match, error) {
	if maxMatches <= 0 {
		maxMatches = 100
	}
	matches := make([]Match, 0, maxMatches)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if filePattern != "" {
			if ok, _ := filepath.Match(filePattern, d.Name()); !ok {
				return nil
			}
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		found, err := grepFile(path, rel, pattern, maxMatches-len(matches))
		if err != nil {
			// 不可读的文件跳过，不中断整体搜索。
			return nil
		}
		matches = append(matches, found...)
		if len(matches) >= maxMatches {
			return fs.SkipAll
		}
		return nil
	})
	return matches, err
}

func grepFile(path, rel, pattern string, budget int) ([]Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Match
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.Contains(text, "\x00") {
			return out, nil
		}
		if strings.Contains(text, pattern) {
			out = append(out, Match{Path: rel, Line: line, Text: strings.TrimSpace(text)})
			if len(out) >= budget {
				return out, nil
			}
		}
	}
	return out, scanner.Err()
}
