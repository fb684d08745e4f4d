package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rajiknows/rig/completion"
	"github.com/rajiknows/rig/tool"
)

const defaultReadLimit = 2000

type workspace struct {
	root string
}

func (w *workspace) resolve(path string) string {
	if path == "" {
		return w.root
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(w.root, path)
}

func (w *workspace) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return rel
}

func (w *workspace) readFileTool() tool.Tool {
	return tool.Tool{
		Definition: completion.ToolDefinition{
			Name:        ReadFile,
			Description: "Read a text file. Returns line-numbered content.",
			Parameters: objectSchema(map[string]interface{}{
				"file_path": prop("string", "Path to the file, absolute or relative to the working directory."),
				"offset":    prop("integer", "1-based line number to start reading from."),
				"limit":     prop("integer", "Maximum number of lines to read. Default: 2000."),
			}, "file_path"),
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args, err := tool.ParseArguments(raw)
			if err != nil {
				return "", err
			}
			path, ok := tool.StringArg(args, "file_path")
			if !ok || path == "" {
				return "", fmt.Errorf("file_path is required")
			}
			offset, _ := tool.IntArg(args, "offset")
			limit, _ := tool.IntArg(args, "limit")
			if limit <= 0 {
				limit = defaultReadLimit
			}
			return w.readFile(path, offset, limit)
		},
	}
}

func (w *workspace) readFile(path string, offset, limit int) (string, error) {
	data, err := os.ReadFile(w.resolve(path))
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	start := 0
	if offset > 0 {
		start = offset - 1
	}
	if start >= len(lines) {
		return "", nil
	}
	end := len(lines)
	if start+limit < end {
		end = start + limit
	}

	var sb strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&sb, "%d | %s\n", i+1, lines[i])
	}
	return sb.String(), nil
}

func (w *workspace) listDirectoryTool() tool.Tool {
	return tool.Tool{
		Definition: completion.ToolDefinition{
			Name:        ListDirectory,
			Description: "List the entries of a directory. Directories end with a slash.",
			Parameters: objectSchema(map[string]interface{}{
				"path": prop("string", "Directory to list. Default: working directory."),
			}),
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args, err := tool.ParseArguments(raw)
			if err != nil {
				return "", err
			}
			path, _ := tool.StringArg(args, "path")
			entries, err := os.ReadDir(w.resolve(path))
			if err != nil {
				return "", fmt.Errorf("list_directory: %w", err)
			}
			if len(entries) == 0 {
				return "Directory is empty.", nil
			}
			names := make([]string, len(entries))
			for i, e := range entries {
				names[i] = e.Name()
				if e.IsDir() {
					names[i] += "/"
				}
			}
			sort.Strings(names)
			return strings.Join(names, "\n"), nil
		},
	}
}

func (w *workspace) globTool() tool.Tool {
	return tool.Tool{
		Definition: completion.ToolDefinition{
			Name:        Glob,
			Description: "Find files matching a glob pattern. Returns paths relative to the working directory.",
			Parameters: objectSchema(map[string]interface{}{
				"pattern": prop("string", "Glob pattern (e.g., \"*.go\", \"cmd/*/main.go\")."),
				"path":    prop("string", "Base directory. Default: working directory."),
			}, "pattern"),
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args, err := tool.ParseArguments(raw)
			if err != nil {
				return "", err
			}
			pattern, ok := tool.StringArg(args, "pattern")
			if !ok || pattern == "" {
				return "", fmt.Errorf("pattern is required")
			}
			base, _ := tool.StringArg(args, "path")

			matches, err := filepath.Glob(filepath.Join(w.resolve(base), pattern))
			if err != nil {
				return "", fmt.Errorf("glob: %w", err)
			}
			if len(matches) == 0 {
				return "No files matched the pattern.", nil
			}
			for i, m := range matches {
				matches[i] = w.rel(m)
			}
			sort.Strings(matches)
			return strings.Join(matches, "\n"), nil
		},
	}
}
