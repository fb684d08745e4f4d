// Package builtin registers the tools rig ships with.
package builtin

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rajiknows/rig/tool"
)

// Builtin tool names.
const (
	ReadFile      = "read_file"
	ListDirectory = "list_directory"
	Glob          = "glob"
	CurrentTime   = "current_time"
	Add           = "add"
	FetchURL      = "fetch_url"
)

// Names lists every builtin tool in registration order.
var Names = []string{ReadFile, ListDirectory, Glob, CurrentTime, Add, FetchURL}

// Options configures the builtin tools.
type Options struct {
	// WorkingDir resolves relative paths. Defaults to the process directory.
	WorkingDir string
	// Enabled restricts registration to these names. Empty enables all.
	Enabled []string
	// HTTPClient is used by fetch_url.
	HTTPClient *http.Client
	// Now is used by current_time.
	Now func() time.Time
}

// Register adds the enabled builtin tools to set.
func Register(set *tool.ToolSet, opts Options) error {
	if opts.WorkingDir == "" {
		opts.WorkingDir = "."
	}
	abs, err := filepath.Abs(opts.WorkingDir)
	if err != nil {
		return fmt.Errorf("resolve working dir: %w", err)
	}
	ws := &workspace{root: abs}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = newFetchClient()
	}

	all := map[string]tool.Tool{
		ReadFile:      ws.readFileTool(),
		ListDirectory: ws.listDirectoryTool(),
		Glob:          ws.globTool(),
		CurrentTime:   currentTimeTool(opts.Now),
		Add:           addTool(),
		FetchURL:      fetchURLTool(opts.HTTPClient),
	}

	enabled := opts.Enabled
	if len(enabled) == 0 {
		enabled = Names
	}
	for _, name := range enabled {
		t, ok := all[name]
		if !ok {
			return fmt.Errorf("unknown builtin tool %q", name)
		}
		if err := set.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}
