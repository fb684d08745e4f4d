// Package tool provides the registry the agent dispatches model tool calls
// through, plus argument helpers and output truncation shared by tools.
package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/rajiknows/rig/completion"
	"github.com/rajiknows/rig/pkg/logger"
)

// Handler executes a tool with its raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Tool pairs a tool definition with its handler.
type Tool struct {
	Definition completion.ToolDefinition
	Handler    Handler
}

// ToolSet manages tool registration, lookup and dispatch.
type ToolSet struct {
	tools      map[string]*Tool
	charLimits map[string]int
	lineLimits map[string]int
	mu         sync.RWMutex
}

// Option configures a ToolSet.
type Option func(*ToolSet)

// WithCharLimits overrides per-tool character limits for output truncation.
func WithCharLimits(limits map[string]int) Option {
	return func(s *ToolSet) {
		for k, v := range limits {
			s.charLimits[k] = v
		}
	}
}

// WithLineLimits overrides per-tool line limits for output truncation.
func WithLineLimits(limits map[string]int) Option {
	return func(s *ToolSet) {
		for k, v := range limits {
			s.lineLimits[k] = v
		}
	}
}

// NewToolSet creates an empty ToolSet.
func NewToolSet(opts ...Option) *ToolSet {
	s := &ToolSet{
		tools:      make(map[string]*Tool),
		charLimits: make(map[string]int),
		lineLimits: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds or replaces a tool.
func (s *ToolSet) Register(t Tool) error {
	if t.Definition.Name == "" {
		return &ToolSetError{Kind: ErrorInvalidTool, Err: errEmptyName}
	}
	if t.Handler == nil {
		return &ToolSetError{Tool: t.Definition.Name, Kind: ErrorInvalidTool, Err: errNilHandler}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[t.Definition.Name] = &t
	return nil
}

// Unregister removes a tool.
func (s *ToolSet) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tools, name)
}

// Get returns a registered tool by name, or nil if not found.
func (s *ToolSet) Get(name string) *Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tools[name]
}

// Definitions returns all tool definitions sorted by name.
func (s *ToolSet) Definitions() []completion.ToolDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defs := make([]completion.ToolDefinition, 0, len(s.tools))
	for _, t := range s.tools {
		defs = append(defs, t.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns the sorted names of all registered tools.
func (s *ToolSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (s *ToolSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tools)
}

// MergeFrom copies all tools from other into s. Tools with the same name
// are overwritten.
func (s *ToolSet) MergeFrom(other *ToolSet) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range other.tools {
		cloned := *t
		s.tools[name] = &cloned
	}
}

// Call dispatches a tool call by name. args must be a JSON object or empty.
// The handler's output is truncated according to the set's limits.
func (s *ToolSet) Call(ctx context.Context, name, args string) (string, error) {
	t := s.Get(name)
	if t == nil {
		return "", &ToolSetError{Tool: name, Kind: ErrorNotFound, Err: ErrToolNotFound}
	}

	raw := json.RawMessage(bytes.TrimSpace([]byte(args)))
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if !json.Valid(raw) {
		return "", &ToolSetError{Tool: name, Kind: ErrorInvalidArguments, Err: errInvalidJSON}
	}
	if raw[0] != '{' {
		return "", &ToolSetError{Tool: name, Kind: ErrorInvalidArguments, Err: errNotObject}
	}

	logger.Debug().Str("tool", name).Int("args_len", len(raw)).Msg("Calling tool")
	out, err := t.Handler(ctx, raw)
	if err != nil {
		return "", &ToolSetError{Tool: name, Kind: ErrorCallFailed, Err: err}
	}

	s.mu.RLock()
	truncated := TruncateToolOutput(out, name, s.charLimits, s.lineLimits)
	s.mu.RUnlock()
	return truncated, nil
}
