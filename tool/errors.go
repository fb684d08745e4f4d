package tool

import (
	"errors"
	"fmt"
)

// ErrToolNotFound is returned when a call names an unregistered tool.
var ErrToolNotFound = errors.New("tool not found")

var (
	errEmptyName   = errors.New("tool name is empty")
	errNilHandler  = errors.New("tool handler is nil")
	errInvalidJSON = errors.New("arguments are not valid JSON")
	errNotObject   = errors.New("arguments are not a JSON object")
)

// ErrorKind classifies a ToolSetError.
type ErrorKind string

const (
	ErrorNotFound         ErrorKind = "not_found"
	ErrorInvalidArguments ErrorKind = "invalid_arguments"
	ErrorCallFailed       ErrorKind = "call_failed"
	ErrorInvalidTool      ErrorKind = "invalid_tool"
)

// ToolSetError is returned by ToolSet operations.
type ToolSetError struct {
	Tool string
	Kind ErrorKind
	Err  error
}

func (e *ToolSetError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("toolset: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("toolset: %s %q: %v", e.Kind, e.Tool, e.Err)
}

func (e *ToolSetError) Unwrap() error {
	return e.Err
}
