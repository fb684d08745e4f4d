package agent

import (
	"errors"
	"fmt"

	"github.com/rajiknows/rig/completion"
)

// ErrMaxDepth matches any *MaxDepthError via errors.Is.
var ErrMaxDepth = errors.New("max depth reached")

// MaxDepthError is returned when a prompt request runs out of turns before the
// model produced a text-only answer. History is a snapshot of the
// conversation at that point and Prompt is the tool-result message that was
// never sent. Re-issuing Prompt with History and a larger depth resumes the
// conversation.
type MaxDepthError struct {
	MaxDepth int
	History  *completion.History
	Prompt   completion.Message
}

func (e *MaxDepthError) Error() string {
	return fmt.Sprintf("reached max turn limit: %d", e.MaxDepth)
}

// Is reports whether target is ErrMaxDepth.
func (e *MaxDepthError) Is(target error) bool {
	return target == ErrMaxDepth
}

// ToolCallError carries the first failed tool call of a turn.
type ToolCallError struct {
	Call completion.ToolCall
	Err  error
}

func (e *ToolCallError) Error() string {
	return fmt.Sprintf("tool call %s (%s) failed: %v", e.Call.Function.Name, e.Call.ID, e.Err)
}

func (e *ToolCallError) Unwrap() error {
	return e.Err
}
