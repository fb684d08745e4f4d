package tool

import (
	"fmt"
	"strings"
)

// TruncationMode selects which part of an oversized output is kept.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail" // keep both ends
	TruncateTail     TruncationMode = "tail"      // keep the end
)

// Limit bounds the output of one tool. Zero Lines means no line limit.
type Limit struct {
	Chars int
	Lines int
	Mode  TruncationMode
}

// FallbackLimit applies to tools missing from DefaultLimits.
var FallbackLimit = Limit{Chars: 30000, Mode: TruncateHeadTail}

// DefaultLimits holds the limits of the builtin tools.
var DefaultLimits = map[string]Limit{
	"read_file":      {Chars: 50000, Mode: TruncateHeadTail},
	"list_directory": {Chars: 20000, Lines: 500, Mode: TruncateTail},
	"glob":           {Chars: 20000, Lines: 500, Mode: TruncateTail},
	"fetch_url":      {Chars: 40000, Mode: TruncateHeadTail},
}

// LimitFor returns the limit of a tool with per-tool overrides applied.
func LimitFor(name string, charLimits, lineLimits map[string]int) Limit {
	l, ok := DefaultLimits[name]
	if !ok {
		l = FallbackLimit
	}
	if n, ok := charLimits[name]; ok {
		l.Chars = n
	}
	if n, ok := lineLimits[name]; ok {
		l.Lines = n
	}
	return l
}

// TruncateOutput cuts output to maxChars, leaving a marker the model can read.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	removed := len(output) - maxChars

	if mode == TruncateTail {
		return fmt.Sprintf("[output truncated: first %d characters removed]\n\n", removed) +
			output[len(output)-maxChars:]
	}
	head := maxChars / 2
	tail := maxChars - head
	return output[:head] +
		fmt.Sprintf("\n\n[output truncated: %d characters removed from the middle; narrow the request to see them]\n\n", removed) +
		output[len(output)-tail:]
}

// TruncateLines keeps the first and last lines of output, maxLines in total.
func TruncateLines(output string, maxLines int) string {
	if maxLines <= 0 {
		return output
	}
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}
	head := maxLines / 2
	tail := maxLines - head

	var b strings.Builder
	b.WriteString(strings.Join(lines[:head], "\n"))
	fmt.Fprintf(&b, "\n[... %d lines omitted ...]\n", len(lines)-maxLines)
	b.WriteString(strings.Join(lines[len(lines)-tail:], "\n"))
	return b.String()
}

// TruncateToolOutput applies the character limit, then the line limit, of
// the named tool.
func TruncateToolOutput(output, name string, charLimits, lineLimits map[string]int) string {
	l := LimitFor(name, charLimits, lineLimits)
	return TruncateLines(TruncateOutput(output, l.Chars, l.Mode), l.Lines)
}
