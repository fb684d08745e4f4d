package agent

import (
	"crypto/sha256"
	"fmt"

	"github.com/rajiknows/rig/completion"
)

// DefaultLoopWindow is the number of recent tool calls inspected for loops.
const DefaultLoopWindow = 6

func toolCallSignature(tc completion.ToolCall) string {
	h := sha256.Sum256([]byte(tc.ArgumentsString()))
	return fmt.Sprintf("%s:%x", tc.Function.Name, h[:8])
}

// recentToolCallSignatures returns the signatures of the last count tool
// calls in msgs, oldest first.
func recentToolCallSignatures(msgs []completion.Message, count int) []string {
	var sigs []string
	for i := len(msgs) - 1; i >= 0 && len(sigs) < count; i-- {
		calls := msgs[i].ToolCalls()
		for j := len(calls) - 1; j >= 0 && len(sigs) < count; j-- {
			sigs = append(sigs, toolCallSignature(calls[j]))
		}
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// DetectLoop reports whether the last windowSize tool calls in msgs repeat a
// pattern of length 1, 2 or 3.
func DetectLoop(msgs []completion.Message, windowSize int) bool {
	if windowSize <= 1 {
		return false
	}
	sigs := recentToolCallSignatures(msgs, windowSize)
	if len(sigs) < windowSize {
		return false
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		allMatch := true
		for i := patternLen; i < windowSize && allMatch; i++ {
			if sigs[i] != sigs[i%patternLen] {
				allMatch = false
			}
		}
		if allMatch {
			return true
		}
	}
	return false
}
