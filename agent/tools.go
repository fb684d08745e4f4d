package agent

import (
	"context"
	"time"

	"github.com/rajiknows/rig/completion"
	"github.com/rajiknows/rig/pkg/logger"
	"github.com/rajiknows/rig/tool"
)

// resolveToolCalls runs calls one after another in order. Every call is
// attempted; if any failed the first failure is returned and all outputs are
// dropped. Otherwise the outputs are packed into one user message holding a
// tool result per call, in call order.
func (a *Agent) resolveToolCalls(ctx context.Context, calls []completion.ToolCall, requestID string, emitter *EventEmitter) (completion.Message, error) {
	var firstErr error
	content := make([]completion.UserContent, 0, len(calls))

	for _, tc := range calls {
		emitter.Emit(EventToolCallStart, requestID, map[string]interface{}{
			"tool_name": tc.Function.Name,
			"call_id":   tc.ID,
		})
		start := time.Now()

		output, err := a.callTool(ctx, tc)

		end := map[string]interface{}{
			"tool_name":   tc.Function.Name,
			"call_id":     tc.ID,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if err != nil {
			end["error"] = err.Error()
			emitter.Emit(EventToolCallEnd, requestID, end)
			logger.Warn().Err(err).Str("tool", tc.Function.Name).Str("call_id", tc.ID).Msg("Tool call failed")
			if firstErr == nil {
				firstErr = &ToolCallError{Call: tc, Err: err}
			}
			continue
		}
		end["output_len"] = len(output)
		emitter.Emit(EventToolCallEnd, requestID, end)

		content = append(content, completion.ToolResultPart(tc.ID, tc.CallID, output))
	}

	if firstErr != nil {
		return completion.Message{}, firstErr
	}
	return completion.NewUserMessage(content...), nil
}

func (a *Agent) callTool(ctx context.Context, tc completion.ToolCall) (string, error) {
	if a.tools == nil {
		return "", &tool.ToolSetError{Tool: tc.Function.Name, Kind: tool.ErrorNotFound, Err: tool.ErrToolNotFound}
	}
	logger.Debug().Str("tool", tc.Function.Name).Str("call_id", tc.ID).Msg("Executing tool call")
	return a.tools.Call(ctx, tc.Function.Name, tc.ArgumentsString())
}
