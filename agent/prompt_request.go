package agent

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/rajiknows/rig/completion"
	"github.com/rajiknows/rig/pkg/logger"
)

// PromptRequest is a single prompt awaiting execution. Configuration methods
// return a new value and never modify the receiver.
type PromptRequest struct {
	agent    *Agent
	prompt   completion.Message
	history  *completion.History
	maxDepth int
	emitter  *EventEmitter
}

// NewPromptRequest creates a request for prompt using the agent's default
// depth and emitter.
func NewPromptRequest(a *Agent, prompt completion.Message) PromptRequest {
	return PromptRequest{
		agent:    a,
		prompt:   prompt,
		maxDepth: a.defaultMaxDepth,
		emitter:  a.emitter,
	}
}

// MultiTurn sets the maximum turn depth. A depth of N allows up to N+2
// completion calls before Send gives up with a *MaxDepthError. Negative
// values are treated as 0.
func (r PromptRequest) MultiTurn(depth int) PromptRequest {
	r.maxDepth = clampDepth(depth)
	return r
}

// WithHistory attaches a caller-owned history. Send appends to it and never
// removes or reorders messages; the caller must not use it concurrently.
func (r PromptRequest) WithHistory(h *completion.History) PromptRequest {
	r.history = h
	return r
}

// WithEmitter overrides the agent's event emitter for this request.
func (r PromptRequest) WithEmitter(e *EventEmitter) PromptRequest {
	r.emitter = e
	return r
}

// MaxDepth returns the configured turn depth.
func (r PromptRequest) MaxDepth() int { return r.maxDepth }

// Send runs the request. It returns the newline-joined text blocks of the
// first response without tool calls, a *MaxDepthError when the turn budget
// runs out, a *ToolCallError when a tool fails, or the completion error as
// returned by the model.
//
// When the context is cancelled between turns Send returns ctx.Err(); the
// history keeps whatever was appended up to that point.
func (r PromptRequest) Send(ctx context.Context) (string, error) {
	a := r.agent
	history := r.history
	if history == nil {
		history = completion.NewHistory()
	}
	history.Push(r.prompt)

	requestID := uuid.New().String()
	log := logger.With(map[string]any{"agent": a.name, "request_id": requestID})
	startLen := history.Len() - 1
	turns := 0

	for {
		prompt, _ := history.Last()

		if turns > r.maxDepth+1 {
			log.Warn().Int("max_depth", r.maxDepth).Int("turns", turns).Msg("Max turn depth exceeded")
			r.emitter.Emit(EventDepthExceeded, requestID, map[string]interface{}{
				"max_depth": r.maxDepth,
				"turns":     turns,
			})
			return "", &MaxDepthError{
				MaxDepth: r.maxDepth,
				History:  history.Snapshot(),
				Prompt:   prompt.Clone(),
			}
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		turns++
		if r.maxDepth > 1 {
			log.Info().Msgf("Current conversation depth: %d/%d", turns, r.maxDepth)
		}

		r.emitter.Emit(EventTurnStart, requestID, map[string]interface{}{"turn": turns})
		resp, err := a.Completion(prompt, history.Context()).Send(ctx)
		if err != nil {
			r.emitter.Emit(EventError, requestID, map[string]interface{}{"turn": turns, "error": err.Error()})
			return "", err
		}

		var (
			toolCalls []completion.ToolCall
			texts     []string
		)
		for _, c := range resp.Choice {
			switch c.Kind {
			case completion.ContentToolCall:
				toolCalls = append(toolCalls, *c.ToolCall)
			case completion.ContentText:
				texts = append(texts, c.Text.Text)
			case completion.ContentReasoning:
			default:
				return "", &completion.UnknownKindError{Kind: string(c.Kind)}
			}
		}

		history.Push(completion.NewAssistantMessage("", resp.Choice...).Clone())
		r.emitter.Emit(EventTurnEnd, requestID, map[string]interface{}{
			"turn":       turns,
			"tool_calls": len(toolCalls),
			"text":       strings.Join(texts, "\n"),
		})

		if len(toolCalls) == 0 {
			if r.maxDepth > 1 {
				log.Info().Msgf("Depth reached: %d/%d", turns, r.maxDepth)
			}
			return strings.Join(texts, "\n"), nil
		}

		result, err := a.resolveToolCalls(ctx, toolCalls, requestID, r.emitter)
		if err != nil {
			return "", err
		}
		history.Push(result)

		if a.loopWindow > 0 && DetectLoop(history.Since(startLen), a.loopWindow) {
			log.Warn().Int("window", a.loopWindow).Msg("Repeating tool call pattern detected")
			r.emitter.Emit(EventLoopDetected, requestID, map[string]interface{}{"window": a.loopWindow})
		}
	}
}

// Resume returns a request that re-sends the unsent prompt of e on top of
// its history, with the given depth.
func (e *MaxDepthError) Resume(a *Agent, depth int) PromptRequest {
	history := completion.NewHistory(e.History.Context()...)
	return a.PromptMessage(e.Prompt).WithHistory(history).MultiTurn(depth)
}

func clampDepth(depth int) int {
	if depth < 0 {
		return 0
	}
	return depth
}
