package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajiknows/rig/completion"
	"github.com/rajiknows/rig/pkg/logger"
	"github.com/rajiknows/rig/tool"
)

// scriptedModel answers each call with respond(n, req), n starting at 1.
type scriptedModel struct {
	mu       sync.Mutex
	requests []completion.Request
	respond  func(n int, req completion.Request) (*completion.Response, error)
}

func (m *scriptedModel) Complete(ctx context.Context, req completion.Request) (*completion.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	m.mu.Unlock()
	return m.respond(n, req)
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// sequence answers call n with responses[n-1] and fails once they run out.
func sequence(responses ...[]completion.AssistantContent) *scriptedModel {
	return &scriptedModel{respond: func(n int, req completion.Request) (*completion.Response, error) {
		if n > len(responses) {
			return nil, fmt.Errorf("unexpected call %d", n)
		}
		return &completion.Response{Choice: responses[n-1]}, nil
	}}
}

// alwaysTools answers every call with a single add tool call.
func alwaysTools() *scriptedModel {
	return &scriptedModel{respond: func(n int, req completion.Request) (*completion.Response, error) {
		return &completion.Response{Choice: []completion.AssistantContent{
			completion.ToolCallPart(fmt.Sprintf("call_%d", n), "", "add", json.RawMessage(fmt.Sprintf(`{"x":%d,"y":1}`, n))),
		}}, nil
	}}
}

func text(s string) []completion.AssistantContent {
	return []completion.AssistantContent{completion.AssistantTextPart(s)}
}

func toolCall(id, name, args string) completion.AssistantContent {
	return completion.ToolCallPart(id, "", name, json.RawMessage(args))
}

// recordingTools records every call in order and answers from handlers.
type recordingTools struct {
	mu       sync.Mutex
	called   []string
	handlers map[string]func(args string) (string, error)
}

func newRecordingTools() *recordingTools {
	return &recordingTools{handlers: map[string]func(string) (string, error){
		"add": func(args string) (string, error) {
			var in struct{ X, Y int }
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return "", err
			}
			return fmt.Sprint(in.X + in.Y), nil
		},
	}}
}

func (r *recordingTools) Call(ctx context.Context, name, args string) (string, error) {
	r.mu.Lock()
	r.called = append(r.called, name)
	h, ok := r.handlers[name]
	r.mu.Unlock()
	if !ok {
		return "", tool.ErrToolNotFound
	}
	return h(args)
}

func (r *recordingTools) Definitions() []completion.ToolDefinition {
	return []completion.ToolDefinition{{Name: "add", Description: "adds"}}
}

func (r *recordingTools) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.called...)
}

func TestTextOnlyResponseTakesOneCall(t *testing.T) {
	for depth := 0; depth <= 3; depth++ {
		t.Run(fmt.Sprintf("depth_%d", depth), func(t *testing.T) {
			model := sequence(text("hello"))
			a := New(model, WithTools(newRecordingTools()))

			out, err := a.Prompt("hi").MultiTurn(depth).Send(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "hello", out)
			assert.Equal(t, 1, model.calls())
		})
	}
}

func TestSingleToolRoundTrip(t *testing.T) {
	model := sequence(
		[]completion.AssistantContent{toolCall("call_1", "add", `{"x":2,"y":3}`)},
		[]completion.AssistantContent{
			completion.AssistantTextPart("The answer is"),
			completion.AssistantTextPart("5"),
		},
	)
	tools := newRecordingTools()
	a := New(model, WithTools(tools))

	history := completion.NewHistory(completion.UserText("earlier"), completion.AssistantText("ok"))
	before := history.Len()

	out, err := a.Prompt("What is 2+3?").MultiTurn(0).WithHistory(history).Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "The answer is\n5", out)
	assert.Equal(t, 2, model.calls())
	assert.Equal(t, []string{"add"}, tools.calls())

	require.Equal(t, before+4, history.Len())
	assert.Equal(t, "What is 2+3?", history.At(before).Text())
	assert.Len(t, history.At(before+1).ToolCalls(), 1)
	results := history.At(before + 2).ToolResults()
	require.Len(t, results, 1)
	assert.Equal(t, "call_1", results[0].ID)
	assert.Equal(t, "5", results[0].Output())
	assert.Equal(t, "The answer is\n5", history.At(before+3).Text())
}

func TestModelSeesPromptAndContext(t *testing.T) {
	model := sequence(
		[]completion.AssistantContent{toolCall("call_1", "add", `{"x":1,"y":1}`)},
		text("done"),
	)
	a := New(model, WithTools(newRecordingTools()))
	history := completion.NewHistory(completion.UserText("earlier"))

	_, err := a.Prompt("go").WithHistory(history).Send(context.Background())
	require.NoError(t, err)

	first := model.requests[0]
	assert.Equal(t, "go", first.Prompt.Text())
	require.Len(t, first.ChatHistory, 1)
	assert.Equal(t, "earlier", first.ChatHistory[0].Text())

	second := model.requests[1]
	require.Len(t, second.Prompt.ToolResults(), 1)
	assert.Equal(t, "2", second.Prompt.ToolResults()[0].Output())
	require.Len(t, second.ChatHistory, 3)
	assert.Equal(t, "go", second.ChatHistory[1].Text())
	assert.Len(t, second.ChatHistory[2].ToolCalls(), 1)
}

func TestDepthZeroAlwaysToolsFailsAfterTwoCalls(t *testing.T) {
	model := alwaysTools()
	a := New(model, WithTools(newRecordingTools()))
	history := completion.NewHistory()

	_, err := a.Prompt("loop").MultiTurn(0).WithHistory(history).Send(context.Background())

	var depthErr *MaxDepthError
	require.ErrorAs(t, err, &depthErr)
	assert.ErrorIs(t, err, ErrMaxDepth)
	assert.Equal(t, 0, depthErr.MaxDepth)
	assert.Equal(t, 2, model.calls())
	assert.Equal(t, "reached max turn limit: 0", err.Error())

	// prompt + 2 * (assistant + tool results)
	require.Equal(t, 5, history.Len())
	last, _ := history.Last()
	results := depthErr.Prompt.ToolResults()
	require.Len(t, results, 1)
	assert.Equal(t, "call_2", results[0].ID)
	assert.Equal(t, last.ToolResults(), results)

	assert.Equal(t, history.Len(), depthErr.History.Len())
	snapLast, _ := depthErr.History.Last()
	assert.Equal(t, depthErr.Prompt, snapLast)
}

func TestDepthBudgetAllowsDepthPlusTwoCalls(t *testing.T) {
	for depth := 0; depth <= 4; depth++ {
		t.Run(fmt.Sprintf("depth_%d", depth), func(t *testing.T) {
			model := alwaysTools()
			a := New(model, WithTools(newRecordingTools()))

			_, err := a.Prompt("loop").MultiTurn(depth).Send(context.Background())
			require.ErrorIs(t, err, ErrMaxDepth)
			assert.Equal(t, depth+2, model.calls())
		})
	}
}

func TestAnswerOnLastAllowedTurnSucceeds(t *testing.T) {
	model := &scriptedModel{respond: func(n int, req completion.Request) (*completion.Response, error) {
		if n < 3 {
			return &completion.Response{Choice: []completion.AssistantContent{
				toolCall(fmt.Sprintf("call_%d", n), "add", `{"x":1,"y":2}`),
			}}, nil
		}
		return &completion.Response{Choice: text("finally")}, nil
	}}
	a := New(model, WithTools(newRecordingTools()))

	out, err := a.Prompt("go").MultiTurn(1).Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "finally", out)
	assert.Equal(t, 3, model.calls())
}

func TestToolResultsKeepCallOrder(t *testing.T) {
	tools := newRecordingTools()
	tools.handlers["slow"] = func(args string) (string, error) {
		time.Sleep(20 * time.Millisecond)
		return "slow-out", nil
	}
	tools.handlers["fast"] = func(args string) (string, error) {
		return "fast-out", nil
	}
	model := sequence(
		[]completion.AssistantContent{
			completion.AssistantTextPart("working"),
			toolCall("c1", "slow", `{}`),
			completion.ToolCallPart("c2", "grp", "fast", json.RawMessage(`{}`)),
			toolCall("c3", "add", `{"x":4,"y":4}`),
		},
		text("done"),
	)
	a := New(model, WithTools(tools))
	history := completion.NewHistory()

	_, err := a.Prompt("go").WithHistory(history).Send(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"slow", "fast", "add"}, tools.calls())
	results := history.At(2).ToolResults()
	require.Len(t, results, 3)
	assert.Equal(t, "c1", results[0].ID)
	assert.Equal(t, "slow-out", results[0].Output())
	assert.Equal(t, "c2", results[1].ID)
	assert.Equal(t, "grp", results[1].CallID)
	assert.Equal(t, "c3", results[2].ID)
	assert.Equal(t, "8", results[2].Output())

	// The assistant message keeps the unpartitioned content.
	assert.Equal(t, 4, history.At(1).Len())
	assert.Equal(t, "working", history.At(1).Text())
}

func TestSecondToolFails(t *testing.T) {
	boom := errors.New("boom")
	tools := newRecordingTools()
	tools.handlers["fail"] = func(args string) (string, error) { return "", boom }
	model := sequence([]completion.AssistantContent{
		toolCall("c1", "add", `{"x":1,"y":1}`),
		toolCall("c2", "fail", `{}`),
	})
	a := New(model, WithTools(tools))
	history := completion.NewHistory()

	_, err := a.Prompt("go").WithHistory(history).Send(context.Background())

	var tcErr *ToolCallError
	require.ErrorAs(t, err, &tcErr)
	assert.Equal(t, "c2", tcErr.Call.ID)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"add", "fail"}, tools.calls())

	require.Equal(t, 2, history.Len())
	last, _ := history.Last()
	assert.Equal(t, completion.RoleAssistant, last.Role)
}

func TestFirstFailureWinsAndAllCallsRun(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	tools := newRecordingTools()
	tools.handlers["f1"] = func(args string) (string, error) { return "", first }
	tools.handlers["f2"] = func(args string) (string, error) { return "", second }
	model := sequence([]completion.AssistantContent{
		toolCall("c1", "f1", `{}`),
		toolCall("c2", "add", `{"x":1,"y":1}`),
		toolCall("c3", "f2", `{}`),
	})
	a := New(model, WithTools(tools))

	_, err := a.Prompt("go").Send(context.Background())
	require.ErrorIs(t, err, first)
	assert.NotErrorIs(t, err, second)
	assert.Equal(t, []string{"f1", "add", "f2"}, tools.calls())
}

func TestUnknownToolWithoutToolSet(t *testing.T) {
	model := sequence([]completion.AssistantContent{toolCall("c1", "add", `{}`)})
	a := New(model)

	_, err := a.Prompt("go").Send(context.Background())
	assert.ErrorIs(t, err, tool.ErrToolNotFound)
}

func TestProviderErrorPropagates(t *testing.T) {
	providerErr := completion.ErrorFromStatusCode(500, "overloaded", "openai", "", nil, nil)
	model := &scriptedModel{respond: func(n int, req completion.Request) (*completion.Response, error) {
		if n == 1 {
			return &completion.Response{Choice: []completion.AssistantContent{toolCall("c1", "add", `{"x":1,"y":1}`)}}, nil
		}
		return nil, providerErr
	}}
	a := New(model, WithTools(newRecordingTools()))
	history := completion.NewHistory()

	_, err := a.Prompt("go").MultiTurn(3).WithHistory(history).Send(context.Background())

	var serverErr *completion.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, 2, model.calls())
	// prompt, assistant, tool results remain
	assert.Equal(t, 3, history.Len())
}

func TestEmptyResponseIsAnError(t *testing.T) {
	model := &scriptedModel{respond: func(n int, req completion.Request) (*completion.Response, error) {
		return &completion.Response{}, nil
	}}
	_, err := New(model).Prompt("go").Send(context.Background())
	assert.ErrorIs(t, err, completion.ErrEmptyResponse)
}

func TestReasoningOnlyResponseYieldsEmptyString(t *testing.T) {
	model := sequence([]completion.AssistantContent{completion.ReasoningPart("thinking", "")})
	history := completion.NewHistory()

	out, err := New(model).Prompt("go").WithHistory(history).Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", out)
	assert.Equal(t, 2, history.Len())
}

func TestHistoryIsAppendOnly(t *testing.T) {
	model := alwaysTools()
	a := New(model, WithTools(newRecordingTools()))
	history := completion.NewHistory(completion.UserText("a"), completion.AssistantText("b"))
	before := history.Snapshot()

	_, err := a.Prompt("go").MultiTurn(1).WithHistory(history).Send(context.Background())
	require.Error(t, err)

	require.GreaterOrEqual(t, history.Len(), before.Len())
	for i := 0; i < before.Len(); i++ {
		assert.Equal(t, before.At(i), history.At(i))
	}
}

func TestPromptRequestIsImmutable(t *testing.T) {
	a := New(sequence(text("x")), WithDefaultMaxDepth(3))
	base := a.Prompt("go")
	deeper := base.MultiTurn(7)
	h := completion.NewHistory()
	withHistory := deeper.WithHistory(h)

	assert.Equal(t, 3, base.MaxDepth())
	assert.Equal(t, 7, deeper.MaxDepth())
	assert.Nil(t, deeper.history)
	assert.Same(t, h, withHistory.history)
	assert.Equal(t, 0, base.MultiTurn(-5).MaxDepth())
}

func TestNegativeDepthBehavesAsZero(t *testing.T) {
	model := alwaysTools()
	a := New(model, WithTools(newRecordingTools()))

	_, err := a.Prompt("go").MultiTurn(-1).Send(context.Background())
	var depthErr *MaxDepthError
	require.ErrorAs(t, err, &depthErr)
	assert.Equal(t, 0, depthErr.MaxDepth)
	assert.Equal(t, 2, model.calls())
}

func TestResumeAfterMaxDepth(t *testing.T) {
	model := &scriptedModel{respond: func(n int, req completion.Request) (*completion.Response, error) {
		if n <= 2 {
			return &completion.Response{Choice: []completion.AssistantContent{
				toolCall(fmt.Sprintf("call_%d", n), "add", `{"x":1,"y":1}`),
			}}, nil
		}
		return &completion.Response{Choice: text("resumed")}, nil
	}}
	a := New(model, WithTools(newRecordingTools()))

	_, err := a.Prompt("go").Send(context.Background())
	var depthErr *MaxDepthError
	require.ErrorAs(t, err, &depthErr)

	req := depthErr.Resume(a, 2)
	out, err := req.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "resumed", out)

	third := model.requests[2]
	require.Len(t, third.Prompt.ToolResults(), 1)
	assert.Equal(t, "call_2", third.Prompt.ToolResults()[0].ID)
	assert.Len(t, third.ChatHistory, 4)
}

func TestContextCancelledBetweenTurns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := &scriptedModel{respond: func(n int, req completion.Request) (*completion.Response, error) {
		cancel()
		return &completion.Response{Choice: []completion.AssistantContent{toolCall("c1", "add", `{"x":1,"y":1}`)}}, nil
	}}
	a := New(model, WithTools(newRecordingTools()))
	history := completion.NewHistory()

	_, err := a.Prompt("go").MultiTurn(5).WithHistory(history).Send(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, model.calls())
	assert.Equal(t, 3, history.Len())
}

func TestCompletionCarriesAgentSettings(t *testing.T) {
	model := sequence(text("ok"))
	a := New(model,
		WithPreamble("be terse"),
		WithDocuments(completion.Document{ID: "d1", Text: "facts"}),
		WithTools(newRecordingTools()),
		WithTemperature(0.3),
		WithMaxTokens(64),
		WithAdditionalParams(map[string]interface{}{"top_p": 0.5}),
	)

	_, err := a.Chat(context.Background(), "hi", completion.NewHistory())
	require.NoError(t, err)

	req := model.requests[0]
	assert.Equal(t, "be terse", req.Preamble)
	require.Len(t, req.Documents, 1)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "add", req.Tools[0].Name)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.3, *req.Temperature)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 64, *req.MaxTokens)
	assert.Equal(t, 0.5, req.AdditionalParams["top_p"])
}

func TestEventsEmitted(t *testing.T) {
	emitter := NewEventEmitter(64)
	model := sequence(
		[]completion.AssistantContent{toolCall("c1", "add", `{"x":1,"y":1}`)},
		text("done"),
	)
	a := New(model, WithTools(newRecordingTools()), WithEventEmitter(emitter))

	_, err := a.Prompt("go").Send(context.Background())
	require.NoError(t, err)
	emitter.Close()

	var kinds []EventKind
	requestIDs := map[string]bool{}
	for ev := range emitter.Events() {
		kinds = append(kinds, ev.Kind)
		requestIDs[ev.RequestID] = true
	}
	assert.Equal(t, []EventKind{
		EventTurnStart, EventTurnEnd,
		EventToolCallStart, EventToolCallEnd,
		EventTurnStart, EventTurnEnd,
	}, kinds)
	assert.Len(t, requestIDs, 1)
}

func TestDepthExceededEvent(t *testing.T) {
	emitter := NewEventEmitter(64)
	a := New(alwaysTools(), WithTools(newRecordingTools()))

	_, err := a.Prompt("go").WithEmitter(emitter).Send(context.Background())
	require.ErrorIs(t, err, ErrMaxDepth)
	emitter.Close()

	var last Event
	for ev := range emitter.Events() {
		last = ev
	}
	assert.Equal(t, EventDepthExceeded, last.Kind)
	assert.Equal(t, 0, last.Data["max_depth"])
}

func TestLoopDetectedEvent(t *testing.T) {
	emitter := NewEventEmitter(64)
	model := &scriptedModel{respond: func(n int, req completion.Request) (*completion.Response, error) {
		if n <= 3 {
			return &completion.Response{Choice: []completion.AssistantContent{toolCall(fmt.Sprintf("c%d", n), "add", `{"x":1,"y":1}`)}}, nil
		}
		return &completion.Response{Choice: text("done")}, nil
	}}
	a := New(model, WithTools(newRecordingTools()), WithEventEmitter(emitter), WithLoopDetection(3))

	out, err := a.Prompt("go").MultiTurn(5).Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	emitter.Close()

	found := false
	for ev := range emitter.Events() {
		if ev.Kind == EventLoopDetected {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDepthLoggingOnlyAboveOne(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(&bytes.Buffer{}) })

	_, err := New(sequence(text("a"))).Prompt("go").MultiTurn(1).Send(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "Current conversation depth")

	buf.Reset()
	_, err = New(sequence(text("a"))).Prompt("go").MultiTurn(2).Send(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Current conversation depth: 1/2")
	assert.Contains(t, buf.String(), "Depth reached: 1/2")
	assert.True(t, strings.Count(buf.String(), "\n") >= 2)
}
