package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajiknows/rig/agent"
	"github.com/rajiknows/rig/completion"
	"github.com/rajiknows/rig/internal/session"
	"github.com/rajiknows/rig/storage"
	"github.com/rajiknows/rig/tool"
)

// scripted calls add with the prompt "loop" forever, calls it once for any
// other prompt, then answers with the tool output.
func scripted() completion.Model {
	n := 0
	return completion.ModelFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		n++
		results := req.Prompt.ToolResults()
		looping := len(req.ChatHistory) > 0 && req.ChatHistory[0].Text() == "loop"
		if len(results) > 0 && !looping {
			return &completion.Response{Choice: []completion.AssistantContent{
				completion.AssistantTextPart("sum is " + results[0].Output()),
			}}, nil
		}
		return &completion.Response{Choice: []completion.AssistantContent{
			completion.ToolCallPart(fmt.Sprintf("c%d", n), "", "add", json.RawMessage(`{"x":2,"y":3}`)),
		}}, nil
	})
}

func addTool() tool.Tool {
	return tool.Tool{
		Definition: completion.ToolDefinition{Name: "add", Description: "add two numbers"},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct{ X, Y int }
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}
			return fmt.Sprint(in.X + in.Y), nil
		},
	}
}

type fixture struct {
	store  *storage.Store
	server *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "rig.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tools := tool.NewToolSet()
	require.NoError(t, tools.Register(addTool()))
	a := agent.New(scripted(), agent.WithTools(tools), agent.WithLoopDetection(0))

	s := New(Deps{
		Runner:  session.NewRunner(a, store),
		Store:   store,
		Tools:   tools,
		Version: "test",
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &fixture{store: store, server: ts}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[HealthResponse](t, resp)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "test", body.Version)
}

func TestListTools(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/v1/tools", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string][]completion.ToolDefinition](t, resp)
	require.Len(t, body["tools"], 1)
	assert.Equal(t, "add", body["tools"][0].Name)
}

func TestListModels(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/v1/models?provider=groq", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string][]map[string]any](t, resp)
	assert.Len(t, body["models"], 1)
}

func TestPromptAndConversationLifecycle(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/prompt", PromptRequest{Prompt: "2+3?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[PromptResponse](t, resp)
	assert.Equal(t, "sum is 5", out.Output)
	require.NotEmpty(t, out.ConversationID)

	resp = f.do(t, http.MethodGet, "/api/v1/conversations/"+out.ConversationID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	conv := decode[map[string]any](t, resp)
	assert.Equal(t, "2+3?", conv["title"])
	assert.Len(t, conv["messages"], 4)

	resp = f.do(t, http.MethodGet, "/api/v1/conversations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[map[string][]map[string]any](t, resp)
	assert.Len(t, list["conversations"], 1)

	resp = f.do(t, http.MethodDelete, "/api/v1/conversations/"+out.ConversationID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/conversations/"+out.ConversationID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPromptMaxDepthKeepsHistory(t *testing.T) {
	f := newFixture(t)
	depth := 0

	resp := f.do(t, http.MethodPost, "/api/v1/prompt", PromptRequest{Prompt: "loop", Depth: &depth})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, ErrCodeMaxDepth, body.Error.Code)

	id := resp.Header.Get("X-Conversation-ID")
	require.NotEmpty(t, id)
	h, err := f.store.LoadHistory(context.Background(), id)
	require.NoError(t, err)
	assert.Greater(t, h.Len(), 1)
}

func TestPromptValidation(t *testing.T) {
	f := newFixture(t)
	negative := -1

	tests := []struct {
		name string
		body any
	}{
		{"empty prompt", PromptRequest{Prompt: " "}},
		{"negative depth", PromptRequest{Prompt: "hi", Depth: &negative}},
		{"not an object", "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/api/v1/prompt", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, ErrCodeInvalidRequest, decode[ErrorResponse](t, resp).Error.Code)
		})
	}
}

func TestPromptUnknownConversation(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/v1/prompt", PromptRequest{Prompt: "hi", ConversationID: "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(ClientFrame{Type: FramePrompt, Prompt: "2+3?"}))

	var kinds []agent.EventKind
	var final ServerFrame
	for {
		var frame ServerFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Type != FrameEvent {
			final = frame
			break
		}
		require.NotNil(t, frame.Event)
		kinds = append(kinds, frame.Event.Kind)
	}

	assert.Equal(t, FrameResult, final.Type)
	assert.Equal(t, "sum is 5", final.Output)
	assert.NotEmpty(t, final.ConversationID)
	assert.Contains(t, kinds, agent.EventTurnStart)
	assert.Contains(t, kinds, agent.EventToolCallEnd)

	require.NoError(t, conn.WriteJSON(ClientFrame{Type: "cancel"}))
	var errFrame ServerFrame
	require.NoError(t, conn.ReadJSON(&errFrame))
	assert.Equal(t, FrameError, errFrame.Type)
	assert.Equal(t, ErrCodeInvalidRequest, errFrame.Code)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("load: %w", storage.ErrNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"max depth", &agent.MaxDepthError{MaxDepth: 1}, http.StatusUnprocessableEntity, ErrCodeMaxDepth},
		{"tool", &agent.ToolCallError{Err: fmt.Errorf("boom")}, http.StatusUnprocessableEntity, ErrCodeToolError},
		{"provider", &completion.CompletionError{Op: "send", Err: fmt.Errorf("down")}, http.StatusBadGateway, ErrCodeProviderError},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
