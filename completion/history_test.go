package completion

import (
	"encoding/json"
	"testing"
)

func TestHistoryPushAndLast(t *testing.T) {
	h := NewHistory()
	if _, ok := h.Last(); ok {
		t.Fatal("expected empty history to have no last message")
	}

	h.Push(UserText("one"))
	h.Push(AssistantText("two"))

	last, ok := h.Last()
	if !ok || last.Text() != "two" {
		t.Fatalf("unexpected last message %+v", last)
	}
	if h.Len() != 2 {
		t.Errorf("expected len 2, got %d", h.Len())
	}
}

func TestHistoryContextExcludesLast(t *testing.T) {
	h := NewHistory(UserText("a"), AssistantText("b"), UserText("c"))
	ctx := h.Context()
	if len(ctx) != 2 {
		t.Fatalf("expected 2 context messages, got %d", len(ctx))
	}
	if ctx[1].Text() != "b" {
		t.Errorf("expected b, got %q", ctx[1].Text())
	}

	// Mutating the returned slice must not touch the history.
	ctx[0] = UserText("changed")
	if h.At(0).Text() != "a" {
		t.Error("Context returned a slice aliasing the history")
	}

	if NewHistory().Context() != nil {
		t.Error("expected nil context for empty history")
	}
}

func TestHistorySince(t *testing.T) {
	h := NewHistory(UserText("a"), AssistantText("b"), UserText("c"))
	if got := h.Since(1); len(got) != 2 || got[0].Text() != "b" {
		t.Errorf("unexpected Since(1): %+v", got)
	}
	if got := h.Since(3); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
	if got := h.Since(-1); len(got) != 3 {
		t.Errorf("expected 3 messages, got %d", len(got))
	}
}

func TestHistorySnapshotIsIndependent(t *testing.T) {
	h := NewHistory(UserText("a"))
	snap := h.Snapshot()

	h.Push(AssistantText("b"))
	h.At(0).User.Content[0].Text.Text = "mutated"

	if snap.Len() != 1 {
		t.Errorf("snapshot grew to %d", snap.Len())
	}
	if snap.At(0).Text() != "a" {
		t.Errorf("snapshot shares content: %q", snap.At(0).Text())
	}
}

func TestNilHistory(t *testing.T) {
	var h *History
	if h.Len() != 0 {
		t.Error("expected nil history to have length 0")
	}
	if h.Messages() != nil {
		t.Error("expected nil messages")
	}
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "null" && string(data) != "[]" {
		t.Errorf("unexpected encoding %s", data)
	}
}

func TestHistoryJSON(t *testing.T) {
	h := NewHistory(
		UserText("What is 2+3?"),
		NewAssistantMessage("", ToolCallPart("call_1", "", "add", json.RawMessage(`{"x":2,"y":3}`))),
		NewUserMessage(ToolResultPart("call_1", "", "5")),
		AssistantText("5"),
	)
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded History
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Len() != 4 {
		t.Fatalf("expected 4 messages, got %d", decoded.Len())
	}
	if decoded.At(2).ToolResults()[0].Output() != "5" {
		t.Errorf("tool result lost: %+v", decoded.At(2))
	}
}

func TestHistoryUnmarshalRejectsInvalid(t *testing.T) {
	var h History
	if err := json.Unmarshal([]byte(`[{"role":"assistant","assistant":{"content":[]}}]`), &h); err == nil {
		t.Error("expected error for empty assistant content")
	}
}
