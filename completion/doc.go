// Package completion defines the provider-agnostic contract between the
// prompt orchestrator and a completion model.
//
// It owns the conversation data model (Message, AssistantContent,
// UserContent, History), the request/response types exchanged with a model,
// and the error taxonomy providers report through.
//
// # Messages
//
// A Message is a tagged union keyed by Role. User messages carry UserContent
// blocks (text or tool results); assistant messages carry AssistantContent
// blocks (text, tool calls or reasoning). Content blocks are themselves tagged
// unions keyed by ContentKind:
//
//	prompt := completion.UserText("What is 2+3?")
//	reply := completion.NewAssistantMessage("",
//	    completion.AssistantTextPart("Let me add that."),
//	    completion.ToolCallPart("call_1", "", "add", json.RawMessage(`{"x":2,"y":3}`)),
//	)
//
// # Requests
//
// Requests are assembled with an immutable RequestBuilder and sent to a
// Model:
//
//	resp, err := completion.NewRequestBuilder(model, prompt).
//	    Preamble("You are a calculator.").
//	    Messages(history.Context()).
//	    Send(ctx)
package completion
