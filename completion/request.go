package completion

import (
	"context"
	"fmt"
	"strings"
)

// Model is the interface every completion backend must implement.
type Model interface {
	// Complete sends a blocking request and returns the full response.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, req Request) (*Response, error)

// Complete calls f(ctx, req).
func (f ModelFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// ToolDefinition describes a tool the model may call.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// Document is static context attached to a request.
type Document struct {
	ID              string            `json:"id"`
	Text            string            `json:"text"`
	AdditionalProps map[string]string `json:"additional_props,omitempty"`
}

// String renders the document as an attachment block.
func (d Document) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<file id: %s>\n", d.ID)
	for k, v := range d.AdditionalProps {
		fmt.Fprintf(&sb, "%s: %s\n", k, v)
	}
	sb.WriteString(d.Text)
	sb.WriteString("\n</file>")
	return sb.String()
}

// Request is the input to Model.Complete.
type Request struct {
	Preamble         string                 `json:"preamble,omitempty"`
	Prompt           Message                `json:"prompt"`
	ChatHistory      []Message              `json:"chat_history,omitempty"`
	Documents        []Document             `json:"documents,omitempty"`
	Tools            []ToolDefinition       `json:"tools,omitempty"`
	Temperature      *float64               `json:"temperature,omitempty"`
	MaxTokens        *int                   `json:"max_tokens,omitempty"`
	AdditionalParams map[string]interface{} `json:"additional_params,omitempty"`
}

// Messages returns the chat history followed by the prompt.
func (r Request) Messages() []Message {
	out := make([]Message, 0, len(r.ChatHistory)+1)
	out = append(out, r.ChatHistory...)
	return append(out, r.Prompt)
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns a new Usage that is the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// Response is the output of Model.Complete. Choice holds the assistant
// content blocks in the order the model produced them.
type Response struct {
	ID     string                 `json:"id"`
	Model  string                 `json:"model"`
	Choice []AssistantContent     `json:"choice"`
	Usage  Usage                  `json:"usage"`
	Raw    map[string]interface{} `json:"raw,omitempty"`
}

// ToolCalls returns the tool calls in the response, in order.
func (r Response) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, c := range r.Choice {
		if c.Kind == ContentToolCall && c.ToolCall != nil {
			calls = append(calls, *c.ToolCall)
		}
	}
	return calls
}

// Text returns the text blocks of the response joined by newlines.
func (r Response) Text() string {
	var texts []string
	for _, c := range r.Choice {
		if c.Kind == ContentText && c.Text != nil {
			texts = append(texts, c.Text.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// RequestBuilder assembles a Request for a Model. Every method returns a new
// builder; the receiver is never modified.
type RequestBuilder struct {
	model Model
	req   Request
}

// NewRequestBuilder starts a request for prompt against model.
func NewRequestBuilder(model Model, prompt Message) RequestBuilder {
	return RequestBuilder{model: model, req: Request{Prompt: prompt}}
}

// Preamble sets the system preamble.
func (b RequestBuilder) Preamble(preamble string) RequestBuilder {
	b.req.Preamble = preamble
	return b
}

// Messages sets the chat history sent ahead of the prompt.
func (b RequestBuilder) Messages(history []Message) RequestBuilder {
	b.req.ChatHistory = append([]Message(nil), history...)
	return b
}

// Documents appends static context documents.
func (b RequestBuilder) Documents(docs ...Document) RequestBuilder {
	b.req.Documents = append(append([]Document(nil), b.req.Documents...), docs...)
	return b
}

// Tools appends tool definitions.
func (b RequestBuilder) Tools(defs ...ToolDefinition) RequestBuilder {
	b.req.Tools = append(append([]ToolDefinition(nil), b.req.Tools...), defs...)
	return b
}

// Temperature sets the sampling temperature.
func (b RequestBuilder) Temperature(t float64) RequestBuilder {
	b.req.Temperature = &t
	return b
}

// MaxTokens sets the output token limit.
func (b RequestBuilder) MaxTokens(n int) RequestBuilder {
	b.req.MaxTokens = &n
	return b
}

// AdditionalParams merges provider-specific parameters.
func (b RequestBuilder) AdditionalParams(params map[string]interface{}) RequestBuilder {
	merged := make(map[string]interface{}, len(b.req.AdditionalParams)+len(params))
	for k, v := range b.req.AdditionalParams {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	b.req.AdditionalParams = merged
	return b
}

// Build returns the assembled request.
func (b RequestBuilder) Build() Request {
	return b.req
}

// Send issues the request. Provider failures are wrapped in a
// *CompletionError; the provider's own error stays reachable through
// errors.As. A response without content is rejected.
func (b RequestBuilder) Send(ctx context.Context) (*Response, error) {
	if b.model == nil {
		return nil, &CompletionError{Op: "send", Err: &ConfigurationError{SDKError: SDKError{Message: "no completion model configured"}}}
	}
	resp, err := b.model.Complete(ctx, b.req)
	if err != nil {
		return nil, &CompletionError{Op: "send", Err: err}
	}
	if resp == nil || len(resp.Choice) == 0 {
		return nil, &CompletionError{Op: "send", Err: ErrEmptyResponse}
	}
	for i, c := range resp.Choice {
		if err := c.Validate(); err != nil {
			return nil, &CompletionError{Op: "send", Err: fmt.Errorf("response content %d: %w", i, err)}
		}
	}
	return resp, nil
}
