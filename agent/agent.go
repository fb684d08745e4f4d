// Package agent runs multi-turn prompt requests: it sends a prompt to a
// completion model, executes the tool calls the model asks for, feeds the
// results back and repeats until the model answers with text or the turn
// budget runs out.
//
//	a := agent.New(model,
//	    agent.WithPreamble("You are a calculator."),
//	    agent.WithTools(tools),
//	)
//	out, err := a.Prompt("What is 2+3?").MultiTurn(2).Send(ctx)
//
// A caller-owned history can be attached with WithHistory; the request only
// ever appends to it. When the budget runs out Send returns a *MaxDepthError
// holding a snapshot of the conversation and the unsent tool-result message.
package agent

import (
	"context"

	"github.com/rajiknows/rig/completion"
)

// ToolSet executes tools by name and describes them to the model.
type ToolSet interface {
	Call(ctx context.Context, name, args string) (string, error)
	Definitions() []completion.ToolDefinition
}

// Agent combines a completion model with its static configuration and tools.
type Agent struct {
	name             string
	model            completion.Model
	preamble         string
	documents        []completion.Document
	tools            ToolSet
	temperature      *float64
	maxTokens        *int
	additionalParams map[string]interface{}
	defaultMaxDepth  int
	emitter          *EventEmitter
	loopWindow       int
}

// Option configures an Agent.
type Option func(*Agent)

// WithName sets the agent name used in logs.
func WithName(name string) Option {
	return func(a *Agent) { a.name = name }
}

// WithPreamble sets the system preamble.
func WithPreamble(preamble string) Option {
	return func(a *Agent) { a.preamble = preamble }
}

// WithDocuments attaches static context documents to every request.
func WithDocuments(docs ...completion.Document) Option {
	return func(a *Agent) { a.documents = append(a.documents, docs...) }
}

// WithTools sets the tools the model may call.
func WithTools(tools ToolSet) Option {
	return func(a *Agent) { a.tools = tools }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Agent) { a.temperature = &t }
}

// WithMaxTokens sets the output token limit.
func WithMaxTokens(n int) Option {
	return func(a *Agent) { a.maxTokens = &n }
}

// WithAdditionalParams sets provider-specific request parameters.
func WithAdditionalParams(params map[string]interface{}) Option {
	return func(a *Agent) { a.additionalParams = params }
}

// WithDefaultMaxDepth sets the turn depth prompt requests start with.
// Negative values are treated as 0.
func WithDefaultMaxDepth(depth int) Option {
	return func(a *Agent) { a.defaultMaxDepth = clampDepth(depth) }
}

// WithEventEmitter sets the emitter prompt requests report progress to.
func WithEventEmitter(e *EventEmitter) Option {
	return func(a *Agent) { a.emitter = e }
}

// WithLoopDetection sets how many recent tool calls are checked for a
// repeating pattern after each tool turn. 0 disables the check.
func WithLoopDetection(window int) Option {
	return func(a *Agent) { a.loopWindow = window }
}

// New creates an Agent backed by model.
func New(model completion.Model, opts ...Option) *Agent {
	a := &Agent{
		name:       "agent",
		model:      model,
		loopWindow: DefaultLoopWindow,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Model returns the completion model.
func (a *Agent) Model() completion.Model { return a.model }

// Tools returns the agent's tool set, or nil.
func (a *Agent) Tools() ToolSet { return a.tools }

// Completion builds a request for prompt with history as context, carrying
// the agent's preamble, documents, tool definitions and sampling settings.
func (a *Agent) Completion(prompt completion.Message, history []completion.Message) completion.RequestBuilder {
	b := completion.NewRequestBuilder(a.model, prompt).
		Preamble(a.preamble).
		Messages(history).
		Documents(a.documents...)
	if a.tools != nil {
		b = b.Tools(a.tools.Definitions()...)
	}
	if a.temperature != nil {
		b = b.Temperature(*a.temperature)
	}
	if a.maxTokens != nil {
		b = b.MaxTokens(*a.maxTokens)
	}
	if len(a.additionalParams) > 0 {
		b = b.AdditionalParams(a.additionalParams)
	}
	return b
}

// Prompt starts a prompt request for a user text prompt.
func (a *Agent) Prompt(prompt string) PromptRequest {
	return NewPromptRequest(a, completion.UserText(prompt))
}

// PromptMessage starts a prompt request for an arbitrary message, such as
// the unsent prompt of a MaxDepthError.
func (a *Agent) PromptMessage(prompt completion.Message) PromptRequest {
	return NewPromptRequest(a, prompt)
}

// Chat sends prompt with history attached and returns the answer.
func (a *Agent) Chat(ctx context.Context, prompt string, history *completion.History) (string, error) {
	return a.Prompt(prompt).WithHistory(history).Send(ctx)
}
