// Package provider adapts LLM backends to completion.Model and layers routing,
// retries and logging on top of them.
package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/teilomillet/gollm"

	"github.com/rajiknows/rig/completion"
)

type generateFunc func(ctx context.Context, prompt *gollm.Prompt) (string, error)

type setOptionFunc func(key string, value interface{})

// GollmModel wraps a gollm.LLM and implements completion.Model. Requests are
// rendered into a single gollm prompt; tool calls are parsed back out of the
// generated text.
type GollmModel struct {
	provider  string
	model     string
	generate  generateFunc
	setOption setOptionFunc

	// gollm options are set on the shared LLM before each call.
	mu sync.Mutex
}

// GollmOption configures a GollmModel.
type GollmOption func(*gollmConfig)

type gollmConfig struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) GollmOption {
	return func(c *gollmConfig) { c.apiKey = key }
}

// WithModel sets the model ID. Aliases from the catalog are resolved.
func WithModel(model string) GollmOption {
	return func(c *gollmConfig) { c.model = model }
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) GollmOption {
	return func(c *gollmConfig) { c.maxTokens = n }
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) GollmOption {
	return func(c *gollmConfig) { c.temperature = t }
}

// WithGollmOptions adds extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmOption {
	return func(c *gollmConfig) { c.extraOpts = append(c.extraOpts, opts...) }
}

// NewGollmModel creates a model for provider. If the API key is empty gollm
// falls back to the provider's environment variable.
func NewGollmModel(provider string, opts ...GollmOption) (*GollmModel, error) {
	cfg := &gollmConfig{
		maxTokens:   4096,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := ResolveModel(provider, cfg.model)

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // RetryMiddleware owns retries.
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gollm LLM for provider %s: %w", provider, err)
	}
	return NewGollmModelFromLLM(provider, model, llm), nil
}

// NewGollmModelFromLLM wraps an existing gollm.LLM.
func NewGollmModelFromLLM(provider, model string, llm gollm.LLM) *GollmModel {
	return &GollmModel{
		provider: provider,
		model:    model,
		generate: func(ctx context.Context, prompt *gollm.Prompt) (string, error) {
			return llm.Generate(ctx, prompt)
		},
		setOption: func(key string, value interface{}) {
			llm.SetOption(key, value)
		},
	}
}

// Provider returns the provider identifier.
func (m *GollmModel) Provider() string { return m.provider }

// Model returns the model ID.
func (m *GollmModel) Model() string { return m.model }

// Complete renders req into a gollm prompt, generates, and parses the output.
func (m *GollmModel) Complete(ctx context.Context, req completion.Request) (*completion.Response, error) {
	prompt := translateRequest(req)

	m.mu.Lock()
	m.applyRequestOptions(req)
	text, err := m.generate(ctx, prompt)
	m.mu.Unlock()
	if err != nil {
		return nil, translateError(m.provider, err)
	}
	return buildResponse(m.provider, m.model, req, text), nil
}

func (m *GollmModel) applyRequestOptions(req completion.Request) {
	if req.Temperature != nil {
		m.setOption("temperature", *req.Temperature)
	}
	if req.MaxTokens != nil {
		m.setOption("max_tokens", *req.MaxTokens)
	}
	for k, v := range req.AdditionalParams {
		m.setOption(k, v)
	}
}
