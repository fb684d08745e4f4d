// Package dependency wires rig's services using go.uber.org/dig.
package dependency

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/dig"

	"github.com/rajiknows/rig/agent"
	"github.com/rajiknows/rig/completion"
	"github.com/rajiknows/rig/internal/config"
	"github.com/rajiknows/rig/provider"
	"github.com/rajiknows/rig/storage"
	"github.com/rajiknows/rig/tool"
	"github.com/rajiknows/rig/tool/builtin"
)

// Container holds the resolved services. Callers use the typed getters and
// never import dig directly. The store is opened on first use.
type Container struct {
	cfg    *config.Config
	dig    *dig.Container
	router *provider.Router
	tools  *tool.ToolSet
	agent  *agent.Agent

	storeOnce sync.Once
	store     *storage.Store
	storeErr  error
}

func (c *Container) Config() *config.Config   { return c.cfg }
func (c *Container) Router() *provider.Router { return c.router }
func (c *Container) Model() completion.Model  { return c.router }
func (c *Container) Tools() *tool.ToolSet     { return c.tools }
func (c *Container) Agent() *agent.Agent      { return c.agent }

// Store returns the conversation store, opening it on first call.
func (c *Container) Store() (*storage.Store, error) {
	c.storeOnce.Do(func() {
		c.storeErr = c.dig.Invoke(func(s *storage.Store) { c.store = s })
	})
	return c.store, c.storeErr
}

// Close releases the store if it was opened.
func (c *Container) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Option customizes the container.
type Option func(*options)

type options struct {
	model completion.Model
}

// WithModel replaces the configured provider with model. Middleware still applies.
func WithModel(model completion.Model) Option {
	return func(o *options) { o.model = model }
}

// New builds and wires the core services from cfg.
func New(cfg *config.Config, opts ...Option) (*Container, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	d := dig.New()
	providers := []interface{}{
		func() *config.Config { return cfg },
		func() *options { return o },
		newRouter,
		func(r *provider.Router) completion.Model { return r },
		newToolSet,
		newAgent,
		newStore,
	}
	for _, p := range providers {
		if err := d.Provide(p); err != nil {
			return nil, err
		}
	}

	c := &Container{cfg: cfg, dig: d}
	err := d.Invoke(func(r *provider.Router, ts *tool.ToolSet, a *agent.Agent) {
		c.router = r
		c.tools = ts
		c.agent = a
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newRouter(cfg *config.Config, o *options) (*provider.Router, error) {
	model := o.model
	if model == nil {
		m, err := provider.NewGollmModel(cfg.Provider.Name,
			provider.WithAPIKey(cfg.Provider.APIKey),
			provider.WithModel(cfg.Provider.Model),
			provider.WithMaxTokens(cfg.Provider.MaxTokens),
			provider.WithTemperature(cfg.Provider.Temperature),
		)
		if err != nil {
			return nil, err
		}
		model = m
	}

	policy := provider.DefaultRetryPolicy()
	policy.MaxRetries = cfg.Provider.MaxRetries
	return provider.NewRouter(
		provider.WithRoute(cfg.Provider.Name, model),
		provider.WithDefaultRoute(cfg.Provider.Name),
		provider.WithMiddleware(provider.LoggingMiddleware(), provider.RetryMiddleware(policy)),
	), nil
}

func newToolSet(cfg *config.Config) (*tool.ToolSet, error) {
	set := tool.NewToolSet(
		tool.WithCharLimits(cfg.Tools.OutputLimits),
		tool.WithLineLimits(cfg.Tools.LineLimits),
	)
	err := builtin.Register(set, builtin.Options{
		WorkingDir: cfg.Tools.WorkingDir,
		Enabled:    cfg.Tools.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("register builtin tools: %w", err)
	}
	return set, nil
}

func newAgent(cfg *config.Config, model completion.Model, tools *tool.ToolSet) (*agent.Agent, error) {
	docs, err := loadDocuments(cfg.Agent.Documents)
	if err != nil {
		return nil, err
	}

	opts := []agent.Option{
		agent.WithName(cfg.Agent.Name),
		agent.WithPreamble(cfg.Agent.Preamble),
		agent.WithDocuments(docs...),
		agent.WithTools(tools),
		agent.WithDefaultMaxDepth(cfg.Agent.MaxDepth),
		agent.WithLoopDetection(cfg.Agent.LoopWindow),
	}
	if cfg.Agent.Temperature != nil {
		opts = append(opts, agent.WithTemperature(*cfg.Agent.Temperature))
	}
	if cfg.Agent.MaxTokens > 0 {
		opts = append(opts, agent.WithMaxTokens(cfg.Agent.MaxTokens))
	}
	return agent.New(model, opts...), nil
}

func newStore(cfg *config.Config) (*storage.Store, error) {
	return storage.Open(cfg.Storage.Path)
}

func loadDocuments(paths []string) ([]completion.Document, error) {
	docs := make([]completion.Document, 0, len(paths))
	for _, p := range paths {
		expanded, err := config.ExpandPath(p)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(expanded)
		if err != nil {
			return nil, fmt.Errorf("load document: %w", err)
		}
		docs = append(docs, completion.Document{ID: filepath.Base(expanded), Text: string(data)})
	}
	return docs, nil
}
