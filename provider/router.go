package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rajiknows/rig/completion"
	"github.com/rajiknows/rig/pkg/logger"
)

// Middleware wraps a model call. next calls the downstream handler.
type Middleware func(ctx context.Context, req completion.Request, next func(context.Context, completion.Request) (*completion.Response, error)) (*completion.Response, error)

// Router holds named models, routes requests to the default one, and applies
// middleware. It implements completion.Model.
type Router struct {
	models       map[string]completion.Model
	defaultModel string
	middleware   []Middleware
	mu           sync.RWMutex
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRoute registers a model under name.
func WithRoute(name string, model completion.Model) RouterOption {
	return func(r *Router) {
		r.models[name] = model
	}
}

// WithDefaultRoute sets the model used by Complete.
func WithDefaultRoute(name string) RouterOption {
	return func(r *Router) {
		r.defaultModel = name
	}
}

// WithMiddleware adds middleware. The first registered runs first.
func WithMiddleware(mw ...Middleware) RouterOption {
	return func(r *Router) {
		r.middleware = append(r.middleware, mw...)
	}
}

// NewRouter creates a Router. With exactly one model and no default, that
// model becomes the default.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		models: make(map[string]completion.Model),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.defaultModel == "" && len(r.models) == 1 {
		for name := range r.models {
			r.defaultModel = name
		}
	}
	return r
}

// Register adds a model. The first registered model becomes the default.
func (r *Router) Register(name string, model completion.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[name] = model
	if r.defaultModel == "" {
		r.defaultModel = name
	}
}

// Names returns the registered route names, sorted.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Model returns a completion.Model bound to the named route, with the
// router's middleware applied.
func (r *Router) Model(name string) completion.Model {
	return completion.ModelFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		return r.complete(ctx, name, req)
	})
}

// Complete sends req to the default model through the middleware chain.
func (r *Router) Complete(ctx context.Context, req completion.Request) (*completion.Response, error) {
	return r.complete(ctx, "", req)
}

func (r *Router) resolve(name string) (completion.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultModel
	}
	if name == "" {
		return nil, &completion.ConfigurationError{SDKError: completion.SDKError{
			Message: "no model specified and no default model configured",
		}}
	}
	m, ok := r.models[name]
	if !ok {
		return nil, &completion.ConfigurationError{SDKError: completion.SDKError{
			Message: fmt.Sprintf("model %q is not registered", name),
		}}
	}
	return m, nil
}

func (r *Router) complete(ctx context.Context, name string, req completion.Request) (*completion.Response, error) {
	model, err := r.resolve(name)
	if err != nil {
		return nil, err
	}

	handler := func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		return model.Complete(ctx, req)
	}
	for i := len(r.middleware) - 1; i >= 0; i-- {
		mw := r.middleware[i]
		next := handler
		handler = func(ctx context.Context, req completion.Request) (*completion.Response, error) {
			return mw(ctx, req, next)
		}
	}
	return handler(ctx, req)
}

// LoggingMiddleware logs each completion call at debug level and failures at warn.
func LoggingMiddleware() Middleware {
	return func(ctx context.Context, req completion.Request, next func(context.Context, completion.Request) (*completion.Response, error)) (*completion.Response, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			logger.Warn().Err(err).Dur("elapsed", elapsed).Int("history", len(req.ChatHistory)).Msg("completion failed")
			return nil, err
		}
		logger.Debug().
			Str("model", resp.Model).
			Int("blocks", len(resp.Choice)).
			Int("input_tokens", resp.Usage.InputTokens).
			Int("output_tokens", resp.Usage.OutputTokens).
			Dur("elapsed", elapsed).
			Msg("completion")
		return resp, nil
	}
}
