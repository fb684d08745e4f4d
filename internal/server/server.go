// Package server exposes the agent over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rajiknows/rig/completion"
	"github.com/rajiknows/rig/internal/session"
	"github.com/rajiknows/rig/pkg/logger"
	"github.com/rajiknows/rig/storage"
)

// ToolLister lists the tools the agent can call.
type ToolLister interface {
	Definitions() []completion.ToolDefinition
}

// Deps are the services the server needs.
type Deps struct {
	Runner  *session.Runner
	Store   *storage.Store
	Tools   ToolLister
	Version string
	// PromptTimeout bounds a single prompt run. Zero means no limit.
	PromptTimeout time.Duration
}

// Server serves the rig API.
type Server struct {
	deps       Deps
	router     *mux.Router
	httpServer *http.Server
	startedAt  time.Time
}

// New creates a server and registers its routes.
func New(deps Deps) *Server {
	s := &Server{
		deps:      deps,
		router:    mux.NewRouter(),
		startedAt: time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/tools", s.handleTools).Methods(http.MethodGet)
	api.HandleFunc("/models", s.handleModels).Methods(http.MethodGet)
	api.HandleFunc("/prompt", s.handlePrompt).Methods(http.MethodPost)
	api.HandleFunc("/conversations", s.handleListConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}", s.handleGetConversation).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}", s.handleDeleteConversation).Methods(http.MethodDelete)
	api.HandleFunc("/ws", s.handleWebSocket)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SendError(w, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SendError(w, http.StatusMethodNotAllowed, ErrCodeInvalidRequest, "method not allowed")
	})
}

// Handler returns the router wrapped in the recovery and logging middleware.
func (s *Server) Handler() http.Handler {
	return Recovery(Logging(s.router))
}

// Start listens on addr and blocks until ctx is cancelled or the listener
// fails. Cancelling ctx shuts the server down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Starting server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) promptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.deps.PromptTimeout > 0 {
		return context.WithTimeout(ctx, s.deps.PromptTimeout)
	}
	return context.WithCancel(ctx)
}
