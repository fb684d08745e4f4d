package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/rajiknows/rig/completion"
	"github.com/rajiknows/rig/internal/session"
	"github.com/rajiknows/rig/pkg/logger"
	"github.com/rajiknows/rig/provider"
	"github.com/rajiknows/rig/storage"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// PromptRequest is the body of POST /prompt.
type PromptRequest struct {
	Prompt         string `json:"prompt"`
	Depth          *int   `json:"depth,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// PromptResponse is the body of a successful POST /prompt.
type PromptResponse struct {
	ConversationID string `json:"conversation_id"`
	Output         string `json:"output"`
}

// ConversationResponse is the body of GET /conversations/{id}.
type ConversationResponse struct {
	*storage.Conversation
	Messages []completion.Message `json:"messages"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	SendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.deps.Version,
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	defs := []completion.ToolDefinition{}
	if s.deps.Tools != nil {
		defs = s.deps.Tools.Definitions()
	}
	SendJSON(w, http.StatusOK, map[string]any{"tools": defs})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	SendJSON(w, http.StatusOK, map[string]any{"models": provider.ListModels(r.URL.Query().Get("provider"))})
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "prompt is required")
		return
	}
	if req.Depth != nil && *req.Depth < 0 {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "depth must be >= 0")
		return
	}

	ctx, cancel := s.promptContext(r.Context())
	defer cancel()

	res, err := s.deps.Runner.Run(ctx, session.Input{
		Prompt:         req.Prompt,
		ConversationID: req.ConversationID,
		Depth:          req.Depth,
	})
	if err != nil {
		status, code := classify(err)
		logger.Warn().Err(err).Str("conversation_id", res.ConversationID).Str("code", code).Msg("prompt failed")
		if res.ConversationID != "" {
			w.Header().Set("X-Conversation-ID", res.ConversationID)
		}
		SendError(w, status, code, err.Error())
		return
	}
	SendJSON(w, http.StatusOK, PromptResponse{ConversationID: res.ConversationID, Output: res.Output})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	convs, err := s.deps.Store.ListConversations(r.Context(), limit)
	if err != nil {
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if convs == nil {
		convs = []*storage.Conversation{}
	}
	SendJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	conv, err := s.deps.Store.GetConversation(r.Context(), id)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	h, err := s.deps.Store.LoadHistory(r.Context(), id)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, ConversationResponse{Conversation: conv, Messages: h.Messages()})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.DeleteConversation(r.Context(), mux.Vars(r)["id"]); err != nil {
		sendStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sendStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		SendError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
}
