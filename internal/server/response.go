package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rajiknows/rig/agent"
	"github.com/rajiknows/rig/completion"
	"github.com/rajiknows/rig/storage"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeMaxDepth       = "MAX_DEPTH"
	ErrCodeToolError      = "TOOL_ERROR"
	ErrCodeProviderError  = "PROVIDER_ERROR"
	ErrCodeTimeout        = "GATEWAY_TIMEOUT"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// SendJSON writes data as JSON with the given status code.
func SendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// SendError writes an ErrorResponse.
func SendError(w http.ResponseWriter, status int, code, message string) {
	SendJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// classify maps an error from a prompt run to an HTTP status and error code.
func classify(err error) (int, string) {
	var (
		toolErr       *agent.ToolCallError
		completionErr *completion.CompletionError
		timeoutErr    *completion.RequestTimeoutError
	)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, agent.ErrMaxDepth):
		return http.StatusUnprocessableEntity, ErrCodeMaxDepth
	case errors.As(err, &toolErr):
		return http.StatusUnprocessableEntity, ErrCodeToolError
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeTimeout
	case errors.As(err, &completionErr):
		return http.StatusBadGateway, ErrCodeProviderError
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}
