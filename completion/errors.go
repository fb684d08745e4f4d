package completion

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when a model answers with no content blocks.
var ErrEmptyResponse = errors.New("response contained no content")

// UnknownKindError is returned when a tagged union carries a discriminator
// this package does not know.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown content kind %q", e.Kind)
}

// CompletionError wraps any failure of a completion request.
type CompletionError struct {
	Op  string
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion %s: %v", e.Op, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// SDKError is the base error type for provider-side failures.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

func (e *SDKError) setCause(cause error) {
	e.Cause = cause
}

// WithCause records cause on err if err embeds an SDKError, as every error
// built by ErrorFromStatusCode does, and returns err.
func WithCause(err, cause error) error {
	if c, ok := err.(interface{ setCause(error) }); ok {
		c.setCause(cause)
	}
	return err
}

// ProviderError represents an error returned by an LLM provider.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	ErrorCode  string
	Retryable  bool
	RetryAfter *float64
	Raw        map[string]interface{}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s (status=%d, retryable=%v)", e.Provider, e.Message, e.StatusCode, e.Retryable)
}

// Concrete provider error types.

type AuthenticationError struct{ ProviderError }
type AccessDeniedError struct{ ProviderError }
type NotFoundError struct{ ProviderError }
type InvalidRequestError struct{ ProviderError }
type RateLimitError struct{ ProviderError }
type ServerError struct{ ProviderError }
type ContentFilterError struct{ ProviderError }
type ContextLengthError struct{ ProviderError }
type QuotaExceededError struct{ ProviderError }

// Non-provider errors.

type RequestTimeoutError struct{ SDKError }
type NetworkError struct{ SDKError }
type InvalidToolCallError struct{ SDKError }
type ConfigurationError struct{ SDKError }

// ErrorFromStatusCode maps an HTTP status code to the appropriate error type.
func ErrorFromStatusCode(statusCode int, message, provider, errorCode string, raw map[string]interface{}, retryAfter *float64) error {
	pe := ProviderError{
		SDKError:   SDKError{Message: message},
		Provider:   provider,
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Raw:        raw,
		RetryAfter: retryAfter,
	}

	switch statusCode {
	case 400, 422:
		return &InvalidRequestError{ProviderError: pe}
	case 401:
		return &AuthenticationError{ProviderError: pe}
	case 403:
		return &AccessDeniedError{ProviderError: pe}
	case 404:
		return &NotFoundError{ProviderError: pe}
	case 408:
		return &RequestTimeoutError{SDKError: SDKError{Message: message}}
	case 413:
		return &ContextLengthError{ProviderError: pe}
	case 429:
		pe.Retryable = true
		return &RateLimitError{ProviderError: pe}
	case 500, 502, 503, 504:
		pe.Retryable = true
		return &ServerError{ProviderError: pe}
	default:
		// Unknown statuses default to retryable.
		pe.Retryable = true
		return &pe
	}
}

// IsRetryable reports whether err is safe to retry. It looks through
// wrapping, so a *CompletionError around a *RateLimitError is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var (
		authErr    *AuthenticationError
		deniedErr  *AccessDeniedError
		notFound   *NotFoundError
		invalidReq *InvalidRequestError
		ctxLen     *ContextLengthError
		quota      *QuotaExceededError
		filter     *ContentFilterError
		configErr  *ConfigurationError
		toolCall   *InvalidToolCallError
		rateLimit  *RateLimitError
		serverErr  *ServerError
		netErr     *NetworkError
		timeoutErr *RequestTimeoutError
		provErr    *ProviderError
	)
	switch {
	case errors.Is(err, ErrEmptyResponse), errors.Is(err, context.Canceled):
		return false
	case errors.As(err, &authErr), errors.As(err, &deniedErr), errors.As(err, &notFound),
		errors.As(err, &invalidReq), errors.As(err, &ctxLen), errors.As(err, &quota),
		errors.As(err, &filter), errors.As(err, &configErr), errors.As(err, &toolCall):
		return false
	case errors.As(err, &rateLimit), errors.As(err, &serverErr), errors.As(err, &netErr),
		errors.As(err, &timeoutErr):
		return true
	case errors.As(err, &provErr):
		return provErr.Retryable
	default:
		// Unknown errors default to retryable.
		return true
	}
}

// RetryAfter returns the provider's retry hint in seconds, if any.
func RetryAfter(err error) (float64, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter != nil {
		return *rl.RetryAfter, true
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.RetryAfter != nil {
		return *pe.RetryAfter, true
	}
	return 0, false
}
