// internal/common/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"

	ErrCodeLLMTimeout          ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMCompletionFailed ErrorCode = "LLM_COMPLETION_FAILED"
	ErrCodeLLMUnparseable      ErrorCode = "LLM_OUTPUT_UNPARSEABLE"

	ErrCodeWebSearchFailed ErrorCode = "WEB_SEARCH_FAILED"
	ErrCodePageFetchFailed ErrorCode = "PAGE_FETCH_FAILED"

	ErrCodeDatabaseQueryFailed ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeIngestionFailed     ErrorCode = "INGESTION_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error and returns it for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Request validation failed", details, false)
}

func NewUnauthorizedError(details string) *StandardError {
	return newError(ErrCodeUnauthorized, "Authentication required", details, false)
}

func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Insufficient privileges", details, false)
}

func NewNotFoundError(resource, id string) *StandardError {
	return newError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), fmt.Sprintf("id: %s", id), false)
}

func NewLLMTimeoutError(provider string) *StandardError {
	return newError(ErrCodeLLMTimeout, "Language model call timed out", fmt.Sprintf("provider: %s", provider), true)
}

func NewLLMCompletionFailedError(provider string, err error) *StandardError {
	return newError(ErrCodeLLMCompletionFailed, "Language model call failed",
		fmt.Sprintf("provider: %s, error: %s", provider, err.Error()), true)
}

func NewLLMUnparseableError(details string) *StandardError {
	return newError(ErrCodeLLMUnparseable, "Language model output did not match the expected schema", details, false)
}

func NewWebSearchFailedError(err error) *StandardError {
	return newError(ErrCodeWebSearchFailed, "Web search failed", err.Error(), true)
}

func NewPageFetchFailedError(url string, err error) *StandardError {
	return newError(ErrCodePageFetchFailed, "Page fetch failed", fmt.Sprintf("url: %s, error: %s", url, err.Error()), false)
}

func NewDatabaseQueryFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseQueryFailed, "Database query failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

func NewIngestionFailedError(source string, err error) *StandardError {
	return newError(ErrCodeIngestionFailed, fmt.Sprintf("Ingestion from %s failed", source), err.Error(), true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// As extracts a *StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HTTPStatus maps an error code to the response status the API returns for it.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeLLMTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeLLMCompletionFailed, ErrCodeLLMUnparseable, ErrCodeWebSearchFailed, ErrCodePageFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeLLMTimeout, ErrCodeLLMCompletionFailed, ErrCodeWebSearchFailed,
		ErrCodeDatabaseQueryFailed, ErrCodeIngestionFailed:
		return true
	default:
		return false
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeUnauthorized || code == ErrCodeForbidden:
		return "AUTH"
	case strings.HasPrefix(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "FETCH"):
		return "WEB"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "INGESTION"):
		return "DATABASE"
	case code == ErrCodeValidationFailed || code == ErrCodeNotFound:
		return "CLIENT"
	default:
		return "OTHER"
	}
}
