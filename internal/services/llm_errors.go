package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"alfredoptarigan/cv-screener/internal/repositories"
)

// ErrorKind tags a failure for the retry decision and for metrics labels.
type ErrorKind string

const (
	KindRateLimit   ErrorKind = "rate_limit"
	KindTimeout     ErrorKind = "timeout"
	KindServerError ErrorKind = "server_error"
	KindClientError ErrorKind = "client_error"
	KindSafetyBlock ErrorKind = "safety_block"
	KindParse       ErrorKind = "parse"
	KindNotFound    ErrorKind = "not_found"
	KindUnknown     ErrorKind = "unknown"
)

// Retryable reports whether another attempt may succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimit, KindTimeout, KindServerError, KindUnknown:
		return true
	default:
		return false
	}
}

var (
	ErrSafetyBlocked = errors.New("response blocked by safety filters")
	ErrCallTimeout   = errors.New("model call timed out")
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// CallError is the terminal error of the adapter. Err is the error of the
// last attempt.
type CallError struct {
	Kind     ErrorKind
	Attempts int
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("llm call failed (%s) after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// ParseError reports a model response that does not satisfy the expected
// shape. It is never retried.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return "invalid model response: " + e.Reason
	}
	return fmt.Sprintf("invalid model response: %s: %s", e.Field, e.Reason)
}

// ClassifyError maps any error from the generative backend (or from the
// pipeline around it) to an ErrorKind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Kind
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return KindParse
	}

	switch {
	case errors.Is(err, ErrSafetyBlocked):
		return KindSafetyBlock
	case errors.Is(err, ErrCallTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, repositories.ErrDocumentNotFound), errors.Is(err, repositories.ErrEvaluationNotFound):
		return KindNotFound
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if kind, ok := classifyAPIError(apiErr.Code, apiErr.Status); ok {
			return kind
		}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		if kind, ok := classifyAPIError(apiErrPtr.Code, apiErrPtr.Status); ok {
			return kind
		}
	}

	return classifyMessage(err.Error())
}

func classifyAPIError(code int, status string) (ErrorKind, bool) {
	switch strings.ToUpper(status) {
	case "RESOURCE_EXHAUSTED":
		return KindRateLimit, true
	case "INTERNAL", "UNAVAILABLE", "DEADLINE_EXCEEDED":
		return KindServerError, true
	case "INVALID_ARGUMENT", "PERMISSION_DENIED", "NOT_FOUND", "UNAUTHENTICATED", "FAILED_PRECONDITION":
		return KindClientError, true
	}

	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimit, true
	case code >= 500 && code <= 599:
		return KindServerError, true
	case code == http.StatusBadRequest, code == http.StatusUnauthorized,
		code == http.StatusForbidden, code == http.StatusNotFound:
		return KindClientError, true
	}

	return "", false
}

func classifyMessage(msg string) ErrorKind {
	msg = strings.ToLower(msg)

	switch {
	case strings.Contains(msg, "quota"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return KindRateLimit
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return KindTimeout
	case strings.Contains(msg, "500"), strings.Contains(msg, "503"):
		return KindServerError
	case strings.Contains(msg, "400"), strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return KindClientError
	case strings.Contains(msg, "safety"), strings.Contains(msg, "blocked"):
		return KindSafetyBlock
	}

	return KindUnknown
}
