package analysis

import (
	"errors"
	"fmt"
	"net/http"
)

// AIErrorCode represents specific AI analysis failures.
type AIErrorCode string

const (
	ErrAIDisabled        AIErrorCode = "AI_DISABLED"
	ErrAIUnavailable     AIErrorCode = "AI_UNAVAILABLE"
	ErrAIRateLimited     AIErrorCode = "AI_RATE_LIMITED"
	ErrAIInvalidResponse AIErrorCode = "AI_INVALID_RESPONSE"
)

// AIError is a structured error from a completion provider. It never reaches
// HTTP callers; the Analyzer turns it into a rule-based analysis.
type AIError struct {
	Code      AIErrorCode
	Message   string
	Provider  string
	Retryable bool
	Cause     error
}

func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AIError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether this error is retryable.
func (e *AIError) IsRetryable() bool {
	return e.Retryable
}

// AsAIError unwraps err into an *AIError if it is one.
func AsAIError(err error) (*AIError, bool) {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr, true
	}
	return nil, false
}

// networkError converts a transport failure into an AIError.
func networkError(provider string, err error) *AIError {
	return &AIError{
		Code:      ErrAIUnavailable,
		Message:   provider + " request failed",
		Provider:  provider,
		Retryable: true,
		Cause:     err,
	}
}

// statusError converts a non-OK HTTP status into an AIError. 429 and 5xx
// are retryable, other 4xx are not.
func statusError(provider string, statusCode int, body string) *AIError {
	if statusCode == http.StatusTooManyRequests {
		return &AIError{
			Code:      ErrAIRateLimited,
			Message:   provider + " rate limited",
			Provider:  provider,
			Retryable: true,
		}
	}
	return &AIError{
		Code:      ErrAIUnavailable,
		Message:   fmt.Sprintf("%s error (HTTP %d): %s", provider, statusCode, truncate(body, 200)),
		Provider:  provider,
		Retryable: statusCode >= 500,
	}
}

func invalidResponse(provider, msg string, cause error) *AIError {
	return &AIError{
		Code:     ErrAIInvalidResponse,
		Message:  msg,
		Provider: provider,
		Cause:    cause,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
