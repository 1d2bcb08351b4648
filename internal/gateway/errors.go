package gateway

import (
	"fmt"
	"time"
)

// The inference failure taxonomy. Terminal errors abort the call outright;
// errors implementing Retryable() true get one transport retry;
// ValidationFailedError is surfaced only after the repair loop is exhausted.

// AuthMissingError means no credential is configured for the selected backend.
type AuthMissingError struct {
	Backend string
}

func (e *AuthMissingError) Error() string {
	return fmt.Sprintf("gateway: no API key configured for %s backend", e.Backend)
}

// ModelNotFoundError means the configured model name does not exist upstream.
type ModelNotFoundError struct {
	Model string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("gateway: model %s not found", e.Model)
}

// QuotaExceededError means the account-level quota is exhausted. Unlike a
// rate limit this does not clear on its own, so it is terminal.
type QuotaExceededError struct {
	Detail string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("gateway: provider quota exceeded: %s", e.Detail)
}

// RateLimitedError means the provider throttled the request. RetryAfter is
// the server-suggested wait, zero when the provider gave none.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("gateway: rate limited, retry after %s", e.RetryAfter)
	}
	return "gateway: rate limited"
}

func (e *RateLimitedError) Retryable() bool { return true }

// OverloadedError means the provider reported temporary overload (503).
type OverloadedError struct {
	Cooldown time.Duration
}

func (e *OverloadedError) Error() string {
	return fmt.Sprintf("gateway: model overloaded, cooling down %s", e.Cooldown)
}

func (e *OverloadedError) Retryable() bool { return true }

// ServerError covers remaining 5xx responses.
type ServerError struct {
	Code int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("gateway: provider server error %d", e.Code)
}

func (e *ServerError) Retryable() bool { return true }

// ClientError covers remaining 4xx responses. The request is malformed or
// rejected; retrying the same request cannot help.
type ClientError struct {
	Code int
	Body string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("gateway: provider rejected request with %d: %s", e.Code, e.Body)
}

// SafetyBlockedError means the provider refused to generate for the prompt.
type SafetyBlockedError struct {
	Reason string
}

func (e *SafetyBlockedError) Error() string {
	return fmt.Sprintf("gateway: generation blocked by safety filter: %s", e.Reason)
}

// EmptyResponseError means the call succeeded but produced no usable text.
type EmptyResponseError struct {
	FinishReason string
}

func (e *EmptyResponseError) Error() string {
	if e.FinishReason != "" {
		return fmt.Sprintf("gateway: empty response (finish reason %s)", e.FinishReason)
	}
	return "gateway: empty response"
}

// BudgetExceededError means the local hourly call budget for a tier is spent.
// Wait is how long until the oldest window entry expires.
type BudgetExceededError struct {
	Tier string
	Wait time.Duration
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("gateway: hourly budget for %s tier exhausted, next slot in %s", e.Tier, e.Wait.Round(time.Second))
}

// ValidationFailedError means the output never validated, even after the
// repair attempts were spent. Err is the last validation failure.
type ValidationFailedError struct {
	TaskKey  string
	Attempts int
	Err      error
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("gateway: output for task %s failed validation after %d repair attempts: %v", e.TaskKey, e.Attempts, e.Err)
}

func (e *ValidationFailedError) Unwrap() error { return e.Err }
