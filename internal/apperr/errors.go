// Package apperr holds the error types shared by generation, the credit
// ledger and the publishing worker.
package apperr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoProvidersConfigured is returned when no generation provider has a
// usable credential for the request. It is never retried.
var ErrNoProvidersConfigured = errors.New("no providers configured")

var (
	ErrNotFound      = errors.New("not found")
	ErrNotTeamMember = errors.New("not a member of this team")
)

type ValidationError struct {
	Field   string
	Message string
}

func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InsufficientCreditsError carries amounts in hundredths of a credit.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
	ScopeType string
	ScopeID   int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits in %s balance %d: required %s, available %s",
		e.ScopeType, e.ScopeID, formatHundredths(e.Required), formatHundredths(e.Available))
}

type ProviderAuthError struct {
	Provider string
	Err      error
}

func (e *ProviderAuthError) Error() string {
	return fmt.Sprintf("%s: authorization failed: %v", e.Provider, e.Err)
}

func (e *ProviderAuthError) Unwrap() error { return e.Err }

// ProviderQuotaError signals temporary capacity exhaustion. RetryAfter is zero
// when the provider did not suggest a wait.
type ProviderQuotaError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderQuotaError) Error() string {
	return fmt.Sprintf("%s: quota exceeded: %v", e.Provider, e.Err)
}

func (e *ProviderQuotaError) Unwrap() error { return e.Err }

// AllProvidersUnauthorizedError aggregates the per-provider authorization
// failures when every candidate rejected its credential.
type AllProvidersUnauthorizedError struct {
	Failures []*ProviderAuthError
}

func (e *AllProvidersUnauthorizedError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Provider)
	}
	return "all providers rejected their credentials: " + strings.Join(names, ", ")
}

type QualityGateCriticalError struct {
	Reasons []string
}

func (e *QualityGateCriticalError) Error() string {
	return "generated content is unusable: " + strings.Join(e.Reasons, "; ")
}

type ReconnectRequiredError struct {
	AccountID int64
	Err       error
}

func (e *ReconnectRequiredError) Error() string {
	return fmt.Sprintf("account %d must be reconnected: %v", e.AccountID, e.Err)
}

func (e *ReconnectRequiredError) Unwrap() error { return e.Err }

type DuplicateContentError struct {
	Err error
}

func (e *DuplicateContentError) Error() string {
	return fmt.Sprintf("duplicate content rejected: %v", e.Err)
}

func (e *DuplicateContentError) Unwrap() error { return e.Err }

type RateLimitedError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

type PostingError struct {
	Err error
}

func (e *PostingError) Error() string {
	return fmt.Sprintf("posting failed: %v", e.Err)
}

func (e *PostingError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func formatHundredths(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
