// Package generation runs prompts against the routed providers with
// per-provider retries and cleans what comes back.
package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/metrics"
	"github.com/maheshrc27/threadcraft/internal/provider"
	"github.com/maheshrc27/threadcraft/internal/retry"
	"go.uber.org/zap"
)

// Output is the cleaned result of a successful generation.
type Output struct {
	Content  string
	Segments []string
	Provider string
	Source   provider.KeySource
}

type Engine struct {
	Policy retry.Policy
	Sleep  func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy allows three calls per provider. Authorization failures are
// never retried.
func DefaultPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		Backoff:     retry.Exponential(2*time.Second, 20*time.Second),
		Retryable: func(err error) bool {
			return !provider.IsAuth(err) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
	}
}

func NewEngine() *Engine {
	return &Engine{Policy: DefaultPolicy(), Sleep: retry.Sleep}
}

// Generate walks the candidates in order. A provider is retried while its
// attempt budget lasts; quota signals wait first, using the provider's
// suggested delay when it gave one.
func (e *Engine) Generate(ctx context.Context, candidates []provider.Candidate, req provider.Request) (*Output, error) {
	if len(candidates) == 0 {
		return nil, apperr.ErrNoProvidersConfigured
	}

	var (
		authFailures []*apperr.ProviderAuthError
		lastErr      error
	)

	for _, c := range candidates {
		name := c.Provider.Name()

		for attempt := 1; attempt <= e.Policy.Attempts(); attempt++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			out, err := e.attempt(ctx, c, req)
			if err == nil {
				metrics.GenerationAttempts.WithLabelValues(name, "success").Inc()
				return out, nil
			}
			lastErr = err

			var authErr *apperr.ProviderAuthError
			if errors.As(err, &authErr) {
				metrics.GenerationAttempts.WithLabelValues(name, "auth").Inc()
				zap.L().Warn("provider rejected credential", zap.String("provider", name), zap.String("source", string(c.Source)), zap.Error(err))
				authFailures = append(authFailures, authErr)
				break
			}

			var quotaErr *apperr.ProviderQuotaError
			isQuota := errors.As(err, &quotaErr)
			if isQuota {
				metrics.GenerationAttempts.WithLabelValues(name, "quota").Inc()
			} else {
				metrics.GenerationAttempts.WithLabelValues(name, "error").Inc()
			}
			zap.L().Warn("generation attempt failed",
				zap.String("provider", name),
				zap.Int("attempt", attempt),
				zap.Bool("quota", isQuota),
				zap.Error(err))

			if !e.Policy.ShouldRetry(err) || attempt == e.Policy.Attempts() {
				break
			}

			if isQuota {
				wait := quotaErr.RetryAfter
				if wait <= 0 {
					wait = e.Policy.Delay(attempt)
				}
				if err := e.sleep(ctx, wait); err != nil {
					return nil, err
				}
			}
		}
	}

	if len(authFailures) == len(candidates) {
		return nil, &apperr.AllProvidersUnauthorizedError{Failures: authFailures}
	}
	return nil, lastErr
}

func (e *Engine) attempt(ctx context.Context, c provider.Candidate, req provider.Request) (*Output, error) {
	raw, err := c.Provider.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &Output{Provider: c.Provider.Name(), Source: c.Source}
	if req.Thread {
		segs, err := CleanThread(raw)
		if err != nil {
			return nil, err
		}
		out.Segments = segs
		out.Content = strings.Join(segs, "\n\n")
		return out, nil
	}

	text, err := Clean(raw)
	if err != nil {
		return nil, err
	}
	out.Content = text
	out.Segments = []string{text}
	return out, nil
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep == nil {
		return retry.Sleep(ctx, d)
	}
	return e.Sleep(ctx, d)
}
