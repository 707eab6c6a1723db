package provider

import (
	"context"
	"strings"
	"time"

	"github.com/maheshrc27/threadcraft/internal/apperr"
	"go.uber.org/zap"
)

var (
	qualityFirstOrder = []string{OpenAI, Google, Perplexity}
	costFirstOrder    = []string{Google, Perplexity, OpenAI}
)

// Factory builds a provider client for a credential.
type Factory func(ctx context.Context, name, apiKey string) (ContentProvider, error)

type Models struct {
	OpenAI     string
	Perplexity string
	Google     string
	Timeout    time.Duration
}

// DefaultFactory builds the production clients.
func DefaultFactory(m Models) Factory {
	return func(ctx context.Context, name, apiKey string) (ContentProvider, error) {
		switch name {
		case OpenAI:
			return NewOpenAI(apiKey, m.OpenAI, m.Timeout), nil
		case Perplexity:
			return NewPerplexity(apiKey, m.Perplexity, m.Timeout), nil
		case Google:
			return NewGoogle(apiKey, m.Google, m.Timeout), nil
		}
		return nil, apperr.Validation("provider", "unknown provider "+name)
	}
}

type Candidate struct {
	Provider ContentProvider
	Source   KeySource
}

type RouteRequest struct {
	Source   KeySource
	Tier     string
	UserKeys map[string]string
}

type Router struct {
	platformKeys map[string]string
	factory      Factory
}

func NewRouter(platformKeys map[string]string, factory Factory) *Router {
	keys := make(map[string]string, len(platformKeys))
	for name, key := range platformKeys {
		keys[name] = key
	}
	return &Router{platformKeys: keys, factory: factory}
}

// Order is the provider preference for a key source and tier. Callers paying
// for their own keys always get the quality-first order.
func Order(source KeySource, tier string) []string {
	if source == KeySourceBYOK || IsPaidTier(tier) {
		return qualityFirstOrder
	}
	return costFirstOrder
}

// Route returns the candidates, in preference order, that hold a usable
// credential for the request's key source.
func (r *Router) Route(ctx context.Context, req RouteRequest) ([]Candidate, error) {
	source := req.Source
	if source == "" {
		source = KeySourcePlatform
	}

	keys := r.platformKeys
	if source == KeySourceBYOK {
		keys = req.UserKeys
	}

	var candidates []Candidate
	for _, name := range Order(source, req.Tier) {
		key := strings.TrimSpace(keys[name])
		if key == "" {
			continue
		}
		p, err := r.factory(ctx, name, key)
		if err != nil || p == nil {
			zap.L().Warn("skipping provider with unusable client", zap.String("provider", name), zap.Error(err))
			continue
		}
		candidates = append(candidates, Candidate{Provider: p, Source: source})
	}

	if len(candidates) == 0 {
		return nil, apperr.ErrNoProvidersConfigured
	}
	return candidates, nil
}
