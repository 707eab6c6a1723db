package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/generation"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/provider"
	"github.com/maheshrc27/threadcraft/internal/quality"
	"github.com/maheshrc27/threadcraft/internal/transfer"
	"go.uber.org/zap"
)

// DefaultThreadEstimate is charged up front when a thread request names no
// item count.
const DefaultThreadEstimate = 5

// Caller identifies who a request acts for. TeamID is zero outside a team
// context.
type Caller struct {
	UserID int64
	TeamID int64
}

type CandidateRouter interface {
	Route(ctx context.Context, req provider.RouteRequest) ([]provider.Candidate, error)
}

type ContentGenerator interface {
	Generate(ctx context.Context, candidates []provider.Candidate, req provider.Request) (*generation.Output, error)
}

type QualityRunner interface {
	Run(ctx context.Context, candidates []provider.Candidate, prompt string, in quality.Input) (*quality.Result, error)
}

type GenerationService interface {
	Generate(ctx context.Context, caller Caller, req transfer.GenerateRequest) (*transfer.GenerateResponse, error)
	GenerateStrategy(ctx context.Context, caller Caller, req transfer.StrategyRequest) (*transfer.GenerateResponse, error)
}

type generationService struct {
	router   CandidateRouter
	engine   ContentGenerator
	gate     QualityRunner
	credits  CreditService
	plans    PlanService
	settings SettingsService
	keys     ProviderKeyService
	schedule ScheduleService
}

func NewGenerationService(
	router CandidateRouter,
	engine ContentGenerator,
	gate QualityRunner,
	credits CreditService,
	plans PlanService,
	settings SettingsService,
	keys ProviderKeyService,
	schedule ScheduleService) GenerationService {
	return &generationService{
		router:   router,
		engine:   engine,
		gate:     gate,
		credits:  credits,
		plans:    plans,
		settings: settings,
		keys:     keys,
		schedule: schedule,
	}
}

// charge is the credit state of one generation request.
type charge struct {
	scope     models.CreditScope
	userID    int64
	ref       string
	estimate  models.Credits
	estimated int
	longPost  bool
}

// prepared is everything resolved before any credit moves.
type prepared struct {
	scope      models.CreditScope
	source     provider.KeySource
	candidates []provider.Candidate
	longPost   bool
}

func (s *generationService) Generate(ctx context.Context, caller Caller, req transfer.GenerateRequest) (*transfer.GenerateResponse, error) {
	prompt, err := generation.ValidatePrompt(req.Prompt)
	if err != nil {
		return nil, err
	}
	style, err := provider.ParseStyle(req.Style)
	if err != nil {
		return nil, apperr.Validation("style", err.Error())
	}
	if req.Schedule && req.ScheduleOptions == nil {
		return nil, apperr.Validation("scheduleOptions", "is required when schedule is set")
	}

	p, err := s.prepare(ctx, caller, req.KeySource)
	if err != nil {
		return nil, err
	}

	estimated := 1
	if req.IsThread {
		estimated = DefaultThreadEstimate
		if n, ok := generation.ParseThreadCount(prompt); ok {
			estimated = n
		}
	}

	c, err := s.reserve(ctx, caller, p, req.IsThread, estimated)
	if err != nil {
		return nil, err
	}

	out, err := s.engine.Generate(ctx, p.candidates, provider.Request{
		Prompt: prompt,
		Style:  style,
		Thread: req.IsThread,
		Count:  estimated,
	})
	if err != nil {
		s.release(ctx, c, err)
		return nil, err
	}

	used, err := s.settle(ctx, c, req.IsThread, len(out.Segments))
	if err != nil {
		return nil, err
	}

	resp := response(out, req.IsThread, c, used, p)
	if req.Schedule {
		s.scheduleGenerated(ctx, caller, p.scope, req.ScheduleOptions, out, req.IsThread, used, resp)
	}
	return resp, nil
}

func (s *generationService) GenerateStrategy(ctx context.Context, caller Caller, req transfer.StrategyRequest) (*transfer.GenerateResponse, error) {
	style, err := provider.ParseStyle(req.Style)
	if err != nil {
		return nil, apperr.Validation("style", err.Error())
	}
	in := quality.Input{
		Idea:        req.Idea,
		Instruction: req.Instruction,
		Context:     req.Context,
		Style:       style,
		Thread:      req.IsThread,
	}
	prompt, err := quality.BuildPrompt(in)
	if err != nil {
		return nil, err
	}
	if prompt, err = generation.ValidatePrompt(prompt); err != nil {
		return nil, err
	}

	p, err := s.prepare(ctx, caller, req.KeySource)
	if err != nil {
		return nil, err
	}

	estimated := 1
	if req.IsThread {
		estimated = quality.RequestedThreadItems
	}
	c, err := s.reserve(ctx, caller, p, req.IsThread, estimated)
	if err != nil {
		return nil, err
	}

	result, err := s.gate.Run(ctx, p.candidates, prompt, in)
	if err != nil {
		s.release(ctx, c, err)
		return nil, err
	}

	used, err := s.settle(ctx, c, req.IsThread, len(result.Output.Segments))
	if err != nil {
		return nil, err
	}

	resp := response(result.Output, req.IsThread, c, used, p)
	resp.Quality = &transfer.QualityReport{
		Passed:  result.Report.Passed,
		Retried: result.Retried,
		Issues:  result.Report.Issues,
	}
	return resp, nil
}

// prepare resolves scope, key source and candidates. Nothing here spends.
func (s *generationService) prepare(ctx context.Context, caller Caller, keySource string) (*prepared, error) {
	scope, err := s.credits.ResolveScope(ctx, caller.UserID, caller.TeamID)
	if err != nil {
		return nil, err
	}

	prefs, err := s.settings.Get(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	var source provider.KeySource
	switch strings.ToLower(strings.TrimSpace(keySource)) {
	case "":
		source = provider.KeySourcePlatform
		if prefs.PreferOwnKeys {
			source = provider.KeySourceBYOK
		}
	case string(provider.KeySourcePlatform):
		source = provider.KeySourcePlatform
	case string(provider.KeySourceBYOK):
		source = provider.KeySourceBYOK
	default:
		return nil, apperr.Validation("keySource", "must be platform or byok")
	}

	route := provider.RouteRequest{Source: source, Tier: s.plans.Tier(ctx, caller.UserID)}
	if source == provider.KeySourceBYOK {
		if route.UserKeys, err = s.keys.Keys(ctx, caller.UserID); err != nil {
			return nil, err
		}
	}

	candidates, err := s.router.Route(ctx, route)
	if err != nil {
		return nil, err
	}

	return &prepared{scope: scope, source: source, candidates: candidates, longPost: prefs.LongPostEnabled}, nil
}

// Cost prices a request: the per-item rate times the item count, or the
// long-post rate for a single post when long posts are on.
func Cost(isThread, longPost bool, items int) models.Credits {
	if !isThread {
		if longPost {
			return LongPostRate
		}
		return ThreadItemRate
	}
	if items < 1 {
		items = 1
	}
	return ThreadItemRate * models.Credits(items)
}

func (s *generationService) reserve(ctx context.Context, caller Caller, p *prepared, isThread bool, estimated int) (*charge, error) {
	c := &charge{
		scope:     p.scope,
		userID:    caller.UserID,
		ref:       "generation:" + uuid.NewString(),
		estimated: estimated,
		longPost:  p.longPost,
	}
	c.estimate = Cost(isThread, p.longPost, estimated)

	if _, err := s.credits.Deduct(ctx, c.scope, c.userID, c.estimate, models.OpGenerationEstimate, c.ref); err != nil {
		return nil, err
	}
	return c, nil
}

// release refunds the whole estimate after a failed generation. It runs
// even when the request context has been cancelled.
func (s *generationService) release(ctx context.Context, c *charge, cause error) {
	ctx = context.WithoutCancel(ctx)
	zap.L().Warn("generation failed, refunding estimate",
		zap.String("reference_id", c.ref),
		zap.Stringer("amount", c.estimate),
		zap.Error(cause))

	if _, err := s.credits.Refund(ctx, c.scope, c.userID, c.estimate, models.OpGenerationRefund, c.ref); err != nil {
		zap.L().Error("refund generation estimate", zap.String("reference_id", c.ref), zap.Error(err))
	}
}

// settle reconciles the estimate with the actual item count and returns what
// the request finally cost.
func (s *generationService) settle(ctx context.Context, c *charge, isThread bool, items int) (models.Credits, error) {
	ctx = context.WithoutCancel(ctx)
	actual := Cost(isThread, c.longPost, items)
	diff := actual - c.estimate

	switch {
	case diff > 0:
		_, err := s.credits.Deduct(ctx, c.scope, c.userID, diff, models.OpGenerationAdjustment, c.ref)
		if err == nil {
			break
		}
		s.release(ctx, c, err)

		var insufficient *apperr.InsufficientCreditsError
		if errors.As(err, &insufficient) {
			return 0, &apperr.InsufficientCreditsError{
				Required:  int64(actual),
				Available: insufficient.Available + int64(c.estimate),
				ScopeType: c.scope.Type,
				ScopeID:   c.scope.ID,
			}
		}
		return 0, err

	case diff < 0:
		if _, err := s.credits.Refund(ctx, c.scope, c.userID, -diff, models.OpGenerationAdjustment, c.ref); err != nil {
			// The caller was overcharged; keep the content and report what
			// was actually taken.
			zap.L().Error("refund generation excess", zap.String("reference_id", c.ref), zap.Error(err))
			return c.estimate, nil
		}
	}
	return actual, nil
}

func response(out *generation.Output, isThread bool, c *charge, used models.Credits, p *prepared) *transfer.GenerateResponse {
	resp := &transfer.GenerateResponse{
		Content:          out.Content,
		Provider:         out.Provider,
		ThreadCount:      len(out.Segments),
		EstimatedThreads: c.estimated,
		CreditsUsed:      used,
		CreditSource:     p.scope.Type,
		KeySource:        string(out.Source),
	}
	if isThread {
		resp.Thread = out.Segments
	}
	return resp
}

// scheduleGenerated schedules freshly generated content. Failure leaves the
// generation itself intact and is reported on the response.
func (s *generationService) scheduleGenerated(ctx context.Context, caller Caller, scope models.CreditScope, opts *transfer.ScheduleOptions, out *generation.Output, isThread bool, used models.Credits, resp *transfer.GenerateResponse) {
	items := []string{out.Content}
	if isThread {
		items = out.Segments
	}

	result, err := s.schedule.Create(ctx, ScheduleInput{
		UserID:       caller.UserID,
		Scope:        scope,
		AccountID:    opts.AccountID,
		Items:        items,
		ScheduledFor: opts.ScheduledFor,
		Timezone:     opts.Timezone,
		MediaURLs:    opts.MediaURLs,
		CreditsSpent: used,
	})
	if err != nil {
		zap.L().Warn("schedule generated content", zap.Int64("user_id", caller.UserID), zap.Error(err))
		resp.ScheduleError = err.Error()
		return
	}
	resp.Scheduled = true
	resp.ScheduledResult = result
}
