package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/metrics"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/repository"
	"github.com/maheshrc27/threadcraft/internal/thread"
	"github.com/maheshrc27/threadcraft/internal/transfer"
	"go.uber.org/zap"
)

const (
	// LocalTimeLayout is accepted for scheduledFor alongside RFC3339 and is
	// read in the request's timezone.
	LocalTimeLayout = "2006-01-02T15:04"

	MaxThreadItems  = 25
	MaxLongPostLen  = 25000
	DefaultHistory  = 50
	MaxHistoryItems = 200
)

// JobEnqueuer is the delayed job queue as seen by scheduling.
type JobEnqueuer interface {
	EnqueuePublish(ctx context.Context, scheduledPostID int64, delay time.Duration) error
	CancelPublish(ctx context.Context, scheduledPostID int64) error
}

// ScheduleInput is a validated-later request to publish content.
type ScheduleInput struct {
	UserID       int64
	Scope        models.CreditScope
	AccountID    int64
	Items        []string
	ScheduledFor string
	Timezone     string
	MediaURLs    []string
	CreditsSpent models.Credits
}

type ScheduleService interface {
	Create(ctx context.Context, in ScheduleInput) (*transfer.ScheduleResult, error)
	List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	Get(ctx context.Context, userID, id int64) (*models.ScheduledPost, error)
	Cancel(ctx context.Context, userID, id int64) error
	History(ctx context.Context, userID int64, limit int) ([]*models.PostingHistory, error)
}

type scheduleService struct {
	sp      repository.ScheduledPostRepository
	sa      repository.SocialAccountRepository
	ph      repository.PostingHistoryRepository
	credits CreditService
	queue   JobEnqueuer
	now     func() time.Time
}

func NewScheduleService(
	sp repository.ScheduledPostRepository,
	sa repository.SocialAccountRepository,
	ph repository.PostingHistoryRepository,
	credits CreditService,
	queue JobEnqueuer) ScheduleService {
	return &scheduleService{
		sp:      sp,
		sa:      sa,
		ph:      ph,
		credits: credits,
		queue:   queue,
		now:     time.Now,
	}
}

// PostReference is the ledger reference for spend tied to a scheduled post.
func PostReference(id int64) string {
	return "scheduled_post:" + strconv.FormatInt(id, 10)
}

func (s *scheduleService) Create(ctx context.Context, in ScheduleInput) (*transfer.ScheduleResult, error) {
	items, err := normalizeItems(in.Items)
	if err != nil {
		return nil, err
	}

	tz := strings.TrimSpace(in.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	at, err := ParseScheduledFor(in.ScheduledFor, tz)
	if err != nil {
		return nil, err
	}

	if in.AccountID == 0 {
		return nil, apperr.Validation("accountId", "is required")
	}
	acc, err := s.sa.GetByID(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}
	if acc == nil || acc.UserID != in.UserID {
		return nil, apperr.Validation("accountId", "social account does not exist")
	}
	if acc.Platform != models.PlatformX {
		return nil, apperr.Validation("accountId", "account cannot publish posts")
	}

	post := &models.ScheduledPost{
		UserID:       in.UserID,
		AccountID:    in.AccountID,
		Content:      items[0],
		Thread:       items[1:],
		MediaURLs:    in.MediaURLs,
		ScheduledFor: at.UTC(),
		Timezone:     tz,
		CreditsSpent: in.CreditsSpent,
	}
	if post.MediaURLs == nil {
		post.MediaURLs = []string{}
	}
	if in.Scope.Type == models.ScopeTeam {
		post.TeamID = sql.NullInt64{Int64: in.Scope.ID, Valid: true}
	}

	id, err := s.sp.Create(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("save scheduled post: %w", err)
	}
	metrics.ScheduledPosts.WithLabelValues(models.PostStatusPending).Inc()

	delay := post.ScheduledFor.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	if err := s.queue.EnqueuePublish(ctx, id, delay); err != nil {
		// The row is durable; startup reconciliation enqueues it again.
		zap.L().Error("enqueue scheduled post", zap.Int64("scheduled_post_id", id), zap.Error(err))
	}

	zap.L().Info("scheduled post",
		zap.Int64("scheduled_post_id", id),
		zap.Int64("user_id", in.UserID),
		zap.Int("items", len(items)),
		zap.Time("scheduled_for", post.ScheduledFor),
		zap.Duration("delay", delay))

	return &transfer.ScheduleResult{ScheduledID: id, ScheduledTime: post.ScheduledFor}, nil
}

func (s *scheduleService) List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	return s.sp.ListByUserID(ctx, userID)
}

func (s *scheduleService) Get(ctx context.Context, userID, id int64) (*models.ScheduledPost, error) {
	post, err := s.sp.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil || post.UserID != userID {
		return nil, apperr.ErrNotFound
	}
	return post, nil
}

// Cancel removes a post that has not been claimed yet and returns any credit
// spent on it.
func (s *scheduleService) Cancel(ctx context.Context, userID, id int64) error {
	if id == 0 {
		return apperr.Validation("scheduledId", "is required")
	}

	post, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	deleted, err := s.sp.DeletePending(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		current, err := s.sp.GetByID(ctx, id)
		if err == nil && current != nil {
			return apperr.Validation("scheduledId", "post is already "+current.Status)
		}
		return apperr.ErrNotFound
	}

	if err := s.queue.CancelPublish(ctx, id); err != nil {
		zap.L().Warn("cancel queued job", zap.Int64("scheduled_post_id", id), zap.Error(err))
	}

	if _, err := s.credits.RefundOnce(ctx, post.Scope(), userID, post.CreditsSpent, models.OpCancelRefund, PostReference(id)); err != nil {
		zap.L().Error("refund cancelled post", zap.Int64("scheduled_post_id", id), zap.Error(err))
		return err
	}

	zap.L().Info("cancelled scheduled post", zap.Int64("scheduled_post_id", id), zap.Int64("user_id", userID))
	return nil
}

func (s *scheduleService) History(ctx context.Context, userID int64, limit int) ([]*models.PostingHistory, error) {
	if limit <= 0 {
		limit = DefaultHistory
	}
	if limit > MaxHistoryItems {
		limit = MaxHistoryItems
	}
	return s.ph.ListByUserID(ctx, userID, limit)
}

// ParseScheduledFor reads RFC3339, or LocalTimeLayout in the named zone.
func ParseScheduledFor(value, timezone string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, apperr.Validation("scheduledFor", "is required")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, apperr.Validation("timezone", "unknown timezone "+timezone)
	}
	t, err := time.ParseInLocation(LocalTimeLayout, value, loc)
	if err != nil {
		return time.Time{}, apperr.Validation("scheduledFor", "must be RFC3339 or "+LocalTimeLayout)
	}
	return t, nil
}

// normalizeItems trims every item and rejects empty or oversized ones. A
// single item may be a long post; thread items must fit one post each.
func normalizeItems(items []string) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	switch {
	case len(out) == 0:
		return nil, apperr.Validation("content", "is required")
	case len(out) > MaxThreadItems:
		return nil, apperr.Validation("thread", fmt.Sprintf("at most %d items are allowed", MaxThreadItems))
	}

	limit := thread.MaxSegmentLen
	if len(out) == 1 {
		limit = MaxLongPostLen
	}
	for i, item := range out {
		if utf8.RuneCountInString(item) > limit {
			return nil, apperr.Validation("thread", fmt.Sprintf("item %d exceeds %d characters", i+1, limit))
		}
	}
	return out, nil
}
