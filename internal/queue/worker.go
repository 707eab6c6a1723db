package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/metrics"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/repository"
	"github.com/maheshrc27/threadcraft/internal/retry"
	"github.com/maheshrc27/threadcraft/internal/service"
	"go.uber.org/zap"
)

// Publisher posts a claimed ScheduledPost to X: the main item, then each
// thread reply in order, each replying to the one before.
type Publisher struct {
	posts    repository.ScheduledPostRepository
	accounts repository.SocialAccountRepository
	history  repository.PostingHistoryRepository
	credits  service.CreditService
	tokens   service.XTokenService
	x        service.XClient

	ItemDelay time.Duration
	Sleep     func(ctx context.Context, d time.Duration) error
	Now       func() time.Time
}

func NewPublisher(
	posts repository.ScheduledPostRepository,
	accounts repository.SocialAccountRepository,
	history repository.PostingHistoryRepository,
	credits service.CreditService,
	tokens service.XTokenService,
	x service.XClient,
	itemDelay time.Duration) *Publisher {
	return &Publisher{
		posts:     posts,
		accounts:  accounts,
		history:   history,
		credits:   credits,
		tokens:    tokens,
		x:         x,
		ItemDelay: itemDelay,
		Sleep:     retry.Sleep,
		Now:       time.Now,
	}
}

// HandleSchedulePostTask is the asynq handler for TaskTypeSchedulePost.
func (p *Publisher) HandleSchedulePostTask(ctx context.Context, task *asynq.Task) error {
	return p.HandlePayload(ctx, task.Payload())
}

// HandlePayload decodes a job body and publishes the post it names. Only a
// rate limit comes back as a retryable error.
func (p *Publisher) HandlePayload(ctx context.Context, payload []byte) error {
	job, err := DecodePayload(payload)
	if err != nil {
		zap.L().Error("drop malformed publish job", zap.ByteString("payload", payload), zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return p.Publish(ctx, job.ScheduledTweetID)
}

func (p *Publisher) Publish(ctx context.Context, id int64) error {
	post, err := p.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if post == nil {
		zap.L().Info("scheduled post no longer exists", zap.Int64("scheduled_post_id", id))
		return nil
	}

	claimed, err := p.posts.Claim(ctx, id, p.Now())
	if err != nil {
		return err
	}
	if !claimed {
		zap.L().Info("scheduled post not claimable", zap.Int64("scheduled_post_id", id), zap.String("status", post.Status))
		return nil
	}

	log := zap.L().With(zap.Int64("scheduled_post_id", id), zap.Int64("account_id", post.AccountID))
	log.Info("publishing scheduled post", zap.Int("items", len(post.Items())))

	token, err := p.authenticate(ctx, post)
	if err != nil {
		return p.fail(ctx, post, err)
	}

	mediaIDs := make([]string, 0, len(post.MediaURLs))
	for _, url := range post.MediaURLs {
		mediaID, err := p.x.UploadMedia(ctx, token, url)
		if err != nil {
			return p.fail(ctx, post, err)
		}
		mediaIDs = append(mediaIDs, mediaID)
	}

	items := post.Items()
	prevID, err := p.x.PostTweet(ctx, token, items[0], "", mediaIDs)
	if err != nil {
		return p.fail(ctx, post, err)
	}
	p.record(ctx, post, 0, prevID, items[0])

	outcome := repository.PostOutcome{Status: models.PostStatusCompleted}
	for i := 1; i < len(items); i++ {
		if err := p.Sleep(ctx, p.ItemDelay); err != nil {
			outcome = partial(i, len(items), err)
			break
		}
		replyID, err := p.x.PostTweet(ctx, token, items[i], prevID, nil)
		if err != nil {
			outcome = partial(i, len(items), err)
			break
		}
		p.record(ctx, post, i, replyID, items[i])
		prevID = replyID
	}

	now := p.Now()
	outcome.PostedAt = &now
	if outcome.Status == models.PostStatusPartiallyCompleted {
		log.Warn("thread stopped early", zap.String("error", outcome.ErrorMessage))
	}
	return p.finish(ctx, post, outcome)
}

// authenticate returns a usable access token, refreshing it if needed, and
// probes it against X.
func (p *Publisher) authenticate(ctx context.Context, post *models.ScheduledPost) (string, error) {
	acc, err := p.accounts.GetByID(ctx, post.AccountID)
	if err != nil {
		return "", err
	}
	if acc == nil || acc.UserID != post.UserID {
		return "", &apperr.ReconnectRequiredError{AccountID: post.AccountID, Err: errors.New("account is not connected")}
	}

	token, err := p.tokens.AccessToken(ctx, acc)
	if err != nil {
		return "", err
	}
	if err := p.x.VerifyCredentials(ctx, token); err != nil {
		return "", err
	}
	return token, nil
}

func partial(index, total int, err error) repository.PostOutcome {
	return repository.PostOutcome{
		Status:       models.PostStatusPartiallyCompleted,
		ErrorMessage: fmt.Sprintf("thread item %d of %d failed: %v", index+1, total, err),
	}
}

// fail records a post that published nothing and decides whether the queue
// should see the error.
func (p *Publisher) fail(ctx context.Context, post *models.ScheduledPost, err error) error {
	log := zap.L().With(zap.Int64("scheduled_post_id", post.ID))

	var (
		reconnect *apperr.ReconnectRequiredError
		duplicate *apperr.DuplicateContentError
		limited   *apperr.RateLimitedError
	)
	switch {
	case errors.As(err, &reconnect):
		if reconnect.AccountID == 0 {
			reconnect.AccountID = post.AccountID
		}
		log.Warn("account needs reconnecting", zap.Error(err))
		return p.finish(ctx, post, repository.PostOutcome{Status: models.PostStatusFailed, ErrorMessage: reconnect.Error()})

	case errors.As(err, &duplicate):
		log.Warn("post rejected as duplicate", zap.Error(err))
		return p.finish(ctx, post, repository.PostOutcome{Status: models.PostStatusFailed, ErrorMessage: duplicate.Error()})

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn("publishing interrupted before anything was posted", zap.Error(err))
		if ferr := p.finish(ctx, post, repository.PostOutcome{Status: models.PostStatusFailed, ErrorMessage: err.Error(), Retryable: true}); ferr != nil {
			return ferr
		}
		return err

	case errors.As(err, &limited):
		log.Warn("rate limited, leaving post for a later attempt", zap.Duration("retry_after", limited.RetryAfter))
		if ferr := p.finish(ctx, post, repository.PostOutcome{Status: models.PostStatusFailed, ErrorMessage: limited.Error(), Retryable: true}); ferr != nil {
			return ferr
		}
		return limited
	}

	log.Error("publishing failed", zap.Error(err))
	if ferr := p.finish(ctx, post, repository.PostOutcome{Status: models.PostStatusFailed, ErrorMessage: err.Error()}); ferr != nil {
		return ferr
	}
	p.refund(ctx, post)
	return nil
}

// finish, record and refund write what already happened on X, so they outlive
// a cancelled job context.
func (p *Publisher) finish(ctx context.Context, post *models.ScheduledPost, outcome repository.PostOutcome) error {
	ctx = context.WithoutCancel(ctx)
	if err := p.posts.Finish(ctx, post.ID, outcome); err != nil {
		return err
	}
	metrics.ScheduledPosts.WithLabelValues(outcome.Status).Inc()
	zap.L().Info("scheduled post finished",
		zap.Int64("scheduled_post_id", post.ID),
		zap.String("status", outcome.Status))
	return nil
}

func (p *Publisher) record(ctx context.Context, post *models.ScheduledPost, position int, externalID, content string) {
	ctx = context.WithoutCancel(ctx)
	_, err := p.history.Create(ctx, &models.PostingHistory{
		UserID:          post.UserID,
		ScheduledPostID: post.ID,
		AccountID:       post.AccountID,
		Position:        position,
		ExternalID:      externalID,
		Content:         content,
	})
	if err != nil {
		zap.L().Error("record posting history",
			zap.Int64("scheduled_post_id", post.ID),
			zap.Int("position", position),
			zap.Error(err))
	}
}

func (p *Publisher) refund(ctx context.Context, post *models.ScheduledPost) {
	ctx = context.WithoutCancel(ctx)
	refunded, err := p.credits.RefundOnce(ctx, post.Scope(), post.UserID, post.CreditsSpent, models.OpPublishRefund, service.PostReference(post.ID))
	if err != nil {
		zap.L().Error("refund failed post", zap.Int64("scheduled_post_id", post.ID), zap.Error(err))
		return
	}
	if refunded {
		zap.L().Info("refunded failed post",
			zap.Int64("scheduled_post_id", post.ID),
			zap.Stringer("amount", post.CreditsSpent))
	}
}
