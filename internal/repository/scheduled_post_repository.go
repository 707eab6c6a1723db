package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/maheshrc27/threadcraft/internal/models"
	"go.uber.org/zap"
)

// PostOutcome is the terminal state the publisher records for a post.
type PostOutcome struct {
	Status       string
	ErrorMessage string
	Retryable    bool
	PostedAt     *time.Time
}

type ScheduledPostRepository interface {
	Create(ctx context.Context, p *models.ScheduledPost) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	ListPending(ctx context.Context) ([]*models.ScheduledPost, error)
	Claim(ctx context.Context, id int64, now time.Time) (bool, error)
	Finish(ctx context.Context, id int64, outcome PostOutcome) error
	ExpireOverdue(ctx context.Context, cutoff time.Time) ([]int64, error)
	FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error)
	DeletePending(ctx context.Context, id, userID int64) (bool, error)
}

type scheduledPostRepository struct {
	db *sql.DB
}

func NewScheduledPostRepository(db *sql.DB) ScheduledPostRepository {
	return &scheduledPostRepository{db: db}
}

const scheduledPostColumns = `id, user_id, team_id, account_id, content, thread, media_urls, scheduled_for, timezone,
	status, error_message, retryable, credits_spent, posted_at, claimed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScheduledPost(row rowScanner) (*models.ScheduledPost, error) {
	var p models.ScheduledPost
	err := row.Scan(&p.ID, &p.UserID, &p.TeamID, &p.AccountID, &p.Content, &p.Thread, &p.MediaURLs,
		&p.ScheduledFor, &p.Timezone, &p.Status, &p.ErrorMessage, &p.Retryable, &p.CreditsSpent,
		&p.PostedAt, &p.ClaimedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *scheduledPostRepository) Create(ctx context.Context, p *models.ScheduledPost) (int64, error) {
	query := `
		INSERT INTO scheduled_posts (user_id, team_id, account_id, content, thread, media_urls, scheduled_for, timezone, status, credits_spent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	args := []any{p.UserID, p.TeamID, p.AccountID, p.Content, p.Thread, p.MediaURLs, p.ScheduledFor, p.Timezone, models.PostStatusPending, p.CreditsSpent}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		zap.L().Error("insert scheduled post", zap.Error(err))
		return 0, err
	}
	return id, nil
}

func (r *scheduledPostRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE id = $1`

	p, err := scanScheduledPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("get scheduled post", zap.Int64("scheduled_post_id", id), zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (r *scheduledPostRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE user_id = $1 ORDER BY scheduled_for DESC`
	return r.list(ctx, query, userID)
}

func (r *scheduledPostRepository) ListPending(ctx context.Context) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE status = $1 ORDER BY scheduled_for`
	return r.list(ctx, query, models.PostStatusPending)
}

func (r *scheduledPostRepository) list(ctx context.Context, query string, args ...any) ([]*models.ScheduledPost, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		zap.L().Error("list scheduled posts", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		p, err := scanScheduledPost(rows)
		if err != nil {
			zap.L().Error("scan scheduled post", zap.Error(err))
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// Claim moves a post into processing if it is still pending, or failed with a
// retryable error. It reports whether this caller won the update. Two workers
// racing on one row are separated by the conditional UPDATE only; there is no
// lease, which is why FailStale exists.
func (r *scheduledPostRepository) Claim(ctx context.Context, id int64, now time.Time) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $2, claimed_at = $3, retryable = FALSE, updated_at = $3
		WHERE id = $1 AND (status = $4 OR (status = $5 AND retryable))
	`
	res, err := r.db.ExecContext(ctx, query, id, models.PostStatusProcessing, now, models.PostStatusPending, models.PostStatusFailed)
	if err != nil {
		zap.L().Error("claim scheduled post", zap.Int64("scheduled_post_id", id), zap.Error(err))
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Finish records a terminal outcome for a post the caller has claimed.
func (r *scheduledPostRepository) Finish(ctx context.Context, id int64, o PostOutcome) error {
	query := `
		UPDATE scheduled_posts
		SET status = $2, error_message = $3, retryable = $4, posted_at = COALESCE($5, posted_at), updated_at = NOW()
		WHERE id = $1 AND status = $6
	`
	var postedAt sql.NullTime
	if o.PostedAt != nil {
		postedAt = sql.NullTime{Time: *o.PostedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query, id, o.Status, o.ErrorMessage, o.Retryable, postedAt, models.PostStatusProcessing)
	if err != nil {
		zap.L().Error("finish scheduled post", zap.Int64("scheduled_post_id", id), zap.String("status", o.Status), zap.Error(err))
		return err
	}
	return nil
}

// ExpireOverdue marks pending posts scheduled before cutoff as expired and
// returns their ids.
func (r *scheduledPostRepository) ExpireOverdue(ctx context.Context, cutoff time.Time) ([]int64, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1, error_message = 'scheduled time passed without publishing', updated_at = NOW()
		WHERE status = $2 AND scheduled_for < $3
		RETURNING id
	`
	rows, err := r.db.QueryContext(ctx, query, models.PostStatusExpired, models.PostStatusPending, cutoff)
	if err != nil {
		zap.L().Error("expire overdue posts", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FailStale fails posts stuck in processing since before cutoff, which means
// the worker that claimed them went away.
func (r *scheduledPostRepository) FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE status = $3 AND claimed_at < $4
	`
	res, err := r.db.ExecContext(ctx, query, models.PostStatusFailed, message, models.PostStatusProcessing, cutoff)
	if err != nil {
		zap.L().Error("fail stale posts", zap.Error(err))
		return 0, err
	}
	return res.RowsAffected()
}

// DeletePending removes a post only while it is still pending and owned by
// userID.
func (r *scheduledPostRepository) DeletePending(ctx context.Context, id, userID int64) (bool, error) {
	query := `DELETE FROM scheduled_posts WHERE id = $1 AND user_id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, id, userID, models.PostStatusPending)
	if err != nil {
		zap.L().Error("delete scheduled post", zap.Int64("scheduled_post_id", id), zap.Error(err))
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
