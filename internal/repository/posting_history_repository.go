package repository

import (
	"context"
	"database/sql"

	"github.com/maheshrc27/threadcraft/internal/models"
	"go.uber.org/zap"
)

type PostingHistoryRepository interface {
	Create(ctx context.Context, ph *models.PostingHistory) (int64, error)
	ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.PostingHistory, error)
	ListByScheduledPost(ctx context.Context, scheduledPostID int64) ([]*models.PostingHistory, error)
}

type postingHistoryRepository struct {
	db *sql.DB
}

func NewPostingHistoryRepository(db *sql.DB) PostingHistoryRepository {
	return &postingHistoryRepository{db: db}
}

func (r *postingHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	query := `
		INSERT INTO posting_history (user_id, scheduled_post_id, account_id, position, external_id, content)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, ph.UserID, ph.ScheduledPostID, ph.AccountID, ph.Position, ph.ExternalID, ph.Content).Scan(&id)
	if err != nil {
		zap.L().Error("insert posting history", zap.Int64("scheduled_post_id", ph.ScheduledPostID), zap.Error(err))
		return 0, err
	}

	return id, nil
}

func (r *postingHistoryRepository) ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.PostingHistory, error) {
	query := `
		SELECT id, user_id, scheduled_post_id, account_id, position, external_id, content, created_at
		FROM posting_history WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	return r.list(ctx, query, userID, limit)
}

func (r *postingHistoryRepository) ListByScheduledPost(ctx context.Context, scheduledPostID int64) ([]*models.PostingHistory, error) {
	query := `
		SELECT id, user_id, scheduled_post_id, account_id, position, external_id, content, created_at
		FROM posting_history WHERE scheduled_post_id = $1
		ORDER BY position
	`
	return r.list(ctx, query, scheduledPostID)
}

func (r *postingHistoryRepository) list(ctx context.Context, query string, args ...any) ([]*models.PostingHistory, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		zap.L().Error("list posting history", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var phs []*models.PostingHistory
	for rows.Next() {
		var ph models.PostingHistory
		err := rows.Scan(&ph.ID, &ph.UserID, &ph.ScheduledPostID, &ph.AccountID, &ph.Position, &ph.ExternalID, &ph.Content, &ph.CreatedAt)
		if err != nil {
			zap.L().Error("scan posting history", zap.Error(err))
			return nil, err
		}
		phs = append(phs, &ph)
	}
	return phs, rows.Err()
}
