package repository

import (
	"context"
	"database/sql"

	"github.com/maheshrc27/threadcraft/internal/models"
	"go.uber.org/zap"
)

type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.Subscription, error)
	Upsert(ctx context.Context, s *models.Subscription) error
}

type subscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) GetByUserID(ctx context.Context, userID int64) (*models.Subscription, error) {
	query := `
		SELECT id, user_id, plan, status, subscription_end_date
		FROM subscriptions WHERE user_id = $1
	`

	var s models.Subscription
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&s.ID, &s.UserID, &s.Plan, &s.Status, &s.SubscriptionEndDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("get subscription", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	return &s, nil
}

func (r *subscriptionRepository) Upsert(ctx context.Context, s *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, plan, status, subscription_end_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			subscription_end_date = EXCLUDED.subscription_end_date,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, s.UserID, s.Plan, s.Status, s.SubscriptionEndDate)
	if err != nil {
		zap.L().Error("upsert subscription", zap.Int64("user_id", s.UserID), zap.Error(err))
		return err
	}
	return nil
}
