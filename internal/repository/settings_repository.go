package repository

import (
	"context"
	"database/sql"

	"github.com/maheshrc27/threadcraft/internal/models"
	"go.uber.org/zap"
)

type SettingsRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.Settings, error)
	Upsert(ctx context.Context, s *models.Settings) error
}

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetByUserID(ctx context.Context, userID int64) (*models.Settings, error) {
	query := `SELECT user_id, long_post_enabled, prefer_own_keys, updated_at FROM settings WHERE user_id = $1`

	var s models.Settings
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&s.UserID, &s.LongPostEnabled, &s.PreferOwnKeys, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("get settings", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, s *models.Settings) error {
	query := `
		INSERT INTO settings (user_id, long_post_enabled, prefer_own_keys, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET long_post_enabled = EXCLUDED.long_post_enabled,
			prefer_own_keys = EXCLUDED.prefer_own_keys,
			updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, s.UserID, s.LongPostEnabled, s.PreferOwnKeys); err != nil {
		zap.L().Error("upsert settings", zap.Int64("user_id", s.UserID), zap.Error(err))
		return err
	}
	return nil
}
