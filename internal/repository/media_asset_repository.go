package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maheshrc27/threadcraft/internal/models"
	"go.uber.org/zap"
)

type MediaAssetRepository interface {
	Create(ctx context.Context, ma *models.MediaAsset) (int64, error)
}

type mediaAssetRepository struct {
	db *sql.DB
}

func NewMediaAssetRepository(db *sql.DB) MediaAssetRepository {
	return &mediaAssetRepository{db: db}
}

func (r *mediaAssetRepository) Create(ctx context.Context, ma *models.MediaAsset) (int64, error) {
	query := `
		INSERT INTO media_assets (user_id, file_name, file_type, file_size, file_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query, ma.UserID, ma.FileName, ma.FileType, ma.FileSize, ma.FileURL).
		Scan(&ma.ID, &ma.CreatedAt)
	if err != nil {
		zap.L().Error("insert media asset", zap.Int64("user_id", ma.UserID), zap.Error(err))
		return 0, fmt.Errorf("insert media asset: %w", err)
	}
	return ma.ID, nil
}
