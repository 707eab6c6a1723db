package repository

import (
	"context"
	"database/sql"

	"github.com/maheshrc27/threadcraft/internal/models"
	"go.uber.org/zap"
)

type ProviderKeyRepository interface {
	ListByUserID(ctx context.Context, userID int64) ([]*models.ProviderKey, error)
	Upsert(ctx context.Context, key *models.ProviderKey) (int64, error)
	CheckByUserID(ctx context.Context, keyID, userID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type providerKeyRepository struct {
	db *sql.DB
}

func NewProviderKeyRepository(db *sql.DB) ProviderKeyRepository {
	return &providerKeyRepository{db: db}
}

func (r *providerKeyRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.ProviderKey, error) {
	query := `SELECT id, user_id, provider, encrypted_key, hint, created_at FROM provider_keys WHERE user_id = $1 ORDER BY provider`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		zap.L().Error("list provider keys", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var keys []*models.ProviderKey
	for rows.Next() {
		var k models.ProviderKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Provider, &k.EncryptedKey, &k.Hint, &k.CreatedAt); err != nil {
			zap.L().Error("scan provider key", zap.Error(err))
			return nil, err
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// Upsert stores one key per user and provider, replacing an older one.
func (r *providerKeyRepository) Upsert(ctx context.Context, key *models.ProviderKey) (int64, error) {
	query := `
		INSERT INTO provider_keys (user_id, provider, encrypted_key, hint)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, provider) DO UPDATE
		SET encrypted_key = EXCLUDED.encrypted_key, hint = EXCLUDED.hint, created_at = NOW()
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, key.UserID, key.Provider, key.EncryptedKey, key.Hint).Scan(&id)
	if err != nil {
		zap.L().Error("upsert provider key", zap.Int64("user_id", key.UserID), zap.String("provider", key.Provider), zap.Error(err))
		return 0, err
	}
	return id, nil
}

func (r *providerKeyRepository) CheckByUserID(ctx context.Context, keyID, userID int64) (bool, error) {
	query := "SELECT 1 FROM provider_keys WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, keyID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		zap.L().Error("check provider key owner", zap.Error(err))
		return false, err
	}

	return result == 1, nil
}

func (r *providerKeyRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM provider_keys WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		zap.L().Error("remove provider key", zap.Int64("key_id", id), zap.Error(err))
		return err
	}
	return nil
}
