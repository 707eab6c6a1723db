package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/maheshrc27/threadcraft/internal/models"
	"go.uber.org/zap"
)

type SocialAccountRepository interface {
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	ListExpiring(ctx context.Context, platform string, before time.Time) ([]*models.SocialAccount, error)
	CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error)
	SetToken(ctx context.Context, id int64, oldAccessToken string, sa *models.SocialAccount) error
	ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	// Upsert stores a freshly connected account. Reconnecting the same
	// platform account replaces its tokens; it returns the row id.
	Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error)
	Remove(ctx context.Context, id, userID int64) (bool, error)
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const socialAccountColumns = `id, user_id, platform, account_id, account_name, account_username,
	access_token, refresh_token, token_expires_at, account_status, created_at, updated_at`

func scanSocialAccount(row rowScanner) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	err := row.Scan(&sa.ID, &sa.UserID, &sa.Platform, &sa.AccountID, &sa.AccountName, &sa.AccountUsername,
		&sa.AccessToken, &sa.RefreshToken, &sa.TokenExpiresAt, &sa.AccountStatus, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE id = $1`

	sa, err := scanSocialAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("get social account", zap.Int64("account_id", id), zap.Error(err))
		return nil, err
	}
	return sa, nil
}

// ListExpiring returns accounts on a platform whose token expires before the
// given time, including ones already expired.
func (r *socialAccountRepository) ListExpiring(ctx context.Context, platform string, before time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + `
		FROM social_accounts
		WHERE platform = $1 AND token_expires_at < $2 AND refresh_token <> ''`
	rows, err := r.db.QueryContext(ctx, query, platform, before)
	if err != nil {
		zap.L().Error("list expiring social accounts", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanSocialAccount(rows)
		if err != nil {
			zap.L().Error("scan social account", zap.Error(err))
			return nil, err
		}
		accounts = append(accounts, sa)
	}
	return accounts, rows.Err()
}

func (r *socialAccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		zap.L().Error("list social accounts", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	accounts := []*models.SocialAccount{}
	for rows.Next() {
		sa, err := scanSocialAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, sa)
	}
	return accounts, rows.Err()
}

func (r *socialAccountRepository) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	query := `
		INSERT INTO social_accounts (user_id, platform, account_id, account_name, account_username,
			access_token, refresh_token, token_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (platform, account_id) DO UPDATE
		SET user_id = EXCLUDED.user_id,
			account_name = EXCLUDED.account_name,
			account_username = EXCLUDED.account_username,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			account_status = 'active',
			updated_at = NOW()
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, sa.UserID, sa.Platform, sa.AccountID, sa.AccountName, sa.AccountUsername,
		sa.AccessToken, sa.RefreshToken, sa.TokenExpiresAt).Scan(&id)
	if err != nil {
		zap.L().Error("upsert social account", zap.Int64("user_id", sa.UserID), zap.Error(err))
		return 0, err
	}
	return id, nil
}

func (r *socialAccountRepository) Remove(ctx context.Context, id, userID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM social_accounts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		zap.L().Error("remove social account", zap.Int64("account_id", id), zap.Error(err))
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *socialAccountRepository) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	query := "SELECT 1 FROM social_accounts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, accountID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		zap.L().Error("check social account owner", zap.Error(err))
		return false, err
	}

	return result == 1, nil
}

// SetToken swaps in refreshed tokens, but only if the stored access token is
// still oldAccessToken so two refreshers cannot overwrite each other.
func (r *socialAccountRepository) SetToken(ctx context.Context, id int64, oldAccessToken string, sa *models.SocialAccount) error {
	query := `
		UPDATE social_accounts
		SET
			access_token = COALESCE(NULLIF($3, ''), access_token),
			refresh_token = COALESCE(NULLIF($4, ''), refresh_token),
			token_expires_at = $5,
			account_status = 'active',
			updated_at = NOW()
		WHERE id = $1 AND access_token = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, oldAccessToken, sa.AccessToken, sa.RefreshToken, sa.TokenExpiresAt)
	if err != nil {
		zap.L().Error("update social account token", zap.Int64("account_id", id), zap.Error(err))
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return errors.New("token was changed concurrently or account no longer exists")
	}
	return nil
}
