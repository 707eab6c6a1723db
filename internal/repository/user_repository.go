package repository

import (
	"context"
	"database/sql"

	"github.com/maheshrc27/threadcraft/internal/models"
	"go.uber.org/zap"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	// Upsert creates the user for an email or refreshes its profile, and
	// returns the user id either way.
	Upsert(ctx context.Context, user *models.User) (int64, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := "SELECT id, google_id, email, name, profile_picture, created_at FROM users WHERE id = $1"
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.GoogleID, &user.Email, &user.Name, &user.ProfilePicture, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("get user", zap.Int64("user_id", id), zap.Error(err))
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Upsert(ctx context.Context, user *models.User) (int64, error) {
	query := `
		INSERT INTO users (google_id, email, name, profile_picture)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET google_id = EXCLUDED.google_id,
			name = EXCLUDED.name,
			profile_picture = EXCLUDED.profile_picture
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, user.GoogleID, user.Email, user.Name, user.ProfilePicture).Scan(&id)
	if err != nil {
		zap.L().Error("upsert user", zap.String("email", user.Email), zap.Error(err))
		return 0, err
	}
	return id, nil
}
