package repository

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
)

type TeamRepository interface {
	IsMember(ctx context.Context, teamID, userID int64) (bool, error)
}

type teamRepository struct {
	db *sql.DB
}

func NewTeamRepository(db *sql.DB) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) IsMember(ctx context.Context, teamID, userID int64) (bool, error) {
	query := `SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, teamID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		zap.L().Error("check team membership", zap.Int64("team_id", teamID), zap.Int64("user_id", userID), zap.Error(err))
		return false, err
	}
	return result == 1, nil
}
