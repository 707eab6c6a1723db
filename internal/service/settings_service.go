package service

import (
	"context"
	"errors"

	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/repository"
)

var errSettingsUser = errors.New("user id is not valid")

type SettingsService interface {
	Get(ctx context.Context, userID int64) (*models.Settings, error)
	Update(ctx context.Context, userID int64, longPostEnabled, preferOwnKeys bool) (*models.Settings, error)
}

type settingsService struct {
	sr repository.SettingsRepository
}

func NewSettingsService(sr repository.SettingsRepository) SettingsService {
	return &settingsService{sr: sr}
}

// Get returns the stored preferences, or the defaults when the user never
// saved any.
func (s *settingsService) Get(ctx context.Context, userID int64) (*models.Settings, error) {
	if userID == 0 {
		return nil, errSettingsUser
	}

	settings, err := s.sr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return &models.Settings{UserID: userID}, nil
	}
	return settings, nil
}

func (s *settingsService) Update(ctx context.Context, userID int64, longPostEnabled, preferOwnKeys bool) (*models.Settings, error) {
	if userID == 0 {
		return nil, errSettingsUser
	}

	settings := &models.Settings{
		UserID:          userID,
		LongPostEnabled: longPostEnabled,
		PreferOwnKeys:   preferOwnKeys,
	}
	if err := s.sr.Upsert(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
