package service

import (
	"context"
	"strings"

	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/provider"
	"github.com/maheshrc27/threadcraft/internal/repository"
	"github.com/maheshrc27/threadcraft/pkg/utils"
	"go.uber.org/zap"
)

type ProviderKeyService interface {
	Save(ctx context.Context, userID int64, providerName, apiKey string) error
	List(ctx context.Context, userID int64) ([]*models.ProviderKey, error)
	Remove(ctx context.Context, userID, keyID int64) error
	// Keys returns the caller's decrypted keys by provider name.
	Keys(ctx context.Context, userID int64) (map[string]string, error)
}

type providerKeyService struct {
	secret string
	k      repository.ProviderKeyRepository
}

func NewProviderKeyService(secret string, k repository.ProviderKeyRepository) ProviderKeyService {
	return &providerKeyService{secret: secret, k: k}
}

func (s *providerKeyService) Save(ctx context.Context, userID int64, providerName, apiKey string) error {
	providerName = strings.ToLower(strings.TrimSpace(providerName))
	apiKey = strings.TrimSpace(apiKey)

	if !provider.IsKnown(providerName) {
		return apperr.Validation("provider", "unknown provider "+providerName)
	}
	if len(apiKey) < 8 {
		return apperr.Validation("api_key", "is too short")
	}

	encrypted, err := utils.Encrypt([]byte(apiKey), []byte(s.secret))
	if err != nil {
		return err
	}

	_, err = s.k.Upsert(ctx, &models.ProviderKey{
		UserID:       userID,
		Provider:     providerName,
		EncryptedKey: encrypted,
		Hint:         keyHint(apiKey),
	})
	return err
}

func (s *providerKeyService) List(ctx context.Context, userID int64) ([]*models.ProviderKey, error) {
	return s.k.ListByUserID(ctx, userID)
}

func (s *providerKeyService) Remove(ctx context.Context, userID, keyID int64) error {
	if keyID == 0 {
		return apperr.Validation("id", "is not valid")
	}

	owned, err := s.k.CheckByUserID(ctx, keyID, userID)
	if err != nil {
		return err
	}
	if !owned {
		return apperr.ErrNotFound
	}
	return s.k.Remove(ctx, keyID)
}

func (s *providerKeyService) Keys(ctx context.Context, userID int64) (map[string]string, error) {
	rows, err := s.k.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]string, len(rows))
	for _, row := range rows {
		plain, err := utils.Decrypt(row.EncryptedKey, []byte(s.secret))
		if err != nil {
			// An undecryptable key is treated as absent rather than failing
			// the whole request.
			zap.L().Warn("skip provider key",
				zap.Int64("user_id", userID),
				zap.String("provider", row.Provider),
				zap.Error(err))
			continue
		}
		keys[row.Provider] = plain
	}
	return keys, nil
}

func keyHint(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return "..." + key[len(key)-4:]
}
