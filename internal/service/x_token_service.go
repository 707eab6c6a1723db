package service

import (
	"context"
	"errors"
	"time"

	config "github.com/maheshrc27/threadcraft/configs"
	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/repository"
	"github.com/maheshrc27/threadcraft/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// tokenSkew refreshes tokens slightly before they actually lapse.
const tokenSkew = time.Minute

type XTokenService interface {
	// AccessToken returns a usable access token for acc, refreshing it first
	// when it has expired.
	AccessToken(ctx context.Context, acc *models.SocialAccount) (string, error)
	Refresh(ctx context.Context, acc *models.SocialAccount) (string, error)
}

type xTokenService struct {
	secret string
	oauth  *oauth2.Config
	sa     repository.SocialAccountRepository
	now    func() time.Time
}

func NewXTokenService(cfg config.Config, sa repository.SocialAccountRepository) XTokenService {
	return &xTokenService{
		secret: cfg.SecretKey,
		oauth: &oauth2.Config{
			ClientID:     cfg.X.ClientID,
			ClientSecret: cfg.X.ClientSecret,
			Scopes:       []string{"tweet.read", "tweet.write", "users.read", "media.write", "offline.access"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://x.com/i/oauth2/authorize",
				TokenURL:  cfg.X.APIBase + "/2/oauth2/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		sa:  sa,
		now: time.Now,
	}
}

func (s *xTokenService) AccessToken(ctx context.Context, acc *models.SocialAccount) (string, error) {
	if !acc.TokenExpiresAt.IsZero() && s.now().Add(tokenSkew).After(acc.TokenExpiresAt) {
		return s.Refresh(ctx, acc)
	}

	token, err := utils.Decrypt(acc.AccessToken, []byte(s.secret))
	if err != nil {
		return "", &apperr.ReconnectRequiredError{AccountID: acc.ID, Err: err}
	}
	return token, nil
}

func (s *xTokenService) Refresh(ctx context.Context, acc *models.SocialAccount) (string, error) {
	refreshToken, err := utils.Decrypt(acc.RefreshToken, []byte(s.secret))
	if err != nil || refreshToken == "" {
		return "", &apperr.ReconnectRequiredError{AccountID: acc.ID, Err: errors.New("no usable refresh token")}
	}

	token, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		zap.L().Warn("refresh x token", zap.Int64("account_id", acc.ID), zap.Error(err))
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", &apperr.ReconnectRequiredError{AccountID: acc.ID, Err: err}
		}
		return "", err
	}

	encryptedAccess, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.secret))
	if err != nil {
		return "", err
	}
	var encryptedRefresh string
	if token.RefreshToken != "" {
		if encryptedRefresh, err = utils.Encrypt([]byte(token.RefreshToken), []byte(s.secret)); err != nil {
			return "", err
		}
	}

	updated := &models.SocialAccount{
		AccessToken:    encryptedAccess,
		RefreshToken:   encryptedRefresh,
		TokenExpiresAt: token.Expiry,
	}
	if err := s.sa.SetToken(ctx, acc.ID, acc.AccessToken, updated); err != nil {
		// Another worker may have refreshed first; its token is as good as ours.
		current, getErr := s.sa.GetByID(ctx, acc.ID)
		if getErr != nil || current == nil || current.AccessToken == acc.AccessToken {
			return "", err
		}
		return utils.Decrypt(current.AccessToken, []byte(s.secret))
	}

	acc.AccessToken = encryptedAccess
	if encryptedRefresh != "" {
		acc.RefreshToken = encryptedRefresh
	}
	acc.TokenExpiresAt = token.Expiry
	return token.AccessToken, nil
}
