package service

import (
	"context"
	"time"

	config "github.com/maheshrc27/threadcraft/configs"
	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/repository"
	"github.com/maheshrc27/threadcraft/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const xAuthURL = "https://x.com/i/oauth2/authorize"

var xScopes = []string{"tweet.read", "tweet.write", "users.read", "media.write", "offline.access"}

// PlatformService connects X accounts through the OAuth2 PKCE flow and
// manages the caller's connected accounts.
type PlatformService interface {
	// AuthURL is where the browser goes to grant access. state comes back
	// unchanged on the callback; verifier must be kept for Connect.
	AuthURL(state, verifier string) string
	Connect(ctx context.Context, userID int64, code, verifier string) (*models.SocialAccount, error)
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Remove(ctx context.Context, userID, accountID int64) error
}

type platformService struct {
	secret string
	oauth  *oauth2.Config
	sa     repository.SocialAccountRepository
	x      XClient
}

func NewPlatformService(cfg config.Config, sa repository.SocialAccountRepository, x XClient) PlatformService {
	return &platformService{
		secret: cfg.SecretKey,
		oauth: &oauth2.Config{
			ClientID:     cfg.X.ClientID,
			ClientSecret: cfg.X.ClientSecret,
			RedirectURL:  cfg.X.RedirectURI,
			Scopes:       xScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   xAuthURL,
				TokenURL:  cfg.X.APIBase + "/2/oauth2/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		sa: sa,
		x:  x,
	}
}

func (s *platformService) AuthURL(state, verifier string) string {
	return s.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

func (s *platformService) Connect(ctx context.Context, userID int64, code, verifier string) (*models.SocialAccount, error) {
	if code == "" || verifier == "" {
		return nil, apperr.Validation("code", "authorization code or verifier missing")
	}

	token, err := s.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		zap.L().Warn("x code exchange", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	me, err := s.x.Me(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	encryptedAccess, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.secret))
	if err != nil {
		return nil, err
	}
	var encryptedRefresh string
	if token.RefreshToken != "" {
		if encryptedRefresh, err = utils.Encrypt([]byte(token.RefreshToken), []byte(s.secret)); err != nil {
			return nil, err
		}
	}

	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(2 * time.Hour)
	}

	acc := &models.SocialAccount{
		UserID:          userID,
		Platform:        models.PlatformX,
		AccountID:       me.ID,
		AccountName:     me.Name,
		AccountUsername: me.Username,
		AccessToken:     encryptedAccess,
		RefreshToken:    encryptedRefresh,
		TokenExpiresAt:  expiry,
		AccountStatus:   "active",
	}
	acc.ID, err = s.sa.Upsert(ctx, acc)
	if err != nil {
		return nil, err
	}

	zap.L().Info("x account connected",
		zap.Int64("user_id", userID),
		zap.Int64("account_id", acc.ID),
		zap.String("username", me.Username))
	return acc, nil
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return s.sa.ListByUserID(ctx, userID)
}

func (s *platformService) Remove(ctx context.Context, userID, accountID int64) error {
	if accountID <= 0 {
		return apperr.Validation("id", "account id is required")
	}
	removed, err := s.sa.Remove(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.ErrNotFound
	}
	return nil
}
