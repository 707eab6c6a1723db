package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	config "github.com/maheshrc27/threadcraft/configs"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

type AuthService interface {
	AuthURL(state string) string
	LoginCallback(ctx context.Context, code string) (int64, error)
}

// authService signs users in with Google. endpoint overrides the Google API
// base URL when set.
type authService struct {
	oauth    *oauth2.Config
	endpoint string
	u        repository.UserRepository
}

func NewAuthService(cfg config.Config, u repository.UserRepository) AuthService {
	return &authService{
		oauth: &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURI,
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
			Endpoint:     google.Endpoint,
		},
		u: u,
	}
}

func (s *authService) AuthURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

func (s *authService) LoginCallback(ctx context.Context, code string) (int64, error) {
	if code == "" {
		return 0, errors.New("code is empty")
	}
	if s.oauth.ClientID == "" || s.oauth.ClientSecret == "" {
		return 0, errors.New("google oauth2 configuration is incomplete")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		zap.L().Warn("google code exchange", zap.Error(err))
		return 0, err
	}

	user, err := s.userInfo(ctx, s.oauth.Client(ctx, token))
	if err != nil {
		return 0, err
	}
	return s.u.Upsert(ctx, user)
}

func (s *authService) userInfo(ctx context.Context, client *http.Client) (*models.User, error) {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	svc, err := googleoauth.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google user info client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch google user info: %w", err)
	}
	if info.Email == "" {
		return nil, errors.New("google account has no email")
	}
	return &models.User{
		GoogleID:       info.Id,
		Email:          info.Email,
		Name:           info.Name,
		ProfilePicture: info.Picture,
	}, nil
}
