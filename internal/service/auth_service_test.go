package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth2/v2/userinfo", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"g-1","email":"ana@example.com","name":"Ana","picture":"https://img.example/ana.png"}`))
	}))
	defer srv.Close()

	s := &authService{endpoint: srv.URL + "/"}
	user, err := s.userInfo(context.Background(), srv.Client())
	require.NoError(t, err)
	assert.Equal(t, "g-1", user.GoogleID)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, "https://img.example/ana.png", user.ProfilePicture)
}

func TestAuthUserInfoRequiresEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"g-2"}`))
	}))
	defer srv.Close()

	s := &authService{endpoint: srv.URL + "/"}
	_, err := s.userInfo(context.Background(), srv.Client())
	require.EqualError(t, err, "google account has no email")
}

func TestLoginCallbackRejectsEmptyCode(t *testing.T) {
	_, err := (&authService{}).LoginCallback(context.Background(), "")
	require.Error(t, err)
}
