package service

import (
	"context"
	"testing"
	"time"

	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/cache"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type keyRepoMock struct {
	rows map[int64]*models.ProviderKey
	next int64
}

func (m *keyRepoMock) ListByUserID(ctx context.Context, userID int64) ([]*models.ProviderKey, error) {
	var out []*models.ProviderKey
	for _, r := range m.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *keyRepoMock) Upsert(ctx context.Context, key *models.ProviderKey) (int64, error) {
	for id, r := range m.rows {
		if r.UserID == key.UserID && r.Provider == key.Provider {
			key.ID = id
			m.rows[id] = key
			return id, nil
		}
	}
	m.next++
	key.ID = m.next
	m.rows[m.next] = key
	return m.next, nil
}

func (m *keyRepoMock) CheckByUserID(ctx context.Context, keyID, userID int64) (bool, error) {
	r, ok := m.rows[keyID]
	return ok && r.UserID == userID, nil
}

func (m *keyRepoMock) Remove(ctx context.Context, id int64) error {
	delete(m.rows, id)
	return nil
}

func TestProviderKeysRoundTrip(t *testing.T) {
	repo := &keyRepoMock{rows: map[int64]*models.ProviderKey{}}
	svc := NewProviderKeyService(testSecret, repo)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, 1, " OpenAI ", "sk-test-123456"))
	require.NoError(t, svc.Save(ctx, 1, "openai", "sk-test-999999"))

	rows, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "...9999", rows[0].Hint)
	assert.NotContains(t, rows[0].EncryptedKey, "sk-test")

	keys, err := svc.Keys(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{provider.OpenAI: "sk-test-999999"}, keys)

	require.ErrorIs(t, svc.Remove(ctx, 2, rows[0].ID), apperr.ErrNotFound)
	require.NoError(t, svc.Remove(ctx, 1, rows[0].ID))
	keys, err = svc.Keys(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestProviderKeysValidation(t *testing.T) {
	svc := NewProviderKeyService(testSecret, &keyRepoMock{rows: map[int64]*models.ProviderKey{}})

	assert.True(t, apperr.IsValidation(svc.Save(context.Background(), 1, "anthropic", "sk-test-123456")))
	assert.True(t, apperr.IsValidation(svc.Save(context.Background(), 1, "google", "short")))
}

type subscriptionRepoMock struct {
	sub   *models.Subscription
	err   error
	calls int
}

func (m *subscriptionRepoMock) GetByUserID(ctx context.Context, userID int64) (*models.Subscription, error) {
	m.calls++
	return m.sub, m.err
}

func (m *subscriptionRepoMock) Upsert(ctx context.Context, s *models.Subscription) error {
	cp := *s
	m.sub = &cp
	return m.err
}

func TestPlanTierResolution(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		name string
		sub  *models.Subscription
		want string
	}{
		{name: "no subscription", want: provider.TierFree},
		{name: "active premium", sub: &models.Subscription{Plan: "premium", Status: models.SubscriptionStatusActive}, want: provider.TierPro},
		{name: "cancelled", sub: &models.Subscription{Plan: "pro", Status: "cancelled"}, want: provider.TierFree},
	} {
		t.Run(tc.name, func(t *testing.T) {
			repo := &subscriptionRepoMock{sub: tc.sub}
			svc := NewPlanService(repo, cache.NewMemoryTierCache(time.Minute)).(*planService)
			svc.now = func() time.Time { return now }

			assert.Equal(t, tc.want, svc.Tier(context.Background(), 1))
			assert.Equal(t, tc.want, svc.Tier(context.Background(), 1))
			assert.Equal(t, 1, repo.calls)
		})
	}
}

func TestPlanTierLookupFailureIsNotCached(t *testing.T) {
	repo := &subscriptionRepoMock{err: assert.AnError}
	svc := NewPlanService(repo, cache.NewMemoryTierCache(time.Minute))

	assert.Equal(t, provider.TierUnknown, svc.Tier(context.Background(), 1))
	assert.Equal(t, provider.TierUnknown, svc.Tier(context.Background(), 1))
	assert.Equal(t, 2, repo.calls)
}
