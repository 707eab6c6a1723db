package service

import (
	"context"
	"testing"
	"time"

	"github.com/maheshrc27/threadcraft/internal/cache"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/provider"
	"github.com/maheshrc27/threadcraft/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userRepoMock struct {
	byEmail map[string]int64
	users   map[int64]*models.User
}

func (m *userRepoMock) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return m.users[id], nil
}

func (m *userRepoMock) Upsert(ctx context.Context, user *models.User) (int64, error) {
	if m.byEmail == nil {
		m.byEmail = map[string]int64{}
		m.users = map[int64]*models.User{}
	}
	id, ok := m.byEmail[user.Email]
	if !ok {
		id = int64(len(m.byEmail) + 1)
		m.byEmail[user.Email] = id
	}
	cp := *user
	cp.ID = id
	m.users[id] = &cp
	return id, nil
}

func paidEvent(product string) *transfer.SubscriptionEvent {
	return &transfer.SubscriptionEvent{
		EventType: EventSubscriptionPaid,
		Object: transfer.SubscriptionObject{
			ID:                   "sub_1",
			Status:               "active",
			CurrentPeriodEndDate: time.Date(2031, 2, 1, 0, 0, 0, 0, time.UTC),
			Customer:             transfer.Customer{Email: "Ada@Example.com"},
			Product:              transfer.Product{ID: "p1", Name: product},
		},
	}
}

func TestSubscriptionPaidGrantsOncePerPeriod(t *testing.T) {
	ledger := newMemLedger()
	users := &userRepoMock{}
	subs := &subscriptionRepoMock{}
	tiers := cache.NewMemoryTierCache(time.Minute)
	ctx := context.Background()

	tiers.Set(ctx, 1, provider.TierFree)

	svc := NewSubscriptionService(users, subs, NewCreditService(ledger, &teamRepoMock{}), tiers)
	require.NoError(t, svc.HandleSubscription(ctx, paidEvent("premium")))
	require.NoError(t, svc.HandleSubscription(ctx, paidEvent("premium")))

	assert.Equal(t, int64(1), users.byEmail["ada@example.com"])
	require.NotNil(t, subs.sub)
	assert.Equal(t, provider.TierPro, subs.sub.Plan)
	assert.True(t, subs.sub.SubscriptionEndDate.Valid)

	_, cached := tiers.Get(ctx, 1)
	assert.False(t, cached)

	grants := ledger.entries(models.OpGrant)
	require.Len(t, grants, 1)
	assert.Equal(t, models.Credits(30000), grants[0].Amount)
	assert.Equal(t, "subscription:sub_1:2031-02-01", grants[0].ReferenceID)
}

func TestSubscriptionIgnoresOtherEvents(t *testing.T) {
	ledger := newMemLedger()
	subs := &subscriptionRepoMock{}
	svc := NewSubscriptionService(&userRepoMock{}, subs, NewCreditService(ledger, &teamRepoMock{}), cache.NewMemoryTierCache(time.Minute))

	ev := paidEvent("pro")
	ev.EventType = "subscription.updated"
	require.NoError(t, svc.HandleSubscription(context.Background(), ev))
	assert.Nil(t, subs.sub)
	assert.Empty(t, ledger.entries(models.OpGrant))
}

func TestSubscriptionFreePlanGrantsNothing(t *testing.T) {
	ledger := newMemLedger()
	svc := NewSubscriptionService(&userRepoMock{}, &subscriptionRepoMock{}, NewCreditService(ledger, &teamRepoMock{}), cache.NewMemoryTierCache(time.Minute))

	require.NoError(t, svc.HandleSubscription(context.Background(), paidEvent("trial")))
	assert.Empty(t, ledger.entries(models.OpGrant))
}
