package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scheduleFixture struct {
	posts   *memPosts
	ledger  *memLedger
	queue   *enqueuerMock
	history *historyRepoMock
	svc     *scheduleService
}

func newScheduleFixture(now time.Time) *scheduleFixture {
	f := &scheduleFixture{
		posts:   newMemPosts(),
		ledger:  newMemLedger(),
		queue:   &enqueuerMock{},
		history: &historyRepoMock{},
	}
	accounts := &accountRepoMock{accounts: map[int64]*models.SocialAccount{
		7: {ID: 7, UserID: 1, Platform: models.PlatformX},
		8: {ID: 8, UserID: 2, Platform: models.PlatformX},
		9: {ID: 9, UserID: 1, Platform: "mastodon"},
	}}
	credits := NewCreditService(f.ledger, &teamRepoMock{})
	f.svc = NewScheduleService(f.posts, accounts, f.history, credits, f.queue).(*scheduleService)
	f.svc.now = func() time.Time { return now }
	return f
}

func TestCreateSchedulesThread(t *testing.T) {
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	f := newScheduleFixture(now)

	res, err := f.svc.Create(context.Background(), ScheduleInput{
		UserID:       1,
		Scope:        models.TeamScope(4),
		AccountID:    7,
		Items:        []string{" main ", "reply one", "", "reply two"},
		ScheduledFor: "2030-01-01T10:30",
		Timezone:     "Europe/Berlin",
		MediaURLs:    []string{"https://cdn.example.com/a.png"},
		CreditsSpent: 360,
	})
	require.NoError(t, err)

	// 10:30 in Berlin is 09:30 UTC in winter.
	assert.Equal(t, time.Date(2030, 1, 1, 9, 30, 0, 0, time.UTC), res.ScheduledTime)
	assert.Equal(t, 90*time.Minute, f.queue.delays[res.ScheduledID])

	post, err := f.posts.GetByID(context.Background(), res.ScheduledID)
	require.NoError(t, err)
	assert.Equal(t, "main", post.Content)
	assert.Equal(t, []string{"reply one", "reply two"}, []string(post.Thread))
	assert.Equal(t, "Europe/Berlin", post.Timezone)
	assert.Equal(t, models.TeamScope(4), post.Scope())
	assert.Equal(t, models.Credits(360), post.CreditsSpent)
	assert.Equal(t, models.PostStatusPending, post.Status)
}

func TestCreatePastTimeFiresImmediately(t *testing.T) {
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	f := newScheduleFixture(now)

	res, err := f.svc.Create(context.Background(), ScheduleInput{
		UserID:       1,
		Scope:        models.PersonalScope(1),
		AccountID:    7,
		Items:        []string{"hello"},
		ScheduledFor: "2029-12-31T08:00:00Z",
	})
	require.NoError(t, err)
	delay, ok := f.queue.delays[res.ScheduledID]
	require.True(t, ok)
	assert.Zero(t, delay)
}

func TestCreateRejectsBadInput(t *testing.T) {
	f := newScheduleFixture(time.Now())
	long := strings.Repeat("x", 281)

	for name, in := range map[string]ScheduleInput{
		"no content":       {UserID: 1, AccountID: 7, Items: []string{" "}, ScheduledFor: "2030-01-01T10:30"},
		"bad time":         {UserID: 1, AccountID: 7, Items: []string{"hi"}, ScheduledFor: "tomorrow"},
		"bad timezone":     {UserID: 1, AccountID: 7, Items: []string{"hi"}, ScheduledFor: "2030-01-01T10:30", Timezone: "Mars/Olympus"},
		"foreign account":  {UserID: 1, AccountID: 8, Items: []string{"hi"}, ScheduledFor: "2030-01-01T10:30"},
		"missing account":  {UserID: 1, Items: []string{"hi"}, ScheduledFor: "2030-01-01T10:30"},
		"other platform":   {UserID: 1, AccountID: 9, Items: []string{"hi"}, ScheduledFor: "2030-01-01T10:30"},
		"long thread item": {UserID: 1, AccountID: 7, Items: []string{"hi", long}, ScheduledFor: "2030-01-01T10:30"},
	} {
		_, err := f.svc.Create(context.Background(), in)
		assert.True(t, apperr.IsValidation(err), name)
	}
	assert.Empty(t, f.queue.delays)
}

func TestCreateAllowsSingleLongPost(t *testing.T) {
	f := newScheduleFixture(time.Now())
	_, err := f.svc.Create(context.Background(), ScheduleInput{
		UserID:       1,
		AccountID:    7,
		Items:        []string{strings.Repeat("x", 1000)},
		ScheduledFor: "2030-01-01T10:30:00Z",
	})
	require.NoError(t, err)
}

func TestCancelRefundsAndDequeues(t *testing.T) {
	f := newScheduleFixture(time.Now())
	res, err := f.svc.Create(context.Background(), ScheduleInput{
		UserID:       1,
		Scope:        models.PersonalScope(1),
		AccountID:    7,
		Items:        []string{"hello"},
		ScheduledFor: "2030-01-01T10:30:00Z",
		CreditsSpent: 120,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(context.Background(), 1, res.ScheduledID))
	assert.Equal(t, []int64{res.ScheduledID}, f.queue.cancelled)

	refunds := f.ledger.entries(models.OpCancelRefund)
	require.Len(t, refunds, 1)
	assert.Equal(t, models.Credits(120), refunds[0].Amount)
	assert.Equal(t, PostReference(res.ScheduledID), refunds[0].ReferenceID)

	err = f.svc.Cancel(context.Background(), 1, res.ScheduledID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCancelRejectsClaimedOrForeignPosts(t *testing.T) {
	f := newScheduleFixture(time.Now())
	res, err := f.svc.Create(context.Background(), ScheduleInput{
		UserID:       1,
		AccountID:    7,
		Items:        []string{"hello"},
		ScheduledFor: "2030-01-01T10:30:00Z",
	})
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.Cancel(context.Background(), 2, res.ScheduledID), apperr.ErrNotFound)

	claimed, err := f.posts.Claim(context.Background(), res.ScheduledID, time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	err = f.svc.Cancel(context.Background(), 1, res.ScheduledID)
	require.True(t, apperr.IsValidation(err))
	assert.Empty(t, f.queue.cancelled)
}

func TestParseScheduledFor(t *testing.T) {
	got, err := ParseScheduledFor("2030-06-01T12:00:00+02:00", "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 6, 1, 10, 0, 0, 0, time.UTC), got.UTC())

	got, err = ParseScheduledFor("2030-06-01T12:00", "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 6, 1, 16, 0, 0, 0, time.UTC), got.UTC())

	_, err = ParseScheduledFor("", "UTC")
	require.True(t, apperr.IsValidation(err))
}

func TestHistoryClampsLimit(t *testing.T) {
	f := newScheduleFixture(time.Now())

	_, err := f.svc.History(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultHistory, f.history.limit)

	_, err = f.svc.History(context.Background(), 1, 10000)
	require.NoError(t, err)
	assert.Equal(t, MaxHistoryItems, f.history.limit)
}
