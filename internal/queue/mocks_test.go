package queue

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/repository"
	"github.com/maheshrc27/threadcraft/internal/service"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type postStore struct {
	mu    sync.Mutex
	posts map[int64]*models.ScheduledPost
}

func newPostStore(posts ...*models.ScheduledPost) *postStore {
	s := &postStore{posts: map[int64]*models.ScheduledPost{}}
	for _, p := range posts {
		if p.Status == "" {
			p.Status = models.PostStatusPending
		}
		s.posts[p.ID] = p
	}
	return s
}

func (s *postStore) get(id int64) models.ScheduledPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.posts[id]
}

func (s *postStore) Create(ctx context.Context, p *models.ScheduledPost) (int64, error) {
	return 0, fmt.Errorf("not supported")
}

func (s *postStore) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *postStore) ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	return nil, nil
}

func (s *postStore) ListPending(ctx context.Context) ([]*models.ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ScheduledPost
	for _, p := range s.posts {
		if p.Status == models.PostStatusPending {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *postStore) Claim(ctx context.Context, id int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return false, nil
	}
	if p.Status != models.PostStatusPending && !(p.Status == models.PostStatusFailed && p.Retryable) {
		return false, nil
	}
	p.Status = models.PostStatusProcessing
	p.Retryable = false
	p.ClaimedAt = sql.NullTime{Time: now, Valid: true}
	return true, nil
}

func (s *postStore) Finish(ctx context.Context, id int64, o repository.PostOutcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok || p.Status != models.PostStatusProcessing {
		return nil
	}
	p.Status = o.Status
	p.ErrorMessage = o.ErrorMessage
	p.Retryable = o.Retryable
	if o.PostedAt != nil && !p.PostedAt.Valid {
		p.PostedAt = sql.NullTime{Time: *o.PostedAt, Valid: true}
	}
	return nil
}

func (s *postStore) ExpireOverdue(ctx context.Context, cutoff time.Time) ([]int64, error) {
	return nil, nil
}

func (s *postStore) FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	return 0, nil
}

func (s *postStore) DeletePending(ctx context.Context, id, userID int64) (bool, error) {
	return false, nil
}

type accountStore struct {
	accounts map[int64]*models.SocialAccount
}

func (a *accountStore) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	return a.accounts[id], nil
}
func (a *accountStore) ListExpiring(ctx context.Context, platform string, before time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}
func (a *accountStore) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	return false, nil
}
func (a *accountStore) SetToken(ctx context.Context, id int64, oldAccessToken string, sa *models.SocialAccount) error {
	return nil
}

func (a *accountStore) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return nil, nil
}
func (a *accountStore) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	return 0, nil
}
func (a *accountStore) Remove(ctx context.Context, id, userID int64) (bool, error) {
	return false, nil
}

type historyStore struct {
	mu   sync.Mutex
	rows []*models.PostingHistory
}

func (h *historyStore) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rows = append(h.rows, ph)
	return int64(len(h.rows)), nil
}
func (h *historyStore) ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.PostingHistory, error) {
	return nil, nil
}
func (h *historyStore) ListByScheduledPost(ctx context.Context, scheduledPostID int64) ([]*models.PostingHistory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*models.PostingHistory
	for _, r := range h.rows {
		if r.ScheduledPostID == scheduledPostID {
			out = append(out, r)
		}
	}
	return out, nil
}

type refundCall struct {
	amount    models.Credits
	operation string
	reference string
}

// creditsMock only tracks refunds. RefundOnce dedupes by reference.
type creditsMock struct {
	mu      sync.Mutex
	refunds []refundCall
}

func (c *creditsMock) ResolveScope(ctx context.Context, userID, teamID int64) (models.CreditScope, error) {
	return models.PersonalScope(userID), nil
}
func (c *creditsMock) Balance(ctx context.Context, scope models.CreditScope) (models.Credits, error) {
	return 0, nil
}
func (c *creditsMock) Deduct(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, operation, referenceID string) (models.Credits, error) {
	return 0, nil
}
func (c *creditsMock) Refund(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, operation, referenceID string) (models.Credits, error) {
	return 0, nil
}
func (c *creditsMock) RefundOnce(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, operation, referenceID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if amount <= 0 {
		return false, nil
	}
	for _, r := range c.refunds {
		if r.reference == referenceID {
			return false, nil
		}
	}
	c.refunds = append(c.refunds, refundCall{amount: amount, operation: operation, reference: referenceID})
	return true, nil
}
func (c *creditsMock) History(ctx context.Context, scope models.CreditScope, page, limit int) ([]*models.CreditTransaction, int, error) {
	return nil, 0, nil
}
func (c *creditsMock) ManualRefund(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, reason string) (models.Credits, error) {
	return 0, nil
}

func (c *creditsMock) Grant(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, referenceID string) (bool, error) {
	return false, nil
}

type tokensMock struct {
	err error
}

func (t tokensMock) AccessToken(ctx context.Context, acc *models.SocialAccount) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	return "token-" + acc.AccountID, nil
}
func (t tokensMock) Refresh(ctx context.Context, acc *models.SocialAccount) (string, error) {
	return t.AccessToken(ctx, acc)
}

type posted struct {
	text    string
	replyTo string
	media   []string
}

// xMock fails the call whose zero-based index is in failAt.
type xMock struct {
	mu        sync.Mutex
	posts     []posted
	uploads   []string
	failAt    map[int]error
	verifyErr error
	calls     int
	onCall    func()
}

func (x *xMock) VerifyCredentials(ctx context.Context, accessToken string) error {
	return x.verifyErr
}

func (x *xMock) Me(ctx context.Context, accessToken string) (*service.XUser, error) {
	if x.verifyErr != nil {
		return nil, x.verifyErr
	}
	return &service.XUser{ID: "acct"}, nil
}

func (x *xMock) PostTweet(ctx context.Context, accessToken, text, replyTo string, mediaIDs []string) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	n := x.calls
	x.calls++
	if x.onCall != nil {
		x.onCall()
	}
	if err, ok := x.failAt[n]; ok {
		return "", err
	}
	x.posts = append(x.posts, posted{text: text, replyTo: replyTo, media: mediaIDs})
	return fmt.Sprintf("tw-%d", n+1), nil
}

func (x *xMock) UploadMedia(ctx context.Context, accessToken, mediaURL string) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.uploads = append(x.uploads, mediaURL)
	return fmt.Sprintf("m-%d", len(x.uploads)), nil
}
