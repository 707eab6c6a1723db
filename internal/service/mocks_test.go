package service

import (
	"context"
	"sync"
	"time"

	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/generation"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/provider"
	"github.com/maheshrc27/threadcraft/internal/quality"
	"github.com/maheshrc27/threadcraft/internal/repository"
	"github.com/maheshrc27/threadcraft/internal/transfer"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// memLedger is an in-memory CreditRepository. Its mutex plays the part of
// the balance row lock.
type memLedger struct {
	mu       sync.Mutex
	balances map[models.CreditScope]models.Credits
	txs      []repository.LedgerEntry
}

func newMemLedger() *memLedger {
	return &memLedger{balances: map[models.CreditScope]models.Credits{}}
}

func (l *memLedger) grant(scope models.CreditScope, amount models.Credits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[scope] += amount
	l.txs = append(l.txs, repository.LedgerEntry{Scope: scope, Amount: amount, Operation: models.OpGrant})
}

func (l *memLedger) entries(op string) []repository.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []repository.LedgerEntry
	for _, e := range l.txs {
		if op == "" || e.Operation == op {
			out = append(out, e)
		}
	}
	return out
}

func (l *memLedger) GetBalance(ctx context.Context, scope models.CreditScope) (models.Credits, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[scope], nil
}

func (l *memLedger) Apply(ctx context.Context, entry repository.LedgerEntry) (models.Credits, error) {
	// BeginTx fails the same way on a done context.
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[entry.Scope]
	next := balance + entry.Amount
	if next < 0 {
		return balance, &apperr.InsufficientCreditsError{
			Required:  int64(-entry.Amount),
			Available: int64(balance),
			ScopeType: entry.Scope.Type,
			ScopeID:   entry.Scope.ID,
		}
	}
	l.balances[entry.Scope] = next
	l.txs = append(l.txs, entry)
	return next, nil
}

func (l *memLedger) ListTransactions(ctx context.Context, scope models.CreditScope, limit, offset int) ([]*models.CreditTransaction, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var all []*models.CreditTransaction
	for i := len(l.txs) - 1; i >= 0; i-- {
		e := l.txs[i]
		if e.Scope != scope {
			continue
		}
		all = append(all, &models.CreditTransaction{
			ID:          int64(i + 1),
			ScopeType:   scope.Type,
			ScopeID:     scope.ID,
			UserID:      e.UserID,
			Amount:      e.Amount,
			Operation:   e.Operation,
			ReferenceID: e.ReferenceID,
		})
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (l *memLedger) NetSpend(ctx context.Context, scope models.CreditScope) (models.Credits, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum models.Credits
	for _, e := range l.txs {
		if e.Scope == scope && e.Operation != models.OpGrant {
			sum -= e.Amount
		}
	}
	return sum, nil
}

func (l *memLedger) SumByReference(ctx context.Context, scope models.CreditScope, referenceID string) (models.Credits, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum models.Credits
	for _, e := range l.txs {
		if e.Scope == scope && e.ReferenceID == referenceID {
			sum += e.Amount
		}
	}
	return sum, nil
}

type teamRepoMock struct {
	IsMemberFn func(ctx context.Context, teamID, userID int64) (bool, error)
}

func (m *teamRepoMock) IsMember(ctx context.Context, teamID, userID int64) (bool, error) {
	if m.IsMemberFn == nil {
		return false, nil
	}
	return m.IsMemberFn(ctx, teamID, userID)
}

type planMock struct{ tier string }

func (m planMock) Tier(ctx context.Context, userID int64) string { return m.tier }

type settingsMock struct{ settings models.Settings }

func (m *settingsMock) Get(ctx context.Context, userID int64) (*models.Settings, error) {
	s := m.settings
	s.UserID = userID
	return &s, nil
}

func (m *settingsMock) Update(ctx context.Context, userID int64, longPostEnabled, preferOwnKeys bool) (*models.Settings, error) {
	m.settings = models.Settings{UserID: userID, LongPostEnabled: longPostEnabled, PreferOwnKeys: preferOwnKeys}
	return &m.settings, nil
}

type keysMock struct{ keys map[string]string }

func (m keysMock) Save(ctx context.Context, userID int64, providerName, apiKey string) error {
	return nil
}
func (m keysMock) List(ctx context.Context, userID int64) ([]*models.ProviderKey, error) {
	return nil, nil
}
func (m keysMock) Remove(ctx context.Context, userID, keyID int64) error { return nil }
func (m keysMock) Keys(ctx context.Context, userID int64) (map[string]string, error) {
	return m.keys, nil
}

type routerMock struct {
	RouteFn func(ctx context.Context, req provider.RouteRequest) ([]provider.Candidate, error)
	last    provider.RouteRequest
}

func (m *routerMock) Route(ctx context.Context, req provider.RouteRequest) ([]provider.Candidate, error) {
	m.last = req
	if m.RouteFn == nil {
		return []provider.Candidate{{Source: req.Source}}, nil
	}
	return m.RouteFn(ctx, req)
}

type engineMock struct {
	GenerateFn func(ctx context.Context, candidates []provider.Candidate, req provider.Request) (*generation.Output, error)
	calls      []provider.Request
}

func (m *engineMock) Generate(ctx context.Context, candidates []provider.Candidate, req provider.Request) (*generation.Output, error) {
	m.calls = append(m.calls, req)
	return m.GenerateFn(ctx, candidates, req)
}

type gateMock struct {
	RunFn func(ctx context.Context, candidates []provider.Candidate, prompt string, in quality.Input) (*quality.Result, error)
}

func (m *gateMock) Run(ctx context.Context, candidates []provider.Candidate, prompt string, in quality.Input) (*quality.Result, error) {
	return m.RunFn(ctx, candidates, prompt, in)
}

type scheduleMock struct {
	CreateFn func(ctx context.Context, in ScheduleInput) (*transfer.ScheduleResult, error)
}

func (m *scheduleMock) Create(ctx context.Context, in ScheduleInput) (*transfer.ScheduleResult, error) {
	return m.CreateFn(ctx, in)
}
func (m *scheduleMock) List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	return nil, nil
}
func (m *scheduleMock) Get(ctx context.Context, userID, id int64) (*models.ScheduledPost, error) {
	return nil, nil
}
func (m *scheduleMock) Cancel(ctx context.Context, userID, id int64) error { return nil }
func (m *scheduleMock) History(ctx context.Context, userID int64, limit int) ([]*models.PostingHistory, error) {
	return nil, nil
}

// memPosts is an in-memory ScheduledPostRepository.
type memPosts struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]*models.ScheduledPost
}

func newMemPosts() *memPosts {
	return &memPosts{posts: map[int64]*models.ScheduledPost{}}
}

func (m *memPosts) Create(ctx context.Context, p *models.ScheduledPost) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cp := *p
	cp.ID = m.nextID
	cp.Status = models.PostStatusPending
	m.posts[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memPosts) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memPosts) ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ScheduledPost
	for _, p := range m.posts {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPosts) ListPending(ctx context.Context) ([]*models.ScheduledPost, error) {
	return nil, nil
}

func (m *memPosts) Claim(ctx context.Context, id int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.Status != models.PostStatusPending {
		return false, nil
	}
	p.Status = models.PostStatusProcessing
	return true, nil
}

func (m *memPosts) Finish(ctx context.Context, id int64, o repository.PostOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; ok {
		p.Status = o.Status
	}
	return nil
}

func (m *memPosts) ExpireOverdue(ctx context.Context, cutoff time.Time) ([]int64, error) {
	return nil, nil
}

func (m *memPosts) FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	return 0, nil
}

func (m *memPosts) DeletePending(ctx context.Context, id, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.UserID != userID || p.Status != models.PostStatusPending {
		return false, nil
	}
	delete(m.posts, id)
	return true, nil
}

type accountRepoMock struct {
	accounts map[int64]*models.SocialAccount
}

func (m *accountRepoMock) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	return m.accounts[id], nil
}
func (m *accountRepoMock) ListExpiring(ctx context.Context, platform string, before time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}
func (m *accountRepoMock) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	acc, ok := m.accounts[accountID]
	return ok && acc.UserID == userID, nil
}
func (m *accountRepoMock) SetToken(ctx context.Context, id int64, oldAccessToken string, sa *models.SocialAccount) error {
	return nil
}

func (m *accountRepoMock) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	var out []*models.SocialAccount
	for _, acc := range m.accounts {
		if acc.UserID == userID {
			out = append(out, acc)
		}
	}
	return out, nil
}
func (m *accountRepoMock) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	if m.accounts == nil {
		m.accounts = map[int64]*models.SocialAccount{}
	}
	for id, acc := range m.accounts {
		if acc.Platform == sa.Platform && acc.AccountID == sa.AccountID {
			cp := *sa
			cp.ID = id
			m.accounts[id] = &cp
			return id, nil
		}
	}
	id := int64(len(m.accounts) + 1)
	cp := *sa
	cp.ID = id
	m.accounts[id] = &cp
	return id, nil
}
func (m *accountRepoMock) Remove(ctx context.Context, id, userID int64) (bool, error) {
	acc, ok := m.accounts[id]
	if !ok || acc.UserID != userID {
		return false, nil
	}
	delete(m.accounts, id)
	return true, nil
}

type historyRepoMock struct {
	limit int
}

func (m *historyRepoMock) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	return 1, nil
}
func (m *historyRepoMock) ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.PostingHistory, error) {
	m.limit = limit
	return nil, nil
}
func (m *historyRepoMock) ListByScheduledPost(ctx context.Context, scheduledPostID int64) ([]*models.PostingHistory, error) {
	return nil, nil
}

type enqueuerMock struct {
	mu        sync.Mutex
	delays    map[int64]time.Duration
	cancelled []int64
}

func (m *enqueuerMock) EnqueuePublish(ctx context.Context, id int64, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delays == nil {
		m.delays = map[int64]time.Duration{}
	}
	m.delays[id] = delay
	return nil
}

func (m *enqueuerMock) CancelPublish(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, id)
	return nil
}
