package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/service"
	"github.com/maheshrc27/threadcraft/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// newApp authenticates every request as user 1.
func newApp() *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", int64(1))
		return c.Next()
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

type generationMock struct {
	err  error
	last service.Caller
}

func (m *generationMock) Generate(ctx context.Context, caller service.Caller, req transfer.GenerateRequest) (*transfer.GenerateResponse, error) {
	m.last = caller
	if m.err != nil {
		return nil, m.err
	}
	return &transfer.GenerateResponse{Content: "ok", Thread: []string{"ok"}, CreditsUsed: 120, CreditSource: models.ScopePersonal}, nil
}

func (m *generationMock) GenerateStrategy(ctx context.Context, caller service.Caller, req transfer.StrategyRequest) (*transfer.GenerateResponse, error) {
	return m.Generate(ctx, caller, transfer.GenerateRequest{})
}

func TestWriteErrorMapping(t *testing.T) {
	for _, tc := range []struct {
		name   string
		err    error
		status int
	}{
		{"validation", apperr.Validation("prompt", "is required"), http.StatusBadRequest},
		{"insufficient", &apperr.InsufficientCreditsError{Required: 360, Available: 100, ScopeType: models.ScopeTeam, ScopeID: 4}, http.StatusPaymentRequired},
		{"not member", apperr.ErrNotTeamMember, http.StatusForbidden},
		{"not found", apperr.ErrNotFound, http.StatusNotFound},
		{"no providers", apperr.ErrNoProvidersConfigured, http.StatusServiceUnavailable},
		{"all unauthorized", &apperr.AllProvidersUnauthorizedError{}, http.StatusBadGateway},
		{"critical", &apperr.QualityGateCriticalError{Reasons: []string{"empty"}}, http.StatusUnprocessableEntity},
		{"other", errors.New("db down"), http.StatusInternalServerError},
	} {
		t.Run(tc.name, func(t *testing.T) {
			app := newApp()
			h := NewGenerationHandler(&generationMock{err: tc.err})
			app.Post("/api/generate", h.Generate)

			status, body := do(t, app, http.MethodPost, "/api/generate", transfer.GenerateRequest{Prompt: "x"}, nil)
			assert.Equal(t, tc.status, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestInsufficientCreditsBody(t *testing.T) {
	app := newApp()
	h := NewGenerationHandler(&generationMock{err: &apperr.InsufficientCreditsError{Required: 360, Available: 100, ScopeType: models.ScopeTeam}})
	app.Post("/api/generate", h.Generate)

	status, body := do(t, app, http.MethodPost, "/api/generate", transfer.GenerateRequest{Prompt: "x"}, nil)
	require.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, 3.6, body["required"])
	assert.Equal(t, 1.0, body["available"])
	assert.Equal(t, models.ScopeTeam, body["source"])
}

func TestTeamHeader(t *testing.T) {
	gen := &generationMock{}
	app := newApp()
	app.Post("/api/generate", NewGenerationHandler(gen).Generate)

	status, _ := do(t, app, http.MethodPost, "/api/generate", transfer.GenerateRequest{Prompt: "x"}, map[string]string{TeamHeader: "12"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, service.Caller{UserID: 1, TeamID: 12}, gen.last)

	status, _ = do(t, app, http.MethodPost, "/api/generate", transfer.GenerateRequest{Prompt: "x"}, map[string]string{TeamHeader: "abc"})
	assert.Equal(t, http.StatusBadRequest, status)
}

type creditMock struct {
	service.CreditService
	balance models.Credits
	member  bool
	refund  models.Credits
	page    int
	limit   int
}

func (m *creditMock) ResolveScope(ctx context.Context, userID, teamID int64) (models.CreditScope, error) {
	if teamID > 0 {
		if !m.member {
			return models.CreditScope{}, apperr.ErrNotTeamMember
		}
		return models.TeamScope(teamID), nil
	}
	return models.PersonalScope(userID), nil
}

func (m *creditMock) Balance(ctx context.Context, scope models.CreditScope) (models.Credits, error) {
	return m.balance, nil
}

func (m *creditMock) History(ctx context.Context, scope models.CreditScope, page, limit int) ([]*models.CreditTransaction, int, error) {
	m.page, m.limit = page, limit
	return nil, 0, nil
}

func (m *creditMock) ManualRefund(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, reason string) (models.Credits, error) {
	m.refund = amount
	return m.balance + amount, nil
}

func TestCreditRoutes(t *testing.T) {
	credits := &creditMock{balance: 1000}
	h := NewCreditHandler(credits)
	app := newApp()
	app.Get("/api/credits", h.Balance)
	app.Get("/api/credits/history", h.History)
	app.Post("/api/credits/refund", h.Refund)

	status, body := do(t, app, http.MethodGet, "/api/credits", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 10.0, body["balance"])
	assert.Equal(t, models.ScopePersonal, body["source"])

	status, _ = do(t, app, http.MethodGet, "/api/credits", nil, map[string]string{TeamHeader: "3"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = do(t, app, http.MethodGet, "/api/credits/history?page=2&limit=500", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, credits.page)
	assert.Equal(t, service.MaxHistoryLimit, credits.limit)
	assert.Equal(t, []any{}, body["transactions"])

	status, body = do(t, app, http.MethodPost, "/api/credits/refund", map[string]any{"amount": 2.5, "reason": "bad output"}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.Credits(250), credits.refund)
	assert.Equal(t, 12.5, body["balance"])
}

type scheduleSvcMock struct {
	service.ScheduleService
	in        service.ScheduleInput
	cancelled int64
	err       error
}

func (m *scheduleSvcMock) Create(ctx context.Context, in service.ScheduleInput) (*transfer.ScheduleResult, error) {
	m.in = in
	return &transfer.ScheduleResult{ScheduledID: 9}, m.err
}

func (m *scheduleSvcMock) Cancel(ctx context.Context, userID, id int64) error {
	m.cancelled = id
	return m.err
}

func (m *scheduleSvcMock) Get(ctx context.Context, userID, id int64) (*models.ScheduledPost, error) {
	return nil, apperr.ErrNotFound
}

func TestScheduleRoutes(t *testing.T) {
	sched := &scheduleSvcMock{}
	h := NewScheduleHandler(sched, &creditMock{})
	app := newApp()
	app.Post("/api/scheduled", h.Create)
	app.Post("/api/scheduled/cancel", h.Cancel)
	app.Get("/api/scheduled/:id", h.Get)

	status, body := do(t, app, http.MethodPost, "/api/scheduled", transfer.ScheduleRequest{
		AccountID:    7,
		Content:      "ignored",
		Thread:       []string{"a", "b"},
		ScheduledFor: "2030-01-01T10:00",
		Timezone:     "Europe/Berlin",
	}, nil)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 9.0, body["scheduledId"])
	assert.Equal(t, []string{"a", "b"}, sched.in.Items)
	assert.Equal(t, models.PersonalScope(1), sched.in.Scope)

	_, _ = do(t, app, http.MethodPost, "/api/scheduled", transfer.ScheduleRequest{AccountID: 7, Content: "solo"}, nil)
	assert.Equal(t, []string{"solo"}, sched.in.Items)

	status, _ = do(t, app, http.MethodPost, "/api/scheduled/cancel", transfer.CancelRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, "/api/scheduled/cancel", transfer.CancelRequest{ScheduledID: 9}, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(9), sched.cancelled)

	status, _ = do(t, app, http.MethodGet, "/api/scheduled/44", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = do(t, app, http.MethodGet, "/api/scheduled/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealth(t *testing.T) {
	app := fiber.New()
	h := NewHealthHandler(func(ctx context.Context) error { return nil }, func() bool { return false })
	app.Get("/health", h.Health)

	status, body := do(t, app, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["database"])
	assert.Equal(t, false, body["queue_broker"])

	app = fiber.New()
	h = NewHealthHandler(func(ctx context.Context) error { return errors.New("down") }, func() bool { return true })
	app.Get("/health", h.Health)
	status, _ = do(t, app, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}
