package http

import (
	"bytes"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticket-sla/internal/api/http/handlers"
	"github.com/spec-kit/ticket-sla/internal/auth"
	"github.com/spec-kit/ticket-sla/internal/clock"
	"github.com/spec-kit/ticket-sla/internal/config"
	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/monitor"
	"github.com/spec-kit/ticket-sla/internal/observability"
	"github.com/spec-kit/ticket-sla/internal/registry"
	"github.com/spec-kit/ticket-sla/internal/repository"
	"github.com/spec-kit/ticket-sla/internal/service"
)

type apiFixture struct {
	app   *fiber.App
	clock *clock.Fake
	rec   *events.Recorder
	reg   *registry.Registry
	authz *service.AuthService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	hash, err := auth.HashPassword("pw", bcrypt.MinCost)
	require.NoError(t, err)

	f := &apiFixture{
		clock: clock.NewFake(time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)),
		rec:   &events.Recorder{},
	}
	logger := zap.NewNop()
	metrics := observability.NewMetrics("test")
	f.reg = registry.New(registry.Options{
		Repository: repository.NewMemoryTicketRepository(),
		Publisher:  f.rec,
		Clock:      f.clock,
		Metrics:    metrics,
	})
	slaMonitor := monitor.NewSLAMonitor(monitor.SLAMonitorOptions{Registry: f.reg, Publisher: f.rec})
	autoClose, err := monitor.NewAutoCloseMonitor(monitor.AutoCloseOptions{Registry: f.reg, Publisher: f.rec})
	require.NoError(t, err)
	tickets := service.NewTicketService(service.TicketDependencies{Registry: f.reg, Publisher: f.rec, Clock: f.clock})
	f.authz = service.NewAuthService(config.AuthConfig{
		JWTSecret:  "test",
		BcryptCost: bcrypt.MinCost,
		Operators: []config.OperatorCredential{
			{Name: "ana", Role: "agent", PasswordHash: hash},
			{Name: "vic", Role: "viewer", PasswordHash: hash},
			{Name: "root", Role: "admin", PasswordHash: hash},
		},
	}, logger)

	f.app = fiber.New()
	RegisterMiddlewares(f.app, logger, metrics, 0)
	RegisterRoutes(f.app, RouteConfig{
		Health:         handlers.NewHealthHandler("test", "dev", nil),
		Auth:           handlers.NewAuthHandler(f.authz),
		Tickets:        handlers.NewTicketsHandler(f.reg, tickets),
		Stats:          handlers.NewStatsHandler(f.reg, tickets, 20),
		Sweeps:         handlers.NewSweepsHandler(slaMonitor, autoClose, f.reg, nil),
		AuthMiddleware: auth.NewAuthMiddleware(f.authz.Tokens(), f.authz),
		Metrics:        metrics,
	})
	return f
}

func (f *apiFixture) token(t *testing.T, operator string) string {
	t.Helper()
	res, err := f.authz.Login(operator, "pw")
	require.NoError(t, err)
	return res.Token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func createBody() map[string]any {
	return map[string]any{
		"team":        "dev",
		"type":        "bug",
		"title":       "Login broken",
		"description": "Cannot sign in since this morning",
		"priority":    "p1",
		"creator":     "user-1",
	}
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	agent := f.token(t, "ana")

	status, body := f.do(t, nethttp.MethodPost, "/api/v1/tickets", agent, createBody())
	require.Equal(t, nethttp.StatusCreated, status)
	created := body["data"].(map[string]any)["ticket"].(map[string]any)
	id := created["ticket_id"].(string)
	assert.Equal(t, "dev-1741003200000", id)
	assert.Equal(t, "open", created["status"])

	status, body = f.do(t, nethttp.MethodPost, "/api/v1/tickets/"+id+"/assign", agent, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "ana", body["data"].(map[string]any)["assignee"])

	status, body = f.do(t, nethttp.MethodPost, "/api/v1/tickets/"+id+"/assign", agent, map[string]any{"assignee": "bob"})
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "ALREADY_ASSIGNED", body["error"].(map[string]any)["code"])

	status, _ = f.do(t, nethttp.MethodPost, "/api/v1/tickets/"+id+"/resolve", agent, nil)
	require.Equal(t, nethttp.StatusOK, status)

	status, body = f.do(t, nethttp.MethodGet, "/api/v1/tickets/"+id+"/auto-close", agent, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, true, body["data"].(map[string]any)["tracked"])

	status, _ = f.do(t, nethttp.MethodPost, "/api/v1/tickets/"+id+"/transition", agent, map[string]any{"status": "open"})
	require.Equal(t, nethttp.StatusOK, status)

	status, body = f.do(t, nethttp.MethodPost, "/api/v1/tickets/"+id+"/resolve", agent, nil)
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", body["error"].(map[string]any)["code"])

	assert.Len(t, f.rec.OfType(events.EventTicketReopened), 1)
}

func TestAuthAndRoles(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(t, nethttp.MethodGet, "/api/v1/tickets", "", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)

	status, body := f.do(t, nethttp.MethodPost, "/api/v1/auth/login", "", map[string]any{"operator": "vic", "password": "pw"})
	require.Equal(t, nethttp.StatusOK, status)
	viewer := body["data"].(map[string]any)["access_token"].(string)

	status, _ = f.do(t, nethttp.MethodGet, "/api/v1/tickets", viewer, nil)
	assert.Equal(t, nethttp.StatusOK, status)

	status, _ = f.do(t, nethttp.MethodPost, "/api/v1/tickets", viewer, createBody())
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, _ = f.do(t, nethttp.MethodPost, "/api/v1/sweeps/sla-sweep", f.token(t, "ana"), nil)
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, _ = f.do(t, nethttp.MethodPost, "/api/v1/auth/login", "", map[string]any{"operator": "vic", "password": "nope"})
	assert.Equal(t, nethttp.StatusUnauthorized, status)
}

func TestManualSweepAndAttention(t *testing.T) {
	f := newAPIFixture(t)
	agent := f.token(t, "ana")
	admin := f.token(t, "root")

	status, body := f.do(t, nethttp.MethodPost, "/api/v1/tickets", agent, createBody())
	require.Equal(t, nethttp.StatusCreated, status)
	id := body["data"].(map[string]any)["ticket"].(map[string]any)["ticket_id"].(string)

	f.clock.Advance(40 * time.Hour)
	status, body = f.do(t, nethttp.MethodGet, "/api/v1/stats/attention", agent, nil)
	require.Equal(t, nethttp.StatusOK, status)
	require.Len(t, body["data"], 1)

	f.clock.Advance(9 * time.Hour)
	status, body = f.do(t, nethttp.MethodPost, "/api/v1/sweeps/sla-sweep", admin, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, []any{id}, body["data"].(map[string]any)["breached"])

	status, body = f.do(t, nethttp.MethodGet, "/api/v1/stats/teams/dev", agent, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.EqualValues(t, 1, body["data"].(map[string]any)["breached"])

	status, _ = f.do(t, nethttp.MethodPost, "/api/v1/sweeps/unknown", admin, nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
}

func TestUnknownTicketAndHealth(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(t, nethttp.MethodGet, "/api/v1/tickets/dev-1", f.token(t, "vic"), nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])

	status, _ = f.do(t, nethttp.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)

	status, _ = f.do(t, nethttp.MethodGet, "/metrics", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
}
