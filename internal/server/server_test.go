package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cleanmarket/config"
	"cleanmarket/internal/app"
	"cleanmarket/internal/handlers/middleware"
	"cleanmarket/internal/metrics"
	"cleanmarket/internal/repositories/memory"
	"cleanmarket/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(origins string) *app.App {
	cfg := config.Config{
		GeneralVersion:                "1.2.3",
		Environment:                   "test",
		CorsAllowOrigins:              origins,
		CommissionRate:                0.07,
		CommissionFreeQuota:           20,
		AutoConfirmAfterHours:         48,
		EventRetentionDays:            90,
		DebtWatchFloor:                -100,
		DefaultDebtThreshold:          -200,
		FraudWindowDays:               30,
		FraudCancellationMinBookings:  5,
		FraudCancellationRatio:        0.30,
		FraudConcentrationMinBookings: 10,
		JobBatchSize:                  100,
		CommissionWorkers:             2,
	}

	store := memory.New()
	collector := metrics.NewCollector()
	svc := services.NewWithDependencies(services.Dependencies{
		Transactor: store,
		Repos:      store.Repository(),
		Clock:      testclock.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		Metrics:    collector,
	}, cfg)

	return &app.App{
		Config:     cfg,
		Middleware: middleware.New(cfg),
		Metrics:    collector,
		Registry:   metrics.NewRegistry(collector),
		Services:   svc,
	}
}

func TestNew_SecurityHeaders(t *testing.T) {
	server, err := New(newTestApp("*"))
	require.NoError(t, err)

	resp, err := server.FiberApp.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", resp.Header.Get("Content-Security-Policy"))
	assert.Equal(t, "cleanmarket/1.2.3", resp.Header.Get(fiber.HeaderServer))
}

func TestNew_UnknownRouteRendersJSON(t *testing.T) {
	server, err := New(newTestApp("*"))
	require.NoError(t, err)

	resp, err := server.FiberApp.Test(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "Cannot GET /nowhere")
}

func TestCorsConfig(t *testing.T) {
	tests := []struct {
		name        string
		origins     string
		credentials bool
		expected    string
	}{
		{name: "wildcard", origins: "*", expected: "*"},
		{name: "unset falls back to wildcard", origins: "", expected: "*"},
		{name: "explicit origins", origins: "https://ops.cleanmarket.ma", credentials: true, expected: "https://ops.cleanmarket.ma"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := corsConfig(config.Config{CorsAllowOrigins: tt.origins})

			assert.Equal(t, tt.expected, cfg.AllowOrigins)
			assert.Equal(t, tt.credentials, cfg.AllowCredentials)
			assert.Contains(t, cfg.AllowHeaders, middleware.ActorRoleHeader)
			assert.Equal(t, middleware.TraceIDHeader, cfg.ExposeHeaders)
		})
	}
}

func TestNew_PreflightAllowsActorHeaders(t *testing.T) {
	server, err := New(newTestApp("https://ops.cleanmarket.ma"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/api/bookings", nil)
	req.Header.Set("Origin", "https://ops.cleanmarket.ma")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := server.FiberApp.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "https://ops.cleanmarket.ma", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), middleware.ActorIDHeader)
}

func TestListen_InvalidPort(t *testing.T) {
	server, err := New(newTestApp("*"))
	require.NoError(t, err)

	assert.Error(t, server.Listen(0))
	assert.Error(t, server.Listen(-1))
}
