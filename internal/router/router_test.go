package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-api/internal/handler"
	"github.com/noah-isme/internship-api/internal/models"
	"github.com/noah-isme/internship-api/internal/service"
	"github.com/noah-isme/internship-api/pkg/config"
)

func newTestEngine(t *testing.T) (*service.TokenVerifier, *gin.Engine) {
	t.Helper()
	cfg := &config.Config{
		Env:       config.EnvProduction,
		APIPrefix: "/api/v1",
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	verifier := service.NewTokenVerifier(service.TokenVerifierConfig{Secret: "router-secret", Issuer: "campus-idp"})
	metrics := service.NewMetricsService()
	h := Handlers{
		Period:       handler.NewPeriodHandler(nil),
		Registration: handler.NewRegistrationHandler(nil),
		Allocation:   handler.NewAllocationHandler(nil),
		WeeklyReport: handler.NewWeeklyReportHandler(nil),
		Retake:       handler.NewRetakeHandler(nil),
		Export:       handler.NewExportHandler(nil),
		File:         handler.NewFileHandler(nil),
		Metrics:      handler.NewMetricsHandler(metrics, nil),
	}
	return verifier, Setup(cfg, h, Dependencies{Verifier: verifier, Metrics: metrics})
}

func TestSetupRegistersRoutes(t *testing.T) {
	_, engine := newTestEngine(t)
	routes := map[string]bool{}
	for _, route := range engine.Routes() {
		routes[route.Method+" "+route.Path] = true
	}
	for _, expected := range []string{
		"GET /health",
		"GET /metrics",
		"GET /files/:token",
		"POST /api/v1/registrations",
		"POST /api/v1/registrations/:id/lecturer",
		"PUT /api/v1/registrations/:id/company",
		"POST /api/v1/periods/:id/auto-assign",
		"POST /api/v1/registrations/:id/weekly-reports/:week",
		"GET /api/v1/registrations/:id/weekly-reports/calendar.ics",
		"POST /api/v1/retakes/:id/review",
		"GET /api/v1/periods/:id/roster",
	} {
		assert.True(t, routes[expected], expected)
	}
	assert.False(t, routes["GET /docs/*any"], "docs are hidden in production")
}

func TestSetupGuardsAPIRoutes(t *testing.T) {
	verifier, engine := newTestEngine(t)
	studentToken, err := verifier.Issue("student-1", models.RoleStudent, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"api requires token", http.MethodGet, "/api/v1/registrations", "", http.StatusUnauthorized},
		{"admin route rejects student", http.MethodPost, "/api/v1/periods", studentToken, http.StatusForbidden},
		{"lecturer route rejects student", http.MethodPost, "/api/v1/registrations/reg-1/lecturer/confirm", studentToken, http.StatusForbidden},
		{"review route rejects student", http.MethodPost, "/api/v1/registrations/reg-1/weekly-reports/1/review", studentToken, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			engine.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}
