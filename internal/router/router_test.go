package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusmarket/internal/auth"
	"campusmarket/internal/config"
	"campusmarket/internal/handler"
	"campusmarket/internal/metrics"
	"campusmarket/internal/model"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newRouter(t *testing.T) (*echo.Echo, *auth.JWTService, string) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	tokens := auth.NewJWTService("router-secret")
	m := metrics.New(prometheus.NewRegistry())
	uploads := t.TempDir()

	cfg := &config.Config{
		Env:            "development",
		CORSOrigins:    []string{"*"},
		AuthRateLimit:  2,
		UploadMaxBytes: 2 << 20,
	}

	e := echo.New()
	Register(e, cfg, Dependencies{
		Logger:    logger,
		Metrics:   m,
		Gate:      auth.NewGate(tokens, logger, m),
		Auth:      handler.NewAuthHandler(nil, nil),
		Items:     handler.NewItemHandler(nil),
		Reports:   handler.NewReportHandler(nil),
		Users:     handler.NewUserHandler(nil),
		Health:    handler.NewHealthHandler(okPinger{}, nil),
		UploadDir: uploads,
	})
	return e, tokens, uploads
}

func serve(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	e, _, _ := newRouter(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/items/browse"},
		{http.MethodGet, "/api/items/mine"},
		{http.MethodPost, "/api/items"},
		{http.MethodPut, "/api/items/1"},
		{http.MethodDelete, "/api/items/1"},
		{http.MethodPost, "/api/reports"},
		{http.MethodGet, "/api/admin/users"},
		{http.MethodPut, "/api/admin/reports/1"},
	} {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			rec := serve(e, route.method, route.path, "", "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"authentication required","code":"UNAUTHORIZED"}`, rec.Body.String())
		})
	}
}

func TestAdminRoutesForbidUsers(t *testing.T) {
	e, tokens, _ := newRouter(t)
	token, err := tokens.Issue(model.Identity{ID: 3, Name: "U", Email: "u@mite.ac.in", Role: model.RoleUser})
	require.NoError(t, err)

	for _, path := range []string{"/api/admin/users", "/api/admin/items", "/api/admin/reports"} {
		rec := serve(e, http.MethodGet, path, token, "")
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestAuthRateLimit(t *testing.T) {
	e, _, _ := newRouter(t)

	// malformed bodies fail in the handler without touching a service
	for i := 0; i < 2; i++ {
		rec := serve(e, http.MethodPost, "/api/auth/login", "", "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := serve(e, http.MethodPost, "/api/auth/admin/login", "", "{")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"too many requests","code":"RATE_LIMITED"}`, rec.Body.String())
}

func TestAmbientEndpoints(t *testing.T) {
	e, _, uploads := newRouter(t)

	rec := serve(e, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = serve(e, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `campusmarket_http_requests_total{method="GET",route="/api/health",status="200"} 1`)

	require.NoError(t, os.WriteFile(filepath.Join(uploads, "a.png"), []byte("img"), 0o644))
	rec = serve(e, http.MethodGet, "/uploads/a.png", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "img", rec.Body.String())
}

func TestOversizedUploadRejectedBeforeAuth(t *testing.T) {
	e, _, _ := newRouter(t)

	rec := serve(e, http.MethodPost, "/api/items", "", strings.Repeat("x", 3<<20))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid input: request body too large","code":"INVALID_INPUT"}`, rec.Body.String())
}

func TestBodyLimit(t *testing.T) {
	assert.Equal(t, "2560K", bodyLimit(2<<20))
}
