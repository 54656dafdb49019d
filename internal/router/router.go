package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	echoSwagger "github.com/swaggo/echo-swagger"
	"github.com/unrolled/secure"

	"campusmarket/internal/auth"
	"campusmarket/internal/config"
	"campusmarket/internal/errors"
	"campusmarket/internal/handler"
	"campusmarket/internal/logging"
	"campusmarket/internal/metrics"
)

// Dependencies are the components routes are bound to.
type Dependencies struct {
	Logger  *logrus.Logger
	Metrics *metrics.Metrics
	Gate    *auth.Gate

	Auth    *handler.AuthHandler
	Items   *handler.ItemHandler
	Reports *handler.ReportHandler
	Users   *handler.UserHandler
	Health  *handler.HealthHandler

	// UploadDir is served under /uploads when set.
	UploadDir string
}

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, deps Dependencies) {
	e.HTTPErrorHandler = handler.ErrorHandler(deps.Logger)
	e.Validator = handler.NewValidator()

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.Recover())
	e.Use(logging.RequestLogger(deps.Logger))
	e.Use(deps.Metrics.Middleware())
	e.Use(echo.WrapMiddleware(secureHeaders(cfg).Handler))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.BodyLimit(bodyLimit(cfg.UploadMaxBytes)))

	e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	if deps.UploadDir != "" {
		e.Static("/uploads", deps.UploadDir)
	}

	api := e.Group("/api")
	api.GET("/health", deps.Health.Health)

	// Public routes
	limit := authRateLimit(cfg.AuthRateLimit)
	authGroup := api.Group("/auth")
	authGroup.POST("/register", deps.Auth.Register, limit)
	authGroup.POST("/login", deps.Auth.Login, limit)
	authGroup.POST("/admin/login", deps.Auth.AdminLogin, limit)

	// Secured routes (require a bearer token)
	secured := api.Group("", deps.Gate.Authenticate())
	secured.GET("/auth/me", deps.Auth.Me)

	secured.GET("/items/browse", deps.Items.Browse)
	secured.GET("/items/mine", deps.Items.Mine)
	secured.POST("/items", deps.Items.Create)
	secured.PUT("/items/:id", deps.Items.Update)
	secured.DELETE("/items/:id", deps.Items.Delete)

	secured.POST("/reports", deps.Reports.Create)

	// Admin routes
	admin := secured.Group("/admin", deps.Gate.RequireAdmin)
	admin.GET("/users", deps.Users.ListUsers)
	admin.PUT("/users/:id", deps.Users.UpdateUser)
	admin.DELETE("/users/:id", deps.Users.DeleteUser)
	admin.GET("/items", deps.Items.ListAll)
	admin.PUT("/items/:id", deps.Items.Update)
	admin.DELETE("/items/:id", deps.Items.Delete)
	admin.GET("/reports", deps.Reports.List)
	admin.PUT("/reports/:id", deps.Reports.Resolve)
}

func secureHeaders(cfg *config.Config) *secure.Secure {
	return secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})
}

// bodyLimit leaves room for multipart framing around the largest image.
func bodyLimit(maxUpload int64) string {
	return fmt.Sprintf("%dK", (maxUpload+512*1024)/1024)
}

// authRateLimit throttles credential endpoints per client IP. One limiter
// is shared by every route it is attached to.
func authRateLimit(perMinute int) echo.MiddlewareFunc {
	limiter := httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(errors.ErrorResponse{Error: "too many requests", Code: "RATE_LIMITED"})
		}),
	)
	return echo.WrapMiddleware(limiter)
}
