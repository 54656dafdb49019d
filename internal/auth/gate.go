package auth

import (
	"context"
	"errors"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	apperrors "campusmarket/internal/errors"
	"campusmarket/internal/metrics"
	"campusmarket/internal/model"
)

// identityKey is the echo context key holding the verified model.Identity.
const identityKey = "identity"

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity)
}

// IdentityFromContext returns the identity stored by the gate, if any.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(ctxKey{}).(model.Identity)
	return identity, ok
}

// IdentityFrom returns the identity attached to the request by Authenticate.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	identity, ok := c.Get(identityKey).(model.Identity)
	return identity, ok
}

// Gate guards protected routes.
type Gate struct {
	tokens  TokenService
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewGate creates a gate verifying tokens with tokens. m may be nil.
func NewGate(tokens TokenService, logger *logrus.Logger, m *metrics.Metrics) *Gate {
	return &Gate{tokens: tokens, logger: logger, metrics: m}
}

// Authenticate resolves the bearer token into an Identity or answers 401.
func (g *Gate) Authenticate() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  identityKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return g.tokens.Verify(token)
		},
		SuccessHandler: func(c echo.Context) {
			if identity, ok := IdentityFrom(c); ok {
				req := c.Request()
				c.SetRequest(req.WithContext(WithIdentity(req.Context(), identity)))
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			kind := RejectMissing
			var rejected *RejectedError
			if errors.As(err, &rejected) {
				kind = rejected.Kind
			}
			g.metrics.RecordAuthRejection(kind.String())
			g.logger.WithFields(logrus.Fields{
				"kind":   kind.String(),
				"method": c.Request().Method,
				"path":   c.Path(),
			}).WithError(err).Warn("token rejected")
			return unauthorized()
		},
	})
}

// RequireAdmin lets only admin identities through. It must run after
// Authenticate.
func (g *Gate) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, ok := IdentityFrom(c)
		if !ok {
			return unauthorized()
		}
		switch identity.Role {
		case model.RoleAdmin:
			return next(c)
		case model.RoleUser:
			return forbidden()
		default:
			return forbidden()
		}
	}
}

func unauthorized() error {
	httpErr := apperrors.MapErrorToHTTP(apperrors.ErrUnauthorized)
	return echo.NewHTTPError(http.StatusUnauthorized, httpErr.ToErrorResponse())
}

func forbidden() error {
	httpErr := apperrors.MapErrorToHTTP(apperrors.ErrForbidden)
	return echo.NewHTTPError(http.StatusForbidden, httpErr.ToErrorResponse())
}
