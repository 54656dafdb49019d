package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"campusmarket/internal/model"
)

// TokenExpiry is how long an issued token stays valid.
const TokenExpiry = 12 * time.Hour

// Claims represents JWT claims. The identity fields are copied verbatim from
// the record at issuance and do not follow later changes.
type Claims struct {
	UserID int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies bearer tokens.
type TokenService interface {
	Issue(identity model.Identity) (string, error)
	Verify(token string) (model.Identity, error)
}

// JWTService signs HS256 tokens with a process-wide secret.
type JWTService struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a JWTService.
type Option func(*JWTService)

// WithClock replaces time.Now, used for issuance and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) {
		s.now = now
	}
}

// NewJWTService creates a new JWT service with the given secret.
func NewJWTService(secret string, opts ...Option) *JWTService {
	s := &JWTService{
		secret: []byte(secret),
		now:    time.Now,
		// Expiry is checked below against s.now, not the parser's wall clock.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs a token for identity, valid for TokenExpiry.
func (s *JWTService) Issue(identity model.Identity) (string, error) {
	if identity.ID == 0 || strings.TrimSpace(identity.Email) == "" {
		return "", errors.New("identity requires id and email")
	}
	if !identity.Role.Valid() {
		return "", fmt.Errorf("identity has invalid role %q", identity.Role)
	}

	now := s.now()
	claims := &Claims{
		UserID: identity.ID,
		Name:   identity.Name,
		Email:  identity.Email,
		Role:   identity.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and returns the embedded
// identity. Failures are *RejectedError.
func (s *JWTService) Verify(token string) (model.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return model.Identity{}, reject(RejectMissing, nil)
	}

	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return model.Identity{}, reject(RejectInvalidSignature, err)
	}

	if claims.ExpiresAt == nil {
		return model.Identity{}, reject(RejectInvalidSignature, errors.New("token has no expiry"))
	}
	if !s.now().Before(claims.ExpiresAt.Time) {
		return model.Identity{}, reject(RejectExpired, nil)
	}

	role, err := model.ParseRole(claims.Role)
	if err != nil || claims.UserID == 0 {
		return model.Identity{}, reject(RejectInvalidSignature, errors.New("malformed identity claims"))
	}

	return model.Identity{
		ID:    claims.UserID,
		Name:  claims.Name,
		Email: claims.Email,
		Role:  role,
	}, nil
}
