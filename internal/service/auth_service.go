package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"campusmarket/internal/auth"
	apperrors "campusmarket/internal/errors"
	"campusmarket/internal/metrics"
	"campusmarket/internal/model"
	"campusmarket/internal/repository"
)

const bcryptCost = 10

// dummyHash is compared against when the email is unknown so that both
// login failure paths pay for one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("campusmarket-placeholder"), bcryptCost)
	if err != nil {
		panic(err)
	}
	return h
})

// AuthResult is returned by every successful register or login.
type AuthResult struct {
	Token string         `json:"token"`
	User  model.Identity `json:"user"`
}

// AuthService handles registration and the two login flows.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	AdminLogin(ctx context.Context, email, password string) (*AuthResult, error)
}

type authService struct {
	users       repository.UserRepository
	admins      repository.AdminRepository
	tokens      auth.TokenService
	emailDomain string
	logger      *logrus.Logger
	metrics     *metrics.Metrics
}

// NewAuthService creates a new authentication service. emailDomain is the
// required email suffix including the "@".
func NewAuthService(
	users repository.UserRepository,
	admins repository.AdminRepository,
	tokens auth.TokenService,
	emailDomain string,
	logger *logrus.Logger,
	m *metrics.Metrics,
) AuthService {
	return &authService{
		users:       users,
		admins:      admins,
		tokens:      tokens,
		emailDomain: strings.ToLower(emailDomain),
		logger:      logger,
		metrics:     m,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user account with role user and signs it in.
func (s *authService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", apperrors.ErrMissingFields)
	}
	if !strings.HasSuffix(email, s.emailDomain) || len(email) == len(s.emailDomain) {
		return nil, fmt.Errorf("%w: email must end with %s", apperrors.ErrInvalidDomain, s.emailDomain)
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, apperrors.ErrConflict
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
		Role:         model.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// a concurrent registration won the unique index
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.issue(user.Identity())
}

// Login authenticates a student account.
func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", apperrors.ErrMissingFields)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	hash := dummyHash()
	if user != nil {
		hash = []byte(user.PasswordHash)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil || user == nil {
		s.loginFailed("user", email)
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.issue(user.Identity())
}

// AdminLogin authenticates against the administrator credential set.
func (s *authService) AdminLogin(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", apperrors.ErrMissingFields)
	}

	admin, err := s.admins.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find admin: %w", err)
	}

	hash := dummyHash()
	if admin != nil {
		hash = []byte(admin.PasswordHash)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil || admin == nil {
		s.loginFailed("admin", email)
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.issue(admin.Identity())
}

func (s *authService) issue(identity model.Identity) (*AuthResult, error) {
	token, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{Token: token, User: identity}, nil
}

func (s *authService) loginFailed(realm, email string) {
	s.metrics.RecordLoginFailure(realm)
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"realm": realm, "email": email}).Warn("login failed")
	}
}
