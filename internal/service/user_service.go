package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"campusmarket/internal/cache"
	apperrors "campusmarket/internal/errors"
	"campusmarket/internal/model"
	"campusmarket/internal/repository"
)

const profileCacheTTL = 5 * time.Minute

// UserUpdate carries the fields an admin may change. Nil means unchanged.
type UserUpdate struct {
	Name *string
	Role *string
}

// UserService exposes profile lookups and admin user management.
type UserService interface {
	Profile(ctx context.Context, identity model.Identity) (model.Identity, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, id int64, update UserUpdate) (*model.User, error)
	Delete(ctx context.Context, id int64) error
}

type userService struct {
	repo   repository.UserRepository
	items  repository.ItemRepository
	images ImageUploader
	cache  *cache.Client
	logger *logrus.Logger
}

// NewUserService builds a UserService. items and images are used to clean
// up stored item images when a user is deleted.
func NewUserService(
	repo repository.UserRepository,
	items repository.ItemRepository,
	images ImageUploader,
	cache *cache.Client,
	logger *logrus.Logger,
) UserService {
	return &userService{repo: repo, items: items, images: images, cache: cache, logger: logger}
}

func profileKey(id int64) string {
	return fmt.Sprintf("profile:%d", id)
}

// Profile returns the caller's current identity. Admin identities come
// straight from the token; user identities are re-read so a deleted
// account answers NotFound.
func (s *userService) Profile(ctx context.Context, identity model.Identity) (model.Identity, error) {
	switch identity.Role {
	case model.RoleAdmin:
		return identity, nil
	case model.RoleUser:
	default:
		return model.Identity{}, apperrors.ErrForbidden
	}

	var cached model.Identity
	if s.cache.GetJSON(ctx, profileKey(identity.ID), &cached) {
		return cached, nil
	}

	user, err := s.repo.FindByID(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Identity{}, fmt.Errorf("user %w", apperrors.ErrNotFound)
		}
		return model.Identity{}, fmt.Errorf("find user: %w", err)
	}

	profile := user.Identity()
	s.cache.SetJSON(ctx, profileKey(identity.ID), profile, profileCacheTTL)
	return profile, nil
}

func (s *userService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Update changes name and/or role. At least one must be given.
func (s *userService) Update(ctx context.Context, id int64, update UserUpdate) (*model.User, error) {
	var name string
	if update.Name != nil {
		name = strings.TrimSpace(*update.Name)
	}
	if name == "" && update.Role == nil {
		return nil, fmt.Errorf("%w: name or role", apperrors.ErrMissingFields)
	}

	var role model.Role
	if update.Role != nil {
		parsed, err := model.ParseRole(strings.TrimSpace(*update.Role))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
		role = parsed
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %w", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if name != "" {
		user.Name = name
	}
	if role != "" {
		user.Role = role
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.cache.Delete(ctx, profileKey(id), browseCacheKey)
	return user, nil
}

// Delete removes the user and, through the foreign key, their items. Stored
// images of those items are removed afterwards on a best-effort basis.
func (s *userService) Delete(ctx context.Context, id int64) error {
	owned, err := s.items.ListByOwner(ctx, id)
	if err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("user_id", id).Warn("list items of deleted user")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %w", apperrors.ErrNotFound)
		}
		return fmt.Errorf("delete user: %w", err)
	}

	for _, item := range owned {
		if url, ok := storedImage(item); ok {
			discardImage(ctx, s.images, s.logger, url)
		}
	}
	s.cache.Delete(ctx, profileKey(id), browseCacheKey)
	return nil
}
