package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"campusmarket/internal/auth"
	"campusmarket/internal/cache"
	apperrors "campusmarket/internal/errors"
	"campusmarket/internal/model"
	"campusmarket/internal/repository"
)

const (
	browseCacheKey = "items:browse"
	browseCacheTTL = 30 * time.Second
)

// maxPrice is the largest value a decimal(10,2) column holds.
var maxPrice = decimal.RequireFromString("99999999.99")

// ImageUploader stores item images.
type ImageUploader interface {
	Upload(ctx context.Context, r io.Reader) (string, error)
	Remove(ctx context.Context, url string) error
}

// OwnerSummary is the public part of an item's owner.
type OwnerSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ItemView is the wire representation of an item.
type ItemView struct {
	ID          int64         `json:"id"`
	OwnerID     int64         `json:"owner_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Price       json.Number   `json:"price"`
	Category    string        `json:"category"`
	ImageURL    *string       `json:"image_url"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Owner       *OwnerSummary `json:"owner,omitempty"`
}

// NewItemView renders item, including its owner when loaded.
func NewItemView(item model.Item) ItemView {
	view := ItemView{
		ID:          item.ID,
		OwnerID:     item.OwnerID,
		Title:       item.Title,
		Description: item.Description,
		Price:       json.Number(item.Price.StringFixed(2)),
		Category:    item.Category,
		ImageURL:    item.ImageURL,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
	if item.Owner != nil {
		view.Owner = &OwnerSummary{ID: item.Owner.ID, Name: item.Owner.Name, Email: item.Owner.Email}
	}
	return view
}

// ItemInput is a new listing. Image is optional; ImageURL is used only
// when no image is uploaded.
type ItemInput struct {
	Title       string
	Description string
	Price       string
	Category    string
	ImageURL    string
	Image       io.Reader
}

// ItemPatch holds the fields to change. Empty strings leave a field as is.
// An uploaded Image takes precedence over ImageURL.
type ItemPatch struct {
	Title       string
	Description string
	Price       string
	Category    string
	ImageURL    string
	Image       io.Reader
}

// ItemService manages listings. Update and Delete check existence before
// ownership, so a missing item is NotFound for every caller.
type ItemService interface {
	Create(ctx context.Context, identity model.Identity, input ItemInput) (*model.Item, error)
	Browse(ctx context.Context) ([]ItemView, error)
	Mine(ctx context.Context, identity model.Identity) ([]ItemView, error)
	ListAll(ctx context.Context) ([]ItemView, error)
	Update(ctx context.Context, identity model.Identity, id int64, patch ItemPatch) error
	Delete(ctx context.Context, identity model.Identity, id int64) error
}

type itemService struct {
	items  repository.ItemRepository
	users  repository.UserRepository
	images ImageUploader
	cache  *cache.Client
	logger *logrus.Logger
}

// NewItemService creates a new item service.
func NewItemService(
	items repository.ItemRepository,
	users repository.UserRepository,
	images ImageUploader,
	cache *cache.Client,
	logger *logrus.Logger,
) ItemService {
	return &itemService{items: items, users: users, images: images, cache: cache, logger: logger}
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: price must be a number", apperrors.ErrInvalidInput)
	}
	if price.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: price must not be negative", apperrors.ErrInvalidInput)
	}
	if !price.Equal(price.Round(2)) || price.GreaterThan(maxPrice) {
		return decimal.Decimal{}, fmt.Errorf("%w: price must have at most 2 decimals and 8 integer digits", apperrors.ErrInvalidInput)
	}
	return price, nil
}

func (s *itemService) Create(ctx context.Context, identity model.Identity, input ItemInput) (*model.Item, error) {
	switch identity.Role {
	case model.RoleUser:
	case model.RoleAdmin:
		return nil, fmt.Errorf("%w: administrators cannot list items", apperrors.ErrForbidden)
	default:
		return nil, apperrors.ErrForbidden
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	category := strings.TrimSpace(input.Category)
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"title", title},
		{"description", description},
		{"price", strings.TrimSpace(input.Price)},
		{"category", category},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrMissingFields, strings.Join(missing, ", "))
	}

	price, err := parsePrice(input.Price)
	if err != nil {
		return nil, err
	}

	// The token outlives the account; a deleted owner cannot list.
	if _, err := s.users.FindByID(ctx, identity.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, fmt.Errorf("find owner: %w", err)
	}

	item := &model.Item{
		OwnerID:     identity.ID,
		Title:       title,
		Description: description,
		Price:       price,
		Category:    category,
	}

	uploaded := false
	if input.Image != nil {
		url, err := s.images.Upload(ctx, input.Image)
		if err != nil {
			return nil, err
		}
		item.ImageURL = &url
		item.ImageStored = true
		uploaded = true
	} else if url := strings.TrimSpace(input.ImageURL); url != "" {
		item.ImageURL = &url
	}

	if err := s.items.Create(ctx, item); err != nil {
		if uploaded {
			s.removeImage(ctx, *item.ImageURL)
		}
		return nil, fmt.Errorf("create item: %w", err)
	}

	s.cache.Delete(ctx, browseCacheKey)
	return item, nil
}

func (s *itemService) Browse(ctx context.Context) ([]ItemView, error) {
	var cached []ItemView
	if s.cache.GetJSON(ctx, browseCacheKey, &cached) {
		return cached, nil
	}

	views, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, browseCacheKey, views, browseCacheTTL)
	return views, nil
}

// ListAll is Browse without the cache.
func (s *itemService) ListAll(ctx context.Context) ([]ItemView, error) {
	items, err := s.items.ListWithOwner(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return toViews(items), nil
}

func (s *itemService) Mine(ctx context.Context, identity model.Identity) ([]ItemView, error) {
	switch identity.Role {
	case model.RoleUser:
	case model.RoleAdmin:
		return []ItemView{}, nil
	default:
		return nil, apperrors.ErrForbidden
	}

	items, err := s.items.ListByOwner(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("list own items: %w", err)
	}
	return toViews(items), nil
}

func (s *itemService) Update(ctx context.Context, identity model.Identity, id int64, patch ItemPatch) error {
	item, err := s.authorize(ctx, identity, id)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{}
	if v := strings.TrimSpace(patch.Title); v != "" {
		fields["title"] = v
	}
	if v := strings.TrimSpace(patch.Description); v != "" {
		fields["description"] = v
	}
	if v := strings.TrimSpace(patch.Category); v != "" {
		fields["category"] = v
	}
	if strings.TrimSpace(patch.Price) != "" {
		price, err := parsePrice(patch.Price)
		if err != nil {
			return err
		}
		fields["price"] = price
	}

	uploaded := ""
	if patch.Image != nil {
		url, err := s.images.Upload(ctx, patch.Image)
		if err != nil {
			return err
		}
		uploaded = url
		fields["image_url"] = url
		fields["image_stored"] = true
	} else if v := strings.TrimSpace(patch.ImageURL); v != "" {
		fields["image_url"] = v
		fields["image_stored"] = false
	}

	if err := s.items.Update(ctx, id, fields); err != nil {
		if uploaded != "" {
			s.removeImage(ctx, uploaded)
		}
		return fmt.Errorf("update item: %w", err)
	}

	if newURL, ok := fields["image_url"].(string); ok {
		if old, stored := storedImage(*item); stored && old != newURL {
			s.removeImage(ctx, old)
		}
	}
	s.cache.Delete(ctx, browseCacheKey)
	return nil
}

func (s *itemService) Delete(ctx context.Context, identity model.Identity, id int64) error {
	item, err := s.authorize(ctx, identity, id)
	if err != nil {
		return err
	}

	if err := s.items.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("item %w", apperrors.ErrNotFound)
		}
		return fmt.Errorf("delete item: %w", err)
	}
	if url, ok := storedImage(*item); ok {
		s.removeImage(ctx, url)
	}
	s.cache.Delete(ctx, browseCacheKey)
	return nil
}

// authorize loads the item and applies the ownership policy, in that order.
func (s *itemService) authorize(ctx context.Context, identity model.Identity, id int64) (*model.Item, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("item %w", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("find item: %w", err)
	}
	if !auth.CanMutate(identity, item.OwnerID) {
		return nil, apperrors.ErrForbidden
	}
	return item, nil
}

func (s *itemService) removeImage(ctx context.Context, url string) {
	discardImage(ctx, s.images, s.logger, url)
}

// storedImage returns the item's image URL when the image store wrote it.
// URLs supplied by clients may point at files other users own and are never
// deleted.
func storedImage(item model.Item) (string, bool) {
	if !item.ImageStored || item.ImageURL == nil || *item.ImageURL == "" {
		return "", false
	}
	return *item.ImageURL, true
}

// discardImage removes url from the image store, logging failures.
func discardImage(ctx context.Context, images ImageUploader, logger *logrus.Logger, url string) {
	if images == nil {
		return
	}
	if err := images.Remove(ctx, url); err != nil && logger != nil {
		logger.WithError(err).WithField("image_url", url).Warn("remove item image")
	}
}

func toViews(items []model.Item) []ItemView {
	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, NewItemView(item))
	}
	return views
}
