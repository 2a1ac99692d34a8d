package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Storer is the persistence surface the catalog service depends on.
type Storer interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, name, slug, icon string) (Category, error)
	UpdateCategory(ctx context.Context, id, name, slug, icon string) (Category, error)
	DeleteCategory(ctx context.Context, id string) error
	ListItems(ctx context.Context, p ListParams) ([]Item, int64, error)
	GetItemBySlug(ctx context.Context, slug string) (Item, error)
	GetItemByID(ctx context.Context, id string) (Item, error)
	CreateItem(ctx context.Context, in ItemInput) (Item, error)
	UpdateItem(ctx context.Context, id string, in ItemInput) (Item, error)
	SetItemActive(ctx context.Context, id string, active bool) error
}

// Service orchestrates catalog queries, caching, and admin writes.
type Service struct {
	store        Storer
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Storer
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// NewService constructs a catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// Categories returns all categories, served from cache when possible.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	const key = "catalog:categories"
	var cached []Category
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, key, categories)
	return categories, nil
}

// Items returns a page of catalog items.
func (s *Service) Items(ctx context.Context, query, categorySlug string, page, limit int, includeInactive bool) ([]Item, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	params := ListParams{
		Query:        query,
		CategorySlug: categorySlug,
		ActiveOnly:   !includeInactive,
		Limit:        int32(limit),
		Offset:       int32((page - 1) * limit),
	}

	key := ""
	if params.ActiveOnly && query == "" {
		key = fmt.Sprintf("catalog:items:%s:%d:%d", categorySlug, page, limit)
		var cached struct {
			Items []Item `json:"items"`
			Total int64  `json:"total"`
		}
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached.Items, cached.Total, nil
		}
	}

	items, total, err := s.store.ListItems(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	if key != "" {
		_ = s.cache.SetJSON(ctx, key, map[string]any{"items": items, "total": total})
	}
	return items, total, nil
}

// ItemBySlug loads one item by slug.
func (s *Service) ItemBySlug(ctx context.Context, slug string) (Item, error) {
	return s.store.GetItemBySlug(ctx, strings.TrimSpace(slug))
}

// ItemByID loads one item by id.
func (s *Service) ItemByID(ctx context.Context, id string) (Item, error) {
	return s.store.GetItemByID(ctx, strings.TrimSpace(id))
}

// CategoryInput carries admin category payloads.
type CategoryInput struct {
	Name string `json:"name" validate:"required"`
	Slug string `json:"slug" validate:"required"`
	Icon string `json:"icon"`
}

// CreateCategory inserts a category and invalidates the cache.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	c, err := s.store.CreateCategory(ctx, in.Name, slugify(in.Slug), in.Icon)
	if err != nil {
		return Category{}, err
	}
	s.cache.Invalidate(ctx)
	return c, nil
}

// UpdateCategory updates a category and invalidates the cache.
func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (Category, error) {
	c, err := s.store.UpdateCategory(ctx, id, in.Name, slugify(in.Slug), in.Icon)
	if err != nil {
		return Category{}, err
	}
	s.cache.Invalidate(ctx)
	return c, nil
}

// DeleteCategory removes a category and invalidates the cache.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}

// CreateItem inserts a catalog item after normalising discount fields.
func (s *Service) CreateItem(ctx context.Context, in ItemInput) (Item, error) {
	normaliseDiscount(&in)
	in.Slug = slugify(in.Slug)
	item, err := s.store.CreateItem(ctx, in)
	if err != nil {
		return Item{}, err
	}
	s.cache.Invalidate(ctx)
	return item, nil
}

// UpdateItem updates a catalog item after normalising discount fields.
func (s *Service) UpdateItem(ctx context.Context, id string, in ItemInput) (Item, error) {
	normaliseDiscount(&in)
	in.Slug = slugify(in.Slug)
	item, err := s.store.UpdateItem(ctx, id, in)
	if err != nil {
		return Item{}, err
	}
	s.cache.Invalidate(ctx)
	return item, nil
}

// SetItemActive toggles item visibility.
func (s *Service) SetItemActive(ctx context.Context, id string, active bool) error {
	if err := s.store.SetItemActive(ctx, id, active); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}

// Invalid or missing discount fields degrade to "no discount" rather than
// failing the write.
func normaliseDiscount(in *ItemInput) {
	if in.DiscountType != "percentage" && in.DiscountType != "fixed" {
		in.HasDiscount = false
	}
	if in.DiscountValue <= 0 {
		in.HasDiscount = false
	}
	if !in.HasDiscount {
		in.DiscountType = ""
		in.DiscountValue = 0
	}
}

func slugify(value string) string {
	slug := strings.ToLower(strings.TrimSpace(value))
	slug = strings.ReplaceAll(slug, " ", "-")
	return slug
}
