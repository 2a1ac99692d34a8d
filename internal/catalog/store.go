package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested catalog record does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Store executes catalog queries against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// ListParams narrows an item listing.
type ListParams struct {
	Query        string
	CategorySlug string
	ActiveOnly   bool
	Limit        int32
	Offset       int32
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, slug, COALESCE(icon, ''), created_at, updated_at
		FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Icon, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory inserts a category and returns it.
func (s *Store) CreateCategory(ctx context.Context, name, slug, icon string) (Category, error) {
	var c Category
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO categories (name, slug, icon)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id, name, slug, COALESCE(icon, ''), created_at, updated_at`,
		name, slug, icon,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.Icon, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// UpdateCategory updates a category by id.
func (s *Store) UpdateCategory(ctx context.Context, id, name, slug, icon string) (Category, error) {
	var c Category
	err := s.Pool.QueryRow(ctx, `
		UPDATE categories
		SET name = $2, slug = $3, icon = NULLIF($4, ''), updated_at = now()
		WHERE id = $1
		RETURNING id, name, slug, COALESCE(icon, ''), created_at, updated_at`,
		id, name, slug, icon,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.Icon, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	return c, err
}

// DeleteCategory removes a category; items keep existing with a null category.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const itemColumns = `id, category_id, name, slug, COALESCE(description, ''),
	price, currency, has_discount, COALESCE(discount_type, ''), discount_value,
	active, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var (
		it  Item
		cat pgtype.UUID
	)
	err := row.Scan(&it.ID, &cat, &it.Name, &it.Slug, &it.Description,
		&it.Price, &it.Currency, &it.HasDiscount, &it.DiscountType, &it.DiscountValue,
		&it.Active, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	if cat.Valid {
		v := uuidString(cat)
		it.CategoryID = &v
	}
	return it, nil
}

// ListItems returns a page of catalog items plus the unpaged total.
func (s *Store) ListItems(ctx context.Context, p ListParams) ([]Item, int64, error) {
	where := []string{"TRUE"}
	args := []any{}
	if p.ActiveOnly {
		where = append(where, "active")
	}
	if q := strings.TrimSpace(p.Query); q != "" {
		args = append(args, "%"+strings.ToLower(q)+"%")
		where = append(where, fmt.Sprintf("lower(name) LIKE $%d", len(args)))
	}
	if p.CategorySlug != "" {
		args = append(args, p.CategorySlug)
		where = append(where, fmt.Sprintf("category_id IN (SELECT id FROM categories WHERE slug = $%d)", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := s.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM services WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, p.Limit, p.Offset)
	rows, err := s.Pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM services WHERE %s
		ORDER BY name LIMIT $%d OFFSET $%d`,
		itemColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, it)
	}
	return out, total, rows.Err()
}

// GetItemBySlug loads one item by slug.
func (s *Store) GetItemBySlug(ctx context.Context, slug string) (Item, error) {
	it, err := scanItem(s.Pool.QueryRow(ctx,
		"SELECT "+itemColumns+" FROM services WHERE slug = $1", slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

// GetItemByID loads one item by id.
func (s *Store) GetItemByID(ctx context.Context, id string) (Item, error) {
	it, err := scanItem(s.Pool.QueryRow(ctx,
		"SELECT "+itemColumns+" FROM services WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

// ItemInput carries fields for creating or updating an item.
type ItemInput struct {
	CategoryID    *string
	Name          string
	Slug          string
	Description   string
	Price         int64
	Currency      string
	HasDiscount   bool
	DiscountType  string
	DiscountValue int64
	Active        bool
}

// CreateItem inserts a catalog item.
func (s *Store) CreateItem(ctx context.Context, in ItemInput) (Item, error) {
	return scanItem(s.Pool.QueryRow(ctx, `
		INSERT INTO services
			(category_id, name, slug, description, price, currency,
			 has_discount, discount_type, discount_value, active)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''), $9, $10)
		RETURNING `+itemColumns,
		in.CategoryID, in.Name, in.Slug, in.Description, in.Price, in.Currency,
		in.HasDiscount, in.DiscountType, in.DiscountValue, in.Active))
}

// UpdateItem updates a catalog item by id.
func (s *Store) UpdateItem(ctx context.Context, id string, in ItemInput) (Item, error) {
	it, err := scanItem(s.Pool.QueryRow(ctx, `
		UPDATE services SET
			category_id = $2, name = $3, slug = $4, description = NULLIF($5, ''),
			price = $6, currency = $7, has_discount = $8,
			discount_type = NULLIF($9, ''), discount_value = $10, active = $11,
			updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		id, in.CategoryID, in.Name, in.Slug, in.Description, in.Price, in.Currency,
		in.HasDiscount, in.DiscountType, in.DiscountValue, in.Active))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

// SetItemActive toggles visibility without deleting history.
func (s *Store) SetItemActive(ctx context.Context, id string, active bool) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE services SET active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}
