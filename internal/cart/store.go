package cart

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/murphys-tech/catalog-api/internal/catalog"
)

// ErrNotFound indicates the requested cart or line could not be located.
var ErrNotFound = errors.New("cart: not found")

// ErrDuplicateLine is returned when a service is already in the cart.
var ErrDuplicateLine = errors.New("cart: service already in cart")

// Cart is a user's single active cart.
type Cart struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Line is one entry in a cart, joined with its catalog service when it still
// exists.
type Line struct {
	ID        string        `json:"id"`
	ServiceID string        `json:"serviceId"`
	Status    string        `json:"status"`
	AddedAt   time.Time     `json:"added_at"`
	Service   *catalog.Item `json:"service,omitempty"`
}

// Store executes cart queries against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// EnsureCart loads or creates the cart belonging to the user.
func (s *Store) EnsureCart(ctx context.Context, userID string) (Cart, error) {
	var c Cart
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
		RETURNING id, user_id, created_at, updated_at`, userID,
	).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListLines returns cart lines with their catalog pricing fields joined in.
func (s *Store) ListLines(ctx context.Context, cartID string) ([]Line, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT ci.id, ci.service_id, ci.status, ci.created_at,
			sv.id, sv.name, sv.slug, sv.price, sv.currency,
			sv.has_discount, COALESCE(sv.discount_type, ''), sv.discount_value, sv.active
		FROM cart_items ci
		LEFT JOIN services sv ON sv.id = ci.service_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var (
			line Line
			sid  pgtype.UUID
			item catalog.Item
		)
		if err := rows.Scan(&line.ID, &line.ServiceID, &line.Status, &line.AddedAt,
			&sid, &item.Name, &item.Slug, &item.Price, &item.Currency,
			&item.HasDiscount, &item.DiscountType, &item.DiscountValue, &item.Active); err != nil {
			return nil, err
		}
		if sid.Valid {
			item.ID = line.ServiceID
			line.Service = &item
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// AddLine inserts a pending line for the given service.
func (s *Store) AddLine(ctx context.Context, cartID, serviceID string) (Line, error) {
	var line Line
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO cart_items (cart_id, service_id)
		VALUES ($1, $2)
		RETURNING id, service_id, status, created_at`,
		cartID, serviceID,
	).Scan(&line.ID, &line.ServiceID, &line.Status, &line.AddedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Line{}, ErrDuplicateLine
		}
		return Line{}, err
	}
	return line, nil
}

// RemoveLine deletes one cart line.
func (s *Store) RemoveLine(ctx context.Context, cartID, lineID string) error {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, lineID, cartID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every line from the cart.
func (s *Store) Clear(ctx context.Context, cartID string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}

// ConfirmLines marks all pending lines confirmed, returning the confirmed set.
// Used inside checkout before the assignments are written.
func (s *Store) ConfirmLines(ctx context.Context, cartID string) ([]Line, error) {
	if _, err := s.Pool.Exec(ctx,
		`UPDATE cart_items SET status = 'confirmed' WHERE cart_id = $1 AND status = 'pending'`,
		cartID); err != nil {
		return nil, err
	}
	return s.ListLines(ctx, cartID)
}
