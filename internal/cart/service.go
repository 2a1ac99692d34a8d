package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/murphys-tech/catalog-api/internal/billing"
	"github.com/murphys-tech/catalog-api/internal/catalog"
	"github.com/murphys-tech/catalog-api/internal/obs"
)

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("cart: invalid input")

// ErrEmptyCart is returned when checkout is attempted on an empty cart.
var ErrEmptyCart = errors.New("cart: cart is empty")

// Storer is the persistence surface the cart service depends on.
type Storer interface {
	EnsureCart(ctx context.Context, userID string) (Cart, error)
	ListLines(ctx context.Context, cartID string) ([]Line, error)
	AddLine(ctx context.Context, cartID, serviceID string) (Line, error)
	RemoveLine(ctx context.Context, cartID, lineID string) error
	Clear(ctx context.Context, cartID string) error
	ConfirmLines(ctx context.Context, cartID string) ([]Line, error)
}

// Catalog resolves service references added to the cart.
type Catalog interface {
	ItemByID(ctx context.Context, id string) (catalog.Item, error)
}

// Assigner converts confirmed cart lines into service assignments at checkout.
type Assigner interface {
	AssignFromCheckout(ctx context.Context, clientID string, items []catalog.Item) error
}

// Service encapsulates cart domain operations.
type Service struct {
	Store    Storer
	Catalog  Catalog
	Assigner Assigner
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// View bundles a cart, its lines, and the derived total. The total is always
// recomputed from the lines, never read from storage.
type View struct {
	Cart  Cart   `json:"cart"`
	Lines []Line `json:"lines"`
	Total int64  `json:"total"`
}

// Get loads the user's cart with its derived total.
func (s *Service) Get(ctx context.Context, userID string) (View, error) {
	if s == nil || s.Store == nil {
		return View{}, errors.New("cart service not configured")
	}
	c, err := s.Store.EnsureCart(ctx, userID)
	if err != nil {
		return View{}, err
	}
	lines, err := s.Store.ListLines(ctx, c.ID)
	if err != nil {
		return View{}, err
	}
	if lines == nil {
		lines = []Line{}
	}
	return View{Cart: c, Lines: lines, Total: Total(lines)}, nil
}

// Total computes the cart total from its lines via the billing core.
func Total(lines []Line) int64 {
	billable := make([]billing.CartLine, 0, len(lines))
	for _, line := range lines {
		if line.Service == nil {
			billable = append(billable, billing.CartLine{})
			continue
		}
		billable = append(billable, billing.CartLine{Service: &billing.PricedService{
			Price:    line.Service.Price,
			Discount: line.Service.Discount(),
		}})
	}
	return billing.CartTotal(billable)
}

// AddItem puts a catalog service into the user's cart.
func (s *Service) AddItem(ctx context.Context, userID, serviceID string) (Line, error) {
	if s == nil || s.Store == nil || s.Catalog == nil {
		return Line{}, errors.New("cart service not configured")
	}
	if serviceID == "" {
		return Line{}, fmt.Errorf("serviceId is required: %w", ErrInvalidInput)
	}
	item, err := s.Catalog.ItemByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Line{}, fmt.Errorf("unknown service: %w", ErrInvalidInput)
		}
		return Line{}, err
	}
	if !item.Active {
		return Line{}, fmt.Errorf("service is not available: %w", ErrInvalidInput)
	}
	c, err := s.Store.EnsureCart(ctx, userID)
	if err != nil {
		return Line{}, err
	}
	line, err := s.Store.AddLine(ctx, c.ID, serviceID)
	if err != nil {
		return Line{}, err
	}
	line.Service = &item
	return line, nil
}

// RemoveItem removes one line from the user's cart.
func (s *Service) RemoveItem(ctx context.Context, userID, lineID string) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	c, err := s.Store.EnsureCart(ctx, userID)
	if err != nil {
		return err
	}
	return s.Store.RemoveLine(ctx, c.ID, lineID)
}

// Cancel empties the user's cart.
func (s *Service) Cancel(ctx context.Context, userID string) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	c, err := s.Store.EnsureCart(ctx, userID)
	if err != nil {
		return err
	}
	return s.Store.Clear(ctx, c.ID)
}

// Checkout confirms the cart lines, hands them to the assigner as pending
// service assignments, and clears the cart.
func (s *Service) Checkout(ctx context.Context, userID string) (int64, error) {
	if s == nil || s.Store == nil || s.Assigner == nil {
		return 0, errors.New("cart service not configured")
	}
	c, err := s.Store.EnsureCart(ctx, userID)
	if err != nil {
		return 0, err
	}
	lines, err := s.Store.ConfirmLines(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	items := make([]catalog.Item, 0, len(lines))
	for _, line := range lines {
		if line.Service == nil || !line.Service.Active {
			continue
		}
		items = append(items, *line.Service)
	}
	if len(items) == 0 {
		s.observeCheckout("empty")
		return 0, ErrEmptyCart
	}
	if err := s.Assigner.AssignFromCheckout(ctx, userID, items); err != nil {
		s.observeCheckout("error")
		return 0, err
	}
	if err := s.Store.Clear(ctx, c.ID); err != nil {
		return 0, err
	}
	s.observeCheckout("ok")
	return Total(lines), nil
}

func (s *Service) observeCheckout(result string) {
	if obs.CartCheckoutTotal != nil {
		obs.CartCheckoutTotal.WithLabelValues(result).Inc()
	}
}
