package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/murphys-tech/catalog-api/internal/billing"
	"github.com/murphys-tech/catalog-api/internal/catalog"
	"github.com/murphys-tech/catalog-api/internal/obs"
)

var (
	// ErrForbidden indicates the caller does not own the assignment.
	ErrForbidden = errors.New("assignment: forbidden")
	// ErrInvalidInput indicates a rejected field value.
	ErrInvalidInput = errors.New("assignment: invalid input")
)

// Storer is the persistence surface the service needs.
type Storer interface {
	Create(ctx context.Context, in CreateInput) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	ListByClient(ctx context.Context, clientID string) ([]Record, error)
	ListAll(ctx context.Context, limit, offset int32) ([]Record, int64, error)
	SetAcceptance(ctx context.Context, id, state string) error
	AddRenewal(ctx context.Context, assignmentID, label string, dueDate *time.Time, price *int64) (RenewalRecord, error)
	MarkRenewalPaid(ctx context.Context, renewalID string, paid bool) error
}

// Service owns assignment lifecycle rules.
type Service struct {
	Store Storer
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// NewInvoiceID mints a human-readable invoice reference.
func NewInvoiceID() string {
	return "INV-" + strings.ToUpper(uuid.NewString()[:8])
}

// AssignInput is an admin-initiated assignment of a service to a client.
type AssignInput struct {
	ClientID    string     `json:"clientId" validate:"required"`
	ServiceID   string     `json:"serviceId" validate:"required"`
	ServiceName string     `json:"serviceName"`
	Price       int64      `json:"price" validate:"gte=0"`
	Cycle       string     `json:"cycle"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

// Assign creates an assignment directly, bypassing the cart. Admin use.
func (s *Service) Assign(ctx context.Context, in AssignInput) (Record, error) {
	if in.ClientID == "" || in.ServiceID == "" {
		return Record{}, ErrInvalidInput
	}
	cycle := in.Cycle
	switch billing.Cycle(cycle) {
	case billing.CycleMonthly, billing.CycleAnnual, billing.CycleNone:
	case "":
		cycle = string(billing.CycleNone)
	default:
		return Record{}, fmt.Errorf("%w: cycle %q", ErrInvalidInput, in.Cycle)
	}
	if in.Price < 0 {
		return Record{}, fmt.Errorf("%w: negative price", ErrInvalidInput)
	}
	rec, err := s.Store.Create(ctx, CreateInput{
		InvoiceID:   NewInvoiceID(),
		ClientID:    in.ClientID,
		ServiceID:   in.ServiceID,
		ServiceName: in.ServiceName,
		Price:       in.Price,
		Cycle:       cycle,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		IsAccepted:  string(billing.AcceptancePending),
	})
	if err != nil {
		return Record{}, err
	}
	countEvent("assigned")
	return rec, nil
}

// AssignFromCheckout converts confirmed cart items into pending assignments.
// Each item is billed at its effective price at checkout time.
func (s *Service) AssignFromCheckout(ctx context.Context, clientID string, items []catalog.Item) error {
	start := s.now()
	for _, item := range items {
		_, err := s.Store.Create(ctx, CreateInput{
			InvoiceID:   NewInvoiceID(),
			ClientID:    clientID,
			ServiceID:   item.ID,
			ServiceName: item.Name,
			Price:       item.EffectivePrice(),
			Cycle:       string(billing.CycleNone),
			StartDate:   &start,
			IsAccepted:  string(billing.AcceptancePending),
		})
		if err != nil {
			return fmt.Errorf("assign %s: %w", item.ID, err)
		}
		countEvent("checkout")
	}
	return nil
}

// Respond records the client's accept or reject decision. Only the owning
// client may respond, and only while the assignment is pending.
func (s *Service) Respond(ctx context.Context, clientID, assignmentID string, accept bool) (Record, error) {
	rec, err := s.Store.Get(ctx, assignmentID)
	if err != nil {
		return Record{}, err
	}
	if rec.ClientID != clientID {
		return Record{}, ErrForbidden
	}
	if rec.IsAccepted != string(billing.AcceptancePending) {
		return Record{}, fmt.Errorf("%w: already %s", ErrInvalidInput, rec.IsAccepted)
	}
	state := string(billing.AcceptanceRejected)
	event := "rejected"
	if accept {
		state = string(billing.AcceptanceAccepted)
		event = "accepted"
	}
	if err := s.Store.SetAcceptance(ctx, assignmentID, state); err != nil {
		return Record{}, err
	}
	rec.IsAccepted = state
	countEvent(event)
	return rec, nil
}

// RenewalInput describes a renewal occurrence to append.
type RenewalInput struct {
	Label   string     `json:"label"`
	DueDate *time.Time `json:"date"`
	Price   *int64     `json:"price"`
}

// AddRenewal appends a renewal occurrence to an existing assignment.
func (s *Service) AddRenewal(ctx context.Context, assignmentID string, in RenewalInput) (RenewalRecord, error) {
	if in.Price != nil && *in.Price < 0 {
		return RenewalRecord{}, fmt.Errorf("%w: negative price", ErrInvalidInput)
	}
	if _, err := s.Store.Get(ctx, assignmentID); err != nil {
		return RenewalRecord{}, err
	}
	ren, err := s.Store.AddRenewal(ctx, assignmentID, in.Label, in.DueDate, in.Price)
	if err != nil {
		return RenewalRecord{}, err
	}
	countEvent("renewal_added")
	return ren, nil
}

// MarkRenewalPaid records a payment against a renewal.
func (s *Service) MarkRenewalPaid(ctx context.Context, renewalID string, paid bool) error {
	if err := s.Store.MarkRenewalPaid(ctx, renewalID, paid); err != nil {
		return err
	}
	countEvent("renewal_paid")
	return nil
}

// ForClient returns all assignments owned by a client.
func (s *Service) ForClient(ctx context.Context, clientID string) ([]Record, error) {
	return s.Store.ListByClient(ctx, clientID)
}

// All returns a page of assignments across all clients.
func (s *Service) All(ctx context.Context, limit, offset int32) ([]Record, int64, error) {
	return s.Store.ListAll(ctx, limit, offset)
}

// Get loads one assignment.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.Store.Get(ctx, id)
}

func countEvent(action string) {
	if obs.AssignmentEventsTotal != nil {
		obs.AssignmentEventsTotal.WithLabelValues(action).Inc()
	}
}
