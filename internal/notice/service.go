package notice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidInput indicates a rejected field value.
var ErrInvalidInput = errors.New("notice: invalid input")

// Storer is the persistence surface the service needs.
type Storer interface {
	Create(ctx context.Context, title, body, audience string, clientID *string, expiresAt *time.Time) (Notice, error)
	ActiveForClient(ctx context.Context, clientID string, now time.Time) ([]Notice, error)
	ListAll(ctx context.Context) ([]Notice, error)
	Delete(ctx context.Context, id string) error
}

// Service owns notice publication rules.
type Service struct {
	Store      Storer
	DefaultTTL time.Duration
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// PublishInput describes a notice to publish.
type PublishInput struct {
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Audience  string     `json:"audience"`
	ClientID  string     `json:"clientId"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// Publish validates and creates a notice. Targeted notices require a client;
// broadcast notices must not carry one. A missing expiry falls back to the
// configured default TTL when one is set.
func (s *Service) Publish(ctx context.Context, in PublishInput) (Notice, error) {
	title := strings.TrimSpace(in.Title)
	body := strings.TrimSpace(in.Body)
	if title == "" || body == "" {
		return Notice{}, fmt.Errorf("%w: title and body required", ErrInvalidInput)
	}
	audience := in.Audience
	if audience == "" {
		audience = AudienceAll
	}
	var clientID *string
	switch audience {
	case AudienceAll:
		if in.ClientID != "" {
			return Notice{}, fmt.Errorf("%w: broadcast notice cannot target a client", ErrInvalidInput)
		}
	case AudienceClient:
		if in.ClientID == "" {
			return Notice{}, fmt.Errorf("%w: targeted notice requires a client", ErrInvalidInput)
		}
		clientID = &in.ClientID
	default:
		return Notice{}, fmt.Errorf("%w: audience %q", ErrInvalidInput, in.Audience)
	}
	expiresAt := in.ExpiresAt
	if expiresAt == nil && s.DefaultTTL > 0 {
		t := s.now().Add(s.DefaultTTL)
		expiresAt = &t
	}
	return s.Store.Create(ctx, title, body, audience, clientID, expiresAt)
}

// NotifyOverdue publishes a targeted notice telling a client an invoice went
// overdue. Used by the renewal sweep.
func (s *Service) NotifyOverdue(ctx context.Context, clientID, invoiceID, serviceName string, amount int64, due time.Time) (Notice, error) {
	return s.Publish(ctx, PublishInput{
		Title:    fmt.Sprintf("Invoice %s is overdue", invoiceID),
		Body:     fmt.Sprintf("Payment of %d for %s was due on %s.", amount, serviceName, due.Format("2006-01-02")),
		Audience: AudienceClient,
		ClientID: clientID,
	})
}

// ForClient lists the notices currently visible to a client.
func (s *Service) ForClient(ctx context.Context, clientID string) ([]Notice, error) {
	return s.Store.ActiveForClient(ctx, clientID, s.now())
}

// All lists every notice including expired ones. Admin use.
func (s *Service) All(ctx context.Context) ([]Notice, error) {
	return s.Store.ListAll(ctx)
}

// Remove deletes a notice. Admin use.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.Store.Delete(ctx, id)
}
