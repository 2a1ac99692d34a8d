package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/murphys-tech/catalog-api/internal/common"
)

var (
	// ErrForbidden indicates the caller does not own the ticket.
	ErrForbidden = errors.New("ticket: forbidden")
	// ErrInvalidInput indicates a rejected field value.
	ErrInvalidInput = errors.New("ticket: invalid input")
	// ErrClosed indicates an operation on a closed ticket.
	ErrClosed = errors.New("ticket: closed")
)

// Storer is the persistence surface the service needs.
type Storer interface {
	Create(ctx context.Context, clientID, subject, body string) (Ticket, error)
	Get(ctx context.Context, id string) (Ticket, error)
	ListByClient(ctx context.Context, clientID string) ([]Ticket, error)
	ListAll(ctx context.Context, status string) ([]Ticket, error)
	AddReply(ctx context.Context, ticketID, authorID, authorRole, message, newStatus string) (Reply, error)
	SetStatus(ctx context.Context, id, status string) error
}

// Service owns ticket thread rules. Admin replies mark the ticket answered;
// a client reply reopens it.
type Service struct {
	Store  Storer
	Email  common.EmailSender
	Logger zerolog.Logger
}

// Open creates a ticket for a client.
func (s *Service) Open(ctx context.Context, clientID, subject, body string) (Ticket, error) {
	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if subject == "" || body == "" {
		return Ticket{}, fmt.Errorf("%w: subject and body required", ErrInvalidInput)
	}
	return s.Store.Create(ctx, clientID, subject, body)
}

// Mine lists the client's own tickets.
func (s *Service) Mine(ctx context.Context, clientID string) ([]Ticket, error) {
	return s.Store.ListByClient(ctx, clientID)
}

// All lists tickets across clients with an optional status filter. Admin use.
func (s *Service) All(ctx context.Context, status string) ([]Ticket, error) {
	switch status {
	case "", StatusOpen, StatusAnswered, StatusClosed:
	default:
		return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, status)
	}
	return s.Store.ListAll(ctx, status)
}

// Get loads a ticket thread, enforcing ownership for non-admin callers.
func (s *Service) Get(ctx context.Context, callerID string, isAdmin bool, ticketID string) (Ticket, error) {
	t, err := s.Store.Get(ctx, ticketID)
	if err != nil {
		return Ticket{}, err
	}
	if !isAdmin && t.ClientID != callerID {
		return Ticket{}, ErrForbidden
	}
	return t, nil
}

// Reply appends a message to the thread. The ticket must not be closed.
func (s *Service) Reply(ctx context.Context, callerID, callerRole, ticketID, message string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, fmt.Errorf("%w: message required", ErrInvalidInput)
	}
	t, err := s.Store.Get(ctx, ticketID)
	if err != nil {
		return Reply{}, err
	}
	isAdmin := callerRole == common.RoleAdmin
	if !isAdmin && t.ClientID != callerID {
		return Reply{}, ErrForbidden
	}
	if t.Status == StatusClosed {
		return Reply{}, ErrClosed
	}
	newStatus := StatusOpen
	if isAdmin {
		newStatus = StatusAnswered
	}
	reply, err := s.Store.AddReply(ctx, ticketID, callerID, callerRole, message, newStatus)
	if err != nil {
		return Reply{}, err
	}
	if isAdmin && s.Email != nil {
		if err := s.Email.Send(t.ClientID,
			"Your ticket has a new reply: "+t.Subject, message); err != nil {
			s.Logger.Warn().Err(err).Str("ticket_id", ticketID).Msg("ticket reply email failed")
		}
	}
	return reply, nil
}

// Close moves a ticket to closed. Owners and admins may close.
func (s *Service) Close(ctx context.Context, callerID string, isAdmin bool, ticketID string) error {
	t, err := s.Store.Get(ctx, ticketID)
	if err != nil {
		return err
	}
	if !isAdmin && t.ClientID != callerID {
		return ErrForbidden
	}
	if t.Status == StatusClosed {
		return nil
	}
	return s.Store.SetStatus(ctx, ticketID, StatusClosed)
}
