package ticket

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/murphys-tech/catalog-api/internal/common"
)

type memStore struct {
	tickets map[string]*Ticket
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{tickets: map[string]*Ticket{}}
}

func (m *memStore) Create(_ context.Context, clientID, subject, body string) (Ticket, error) {
	m.nextID++
	t := Ticket{
		ID:       fmt.Sprintf("t%d", m.nextID),
		ClientID: clientID, Subject: subject, Body: body,
		Status: StatusOpen, Replies: []Reply{},
	}
	m.tickets[t.ID] = &t
	return t, nil
}

func (m *memStore) Get(_ context.Context, id string) (Ticket, error) {
	t, ok := m.tickets[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	return *t, nil
}

func (m *memStore) ListByClient(_ context.Context, clientID string) ([]Ticket, error) {
	var out []Ticket
	for _, t := range m.tickets {
		if t.ClientID == clientID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) ListAll(_ context.Context, status string) ([]Ticket, error) {
	var out []Ticket
	for _, t := range m.tickets {
		if status == "" || t.Status == status {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) AddReply(_ context.Context, ticketID, authorID, authorRole, message, newStatus string) (Reply, error) {
	t, ok := m.tickets[ticketID]
	if !ok {
		return Reply{}, ErrNotFound
	}
	m.nextID++
	r := Reply{
		ID: fmt.Sprintf("r%d", m.nextID), TicketID: ticketID,
		AuthorID: authorID, AuthorRole: authorRole, Message: message,
		CreatedAt: time.Now(),
	}
	t.Replies = append(t.Replies, r)
	t.Status = newStatus
	return r, nil
}

func (m *memStore) SetStatus(_ context.Context, id, status string) error {
	t, ok := m.tickets[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	return nil
}

func TestOpenRequiresSubjectAndBody(t *testing.T) {
	svc := &Service{Store: newMemStore()}
	if _, err := svc.Open(context.Background(), "c1", "  ", "body"); err == nil {
		t.Fatal("expected blank subject to be rejected")
	}
	ticket, err := svc.Open(context.Background(), "c1", "DNS broken", "details")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if ticket.Status != StatusOpen {
		t.Fatalf("status %q", ticket.Status)
	}
}

func TestReplyStatusTransitions(t *testing.T) {
	store := newMemStore()
	outbox := &common.InMemoryEmail{}
	svc := &Service{Store: store, Email: outbox}
	ctx := context.Background()

	ticket, _ := svc.Open(ctx, "c1", "DNS broken", "details")

	if _, err := svc.Reply(ctx, "intruder", common.RoleClient, ticket.ID, "hi"); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if _, err := svc.Reply(ctx, "admin-1", common.RoleAdmin, ticket.ID, "checking now"); err != nil {
		t.Fatalf("admin reply: %v", err)
	}
	got, _ := store.Get(ctx, ticket.ID)
	if got.Status != StatusAnswered {
		t.Fatalf("status after admin reply: %q", got.Status)
	}
	if len(outbox.Outbox) != 1 {
		t.Fatalf("expected 1 notification email, got %d", len(outbox.Outbox))
	}

	if _, err := svc.Reply(ctx, "c1", common.RoleClient, ticket.ID, "still broken"); err != nil {
		t.Fatalf("client reply: %v", err)
	}
	got, _ = store.Get(ctx, ticket.ID)
	if got.Status != StatusOpen {
		t.Fatalf("client reply must reopen, got %q", got.Status)
	}
}

func TestClosedTicketRejectsReplies(t *testing.T) {
	store := newMemStore()
	svc := &Service{Store: store}
	ctx := context.Background()

	ticket, _ := svc.Open(ctx, "c1", "DNS broken", "details")
	if err := svc.Close(ctx, "c1", false, ticket.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := svc.Reply(ctx, "c1", common.RoleClient, ticket.ID, "reopening?"); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	// closing twice is a no-op
	if err := svc.Close(ctx, "c1", false, ticket.ID); err != nil {
		t.Fatalf("re-close: %v", err)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	store := newMemStore()
	svc := &Service{Store: store}
	ctx := context.Background()

	ticket, _ := svc.Open(ctx, "c1", "DNS broken", "details")
	if _, err := svc.Get(ctx, "c2", false, ticket.ID); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(ctx, "admin-1", true, ticket.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}
	if _, err := svc.All(ctx, "archived"); err == nil {
		t.Fatal("expected unknown status filter to be rejected")
	}
}
