package ticket

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the ticket or reply does not exist.
var ErrNotFound = errors.New("ticket: not found")

// Ticket statuses.
const (
	StatusOpen     = "open"
	StatusAnswered = "answered"
	StatusClosed   = "closed"
)

// Ticket is a support request raised by a client.
type Ticket struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	Replies   []Reply   `json:"replies,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reply is one message in a ticket thread.
type Reply struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticketId"`
	AuthorID   string    `json:"authorId"`
	AuthorRole string    `json:"authorRole"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store executes ticket queries against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const ticketColumns = "id, client_id, subject, body, status, created_at, updated_at"

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.ClientID, &t.Subject, &t.Body, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// Create opens a new ticket.
func (s *Store) Create(ctx context.Context, clientID, subject, body string) (Ticket, error) {
	return scanTicket(s.Pool.QueryRow(ctx, `
		INSERT INTO tickets (client_id, subject, body)
		VALUES ($1, $2, $3)
		RETURNING `+ticketColumns, clientID, subject, body))
}

// Get loads a ticket with its replies in thread order.
func (s *Store) Get(ctx context.Context, id string) (Ticket, error) {
	t, err := scanTicket(s.Pool.QueryRow(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ticket{}, ErrNotFound
		}
		return Ticket{}, err
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, ticket_id, author_id, author_role, message, created_at
		FROM ticket_replies WHERE ticket_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return Ticket{}, err
	}
	defer rows.Close()
	t.Replies = []Reply{}
	for rows.Next() {
		var r Reply
		if err := rows.Scan(&r.ID, &r.TicketID, &r.AuthorID, &r.AuthorRole, &r.Message, &r.CreatedAt); err != nil {
			return Ticket{}, err
		}
		t.Replies = append(t.Replies, r)
	}
	return t, rows.Err()
}

// ListByClient returns a client's tickets, newest first, without replies.
func (s *Store) ListByClient(ctx context.Context, clientID string) ([]Ticket, error) {
	return s.list(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE client_id = $1 ORDER BY updated_at DESC",
		clientID)
}

// ListAll returns tickets across clients, optionally narrowed by status.
func (s *Store) ListAll(ctx context.Context, status string) ([]Ticket, error) {
	if status != "" {
		return s.list(ctx,
			"SELECT "+ticketColumns+" FROM tickets WHERE status = $1 ORDER BY updated_at DESC",
			status)
	}
	return s.list(ctx,
		"SELECT "+ticketColumns+" FROM tickets ORDER BY updated_at DESC")
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Ticket, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tickets []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// AddReply appends a reply and moves the ticket to the given status.
func (s *Store) AddReply(ctx context.Context, ticketID, authorID, authorRole, message, newStatus string) (Reply, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Reply{}, err
	}
	defer tx.Rollback(ctx)

	var r Reply
	err = tx.QueryRow(ctx, `
		INSERT INTO ticket_replies (ticket_id, author_id, author_role, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, ticket_id, author_id, author_role, message, created_at`,
		ticketID, authorID, authorRole, message,
	).Scan(&r.ID, &r.TicketID, &r.AuthorID, &r.AuthorRole, &r.Message, &r.CreatedAt)
	if err != nil {
		return Reply{}, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE tickets SET status = $2, updated_at = now() WHERE id = $1`,
		ticketID, newStatus); err != nil {
		return Reply{}, err
	}
	return r, tx.Commit(ctx)
}

// SetStatus moves a ticket to a new status.
func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE tickets SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
