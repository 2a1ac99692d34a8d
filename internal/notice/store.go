package notice

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the notice does not exist.
var ErrNotFound = errors.New("notice: not found")

// Audience values.
const (
	AudienceAll    = "all"
	AudienceClient = "client"
)

// Notice is an announcement shown to clients. Audience "all" reaches every
// client; audience "client" targets one.
type Notice struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Audience  string     `json:"audience"`
	ClientID  *string    `json:"clientId,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Store executes notice queries against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const noticeColumns = "id, title, body, audience, client_id, created_at, expires_at"

func scanNotice(row pgx.Row) (Notice, error) {
	var n Notice
	err := row.Scan(&n.ID, &n.Title, &n.Body, &n.Audience, &n.ClientID, &n.CreatedAt, &n.ExpiresAt)
	return n, err
}

// Create inserts a notice. clientID is nil for broadcast notices.
func (s *Store) Create(ctx context.Context, title, body, audience string, clientID *string, expiresAt *time.Time) (Notice, error) {
	return scanNotice(s.Pool.QueryRow(ctx, `
		INSERT INTO notices (title, body, audience, client_id, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+noticeColumns,
		title, body, audience, clientID, expiresAt))
}

// ActiveForClient returns unexpired notices visible to one client, newest
// first: every broadcast notice plus the client's targeted ones.
func (s *Store) ActiveForClient(ctx context.Context, clientID string, now time.Time) ([]Notice, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+noticeColumns+`
		FROM notices
		WHERE (expires_at IS NULL OR expires_at > $2)
		  AND (audience = 'all' OR client_id = $1)
		ORDER BY created_at DESC`, clientID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var notices []Notice
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, err
		}
		notices = append(notices, n)
	}
	return notices, rows.Err()
}

// ListAll returns every notice, newest first. Admin use.
func (s *Store) ListAll(ctx context.Context) ([]Notice, error) {
	rows, err := s.Pool.Query(ctx,
		"SELECT "+noticeColumns+" FROM notices ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var notices []Notice
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, err
		}
		notices = append(notices, n)
	}
	return notices, rows.Err()
}

// Delete removes a notice.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, "DELETE FROM notices WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
