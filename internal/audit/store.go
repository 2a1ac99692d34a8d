package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one audited administrative action.
type Entry struct {
	ID           int64           `json:"id"`
	ActorKind    string          `json:"actorKind"`
	ActorUserID  *string         `json:"actorUserId,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   *string         `json:"resourceId,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Route        *string         `json:"route,omitempty"`
	Status       int32           `json:"status"`
	IP           *string         `json:"ip,omitempty"`
	UserAgent    *string         `json:"userAgent,omitempty"`
	RequestID    *string         `json:"requestId,omitempty"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// InsertParams carries the columns of a new audit entry.
type InsertParams struct {
	ActorKind    string
	ActorUserID  *string
	Action       string
	ResourceType string
	ResourceID   *string
	Method       string
	Path         string
	Route        *string
	Status       int32
	IP           *string
	UserAgent    *string
	RequestID    *string
	Metadata     []byte
}

// Store persists audit entries in PostgreSQL.
type Store struct {
	Pool *pgxpool.Pool
}

func (s *Store) Insert(ctx context.Context, p InsertParams) error {
	_, err := s.Pool.Exec(ctx, `
INSERT INTO audit_logs (actor_kind, actor_user_id, action, resource_type, resource_id,
                        method, path, route, status, ip, user_agent, request_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ActorKind, p.ActorUserID, p.Action, p.ResourceType, p.ResourceID,
		p.Method, p.Path, p.Route, p.Status, p.IP, p.UserAgent, p.RequestID, p.Metadata)
	return err
}

func (s *Store) List(ctx context.Context, limit, offset int32) ([]Entry, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT id, actor_kind, actor_user_id, action, resource_type, resource_id,
       method, path, route, status, ip, user_agent, request_id, metadata, created_at
  FROM audit_logs
 ORDER BY created_at DESC
 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorKind, &e.ActorUserID, &e.Action, &e.ResourceType,
			&e.ResourceID, &e.Method, &e.Path, &e.Route, &e.Status, &e.IP, &e.UserAgent,
			&e.RequestID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
