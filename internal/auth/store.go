package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the user or token does not exist.
var ErrNotFound = errors.New("auth: not found")

// UserRecord is the persisted user row.
type UserRecord struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken is a persisted refresh session. Only the token hash is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Store executes auth queries against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const userColumns = "id, name, email, password_hash, role, created_at, updated_at"

func scanUser(row pgx.Row) (UserRecord, error) {
	var u UserRecord
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser inserts a user row.
func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash, role string) (UserRecord, error) {
	return scanUser(s.Pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns, name, email, passwordHash, role))
}

// GetUserByEmail loads a user by normalised email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	u, err := scanUser(s.Pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email))
	if errors.Is(err, pgx.ErrNoRows) {
		return UserRecord{}, ErrNotFound
	}
	return u, err
}

// GetUserByID loads a user by identifier.
func (s *Store) GetUserByID(ctx context.Context, id string) (UserRecord, error) {
	u, err := scanUser(s.Pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return UserRecord{}, ErrNotFound
	}
	return u, err
}

// CreateRefreshToken persists a refresh token hash for a user.
func (s *Store) CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)`, userID, tokenHash, expiresAt)
	return err
}

// GetRefreshToken loads a refresh token by its hash.
func (s *Store) GetRefreshToken(ctx context.Context, tokenHash string) (RefreshToken, error) {
	var t RefreshToken
	err := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at
		FROM refresh_tokens WHERE token_hash = $1`, tokenHash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RefreshToken{}, ErrNotFound
	}
	return t, err
}

// RotateRefreshToken swaps the stored hash and expiry on an existing session.
func (s *Store) RotateRefreshToken(ctx context.Context, id, newHash string, expiresAt time.Time) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE refresh_tokens SET token_hash = $2, expires_at = $3
		WHERE id = $1 AND revoked_at IS NULL`, id, newHash, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeRefreshToken marks a refresh token revoked by its hash.
func (s *Store) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE token_hash = $1 AND revoked_at IS NULL`, tokenHash)
	return err
}

// RevokeUserTokens revokes every live refresh token belonging to a user.
func (s *Store) RevokeUserTokens(ctx context.Context, userID string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	return err
}
