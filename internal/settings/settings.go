// Package settings manages the single-row site configuration record.
package settings

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/murphys-tech/catalog-api/internal/obs"
)

const cacheKey = "settings:site"

// Settings is the site-wide configuration exposed by the API.
type Settings struct {
	SiteName     string    `json:"siteName"`
	LogoURL      string    `json:"logoUrl"`
	SupportEmail string    `json:"supportEmail"`
	Currency     string    `json:"currency"`
	Maintenance  bool      `json:"maintenance"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Public is the unauthenticated subset of the settings record.
type Public struct {
	SiteName    string `json:"siteName"`
	LogoURL     string `json:"logoUrl"`
	Currency    string `json:"currency"`
	Maintenance bool   `json:"maintenance"`
}

// Store reads and writes the settings row.
type Store struct {
	Pool *pgxpool.Pool
}

// Get loads the settings row.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	var out Settings
	err := s.Pool.QueryRow(ctx, `
		SELECT site_name, logo_url, support_email, currency, maintenance, updated_at
		FROM site_settings WHERE id = 1`,
	).Scan(&out.SiteName, &out.LogoURL, &out.SupportEmail, &out.Currency,
		&out.Maintenance, &out.UpdatedAt)
	return out, err
}

// Update overwrites the settings row and returns the stored state.
func (s *Store) Update(ctx context.Context, in Settings) (Settings, error) {
	var out Settings
	err := s.Pool.QueryRow(ctx, `
		UPDATE site_settings
		SET site_name = $1, logo_url = $2, support_email = $3, currency = $4,
			maintenance = $5, updated_at = now()
		WHERE id = 1
		RETURNING site_name, logo_url, support_email, currency, maintenance, updated_at`,
		in.SiteName, in.LogoURL, in.SupportEmail, in.Currency, in.Maintenance,
	).Scan(&out.SiteName, &out.LogoURL, &out.SupportEmail, &out.Currency,
		&out.Maintenance, &out.UpdatedAt)
	return out, err
}

// Storer is the persistence surface the service needs.
type Storer interface {
	Get(ctx context.Context) (Settings, error)
	Update(ctx context.Context, in Settings) (Settings, error)
}

// Service serves settings through a short-lived Redis cache.
type Service struct {
	Store Storer
	Redis *redis.Client
	TTL   time.Duration
}

// Get returns the current settings, from cache when possible.
func (s *Service) Get(ctx context.Context) (Settings, error) {
	if s.Redis != nil {
		if data, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached Settings
			if json.Unmarshal(data, &cached) == nil {
				observe("hit")
				return cached, nil
			}
		} else if err == redis.Nil {
			observe("miss")
		} else {
			observe("error")
		}
	}
	current, err := s.Store.Get(ctx)
	if err != nil {
		return Settings{}, err
	}
	s.cache(ctx, current)
	return current, nil
}

// GetPublic returns the unauthenticated subset.
func (s *Service) GetPublic(ctx context.Context) (Public, error) {
	full, err := s.Get(ctx)
	if err != nil {
		return Public{}, err
	}
	return Public{
		SiteName:    full.SiteName,
		LogoURL:     full.LogoURL,
		Currency:    full.Currency,
		Maintenance: full.Maintenance,
	}, nil
}

// Update stores new settings and refreshes the cache.
func (s *Service) Update(ctx context.Context, in Settings) (Settings, error) {
	updated, err := s.Store.Update(ctx, in)
	if err != nil {
		return Settings{}, err
	}
	s.cache(ctx, updated)
	return updated, nil
}

func (s *Service) cache(ctx context.Context, v Settings) {
	if s.Redis == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.Redis.Set(ctx, cacheKey, data, s.TTL).Err()
	}
}

func observe(result string) {
	if obs.CacheLookupTotal != nil {
		obs.CacheLookupTotal.WithLabelValues("settings", result).Inc()
	}
}
