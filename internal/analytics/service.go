package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/murphys-tech/catalog-api/internal/obs"
)

// Storer defines the database access required for dashboard reads.
type Storer interface {
	Overview(ctx context.Context, now time.Time) (Overview, error)
	RevenueRange(ctx context.Context, from, to time.Time) ([]RevenuePoint, error)
}

// Service provides cached access to the dashboard aggregates.
type Service struct {
	Store        Storer
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// Overview returns the headline dashboard numbers, cached briefly.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	if s == nil || s.Store == nil {
		return Overview{}, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("an", "overview")
	var cached Overview
	if s.getCached(ctx, key, &cached) {
		return cached, nil
	}
	overview, err := s.Store.Overview(ctx, s.now())
	if err != nil {
		return Overview{}, err
	}
	s.store(ctx, key, overview)
	return overview, nil
}

// Revenue returns collected payments between the bounds, from inclusive, to exclusive.
func (s *Service) Revenue(ctx context.Context, from, to time.Time) ([]RevenuePoint, error) {
	if s == nil || s.Store == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("an", "rev", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached []RevenuePoint
	if s.getCached(ctx, key, &cached) {
		return cached, nil
	}
	points, err := s.Store.RevenueRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, points)
	return points, nil
}

func (s *Service) getCached(ctx context.Context, key string, dest any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			observe("miss")
		} else {
			observe("error")
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		observe("error")
		return false
	}
	observe("hit")
	return true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}

func observe(result string) {
	if obs.CacheLookupTotal != nil {
		obs.CacheLookupTotal.WithLabelValues("analytics", result).Inc()
	}
}
