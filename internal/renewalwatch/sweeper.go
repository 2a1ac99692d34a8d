// Package renewalwatch periodically finds unpaid renewals that crossed their
// due date and raises an overdue notice for each, exactly once.
package renewalwatch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/murphys-tech/catalog-api/internal/assignment"
	"github.com/murphys-tech/catalog-api/internal/lock"
	"github.com/murphys-tech/catalog-api/internal/notice"
	"github.com/murphys-tech/catalog-api/internal/obs"
)

const defaultBatchSize = 500

// AssignmentStore is the slice of assignment persistence the sweep needs.
type AssignmentStore interface {
	ListOverdueUnnotified(ctx context.Context, now time.Time, limit int32) ([]assignment.OverdueRenewal, error)
	MarkOverdueNotified(ctx context.Context, renewalID string, at time.Time) error
}

// Notifier publishes the overdue notice for one renewal.
type Notifier interface {
	NotifyOverdue(ctx context.Context, clientID, invoiceID, serviceName string, amount int64, due time.Time) (notice.Notice, error)
}

// Sweeper walks newly overdue renewals and notifies their owners.
type Sweeper struct {
	Assignments AssignmentStore
	Notices     Notifier
	Locker      lock.Locker
	LockTTL     time.Duration
	BatchSize   int32
	Logger      zerolog.Logger
	Now         func() time.Time
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Sweep runs one pass and returns the number of renewals notified. Renewals
// that fail to notify stay unmarked and are retried on the next pass.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		if obs.OverdueSweepDuration != nil {
			obs.OverdueSweepDuration.Observe(time.Since(start).Seconds())
		}
	}()

	batch := s.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	now := s.now()
	overdue, err := s.Assignments.ListOverdueUnnotified(ctx, now, batch)
	if err != nil {
		return 0, err
	}

	var notified int
	for _, item := range overdue {
		if _, err := s.Notices.NotifyOverdue(ctx, item.ClientID, item.InvoiceID,
			item.ServiceName, item.Amount, item.DueDate); err != nil {
			s.Logger.Error().Err(err).
				Str("renewal_id", item.RenewalID).
				Str("invoice_id", item.InvoiceID).
				Msg("overdue notice failed")
			continue
		}
		if err := s.Assignments.MarkOverdueNotified(ctx, item.RenewalID, now); err != nil {
			s.Logger.Error().Err(err).
				Str("renewal_id", item.RenewalID).
				Msg("mark notified failed")
			continue
		}
		notified++
		if obs.OverdueNoticesTotal != nil {
			obs.OverdueNoticesTotal.Inc()
		}
	}
	if notified > 0 {
		s.Logger.Info().Int("notified", notified).Msg("overdue sweep complete")
	}
	return notified, nil
}

// SweepLocked runs Sweep under a distributed lock so concurrent workers do
// not double-notify. Without a Redis client it falls back to a plain sweep.
func (s *Sweeper) SweepLocked(ctx context.Context) error {
	if s.Locker.R == nil {
		_, err := s.Sweep(ctx)
		return err
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.Locker.WithLock(ctx, "renewalwatch:sweep", ttl, func(ctx context.Context) error {
		_, err := s.Sweep(ctx)
		return err
	})
}
