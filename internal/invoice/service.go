// Package invoice presents assignments and renewals as a flat, filterable
// list of invoice rows.
package invoice

import (
	"context"
	"time"

	"github.com/murphys-tech/catalog-api/internal/assignment"
	"github.com/murphys-tech/catalog-api/internal/billing"
	"github.com/murphys-tech/catalog-api/internal/obs"
)

// Source supplies the assignment records the view is built from.
type Source interface {
	ForClient(ctx context.Context, clientID string) ([]assignment.Record, error)
	All(ctx context.Context, limit, offset int32) ([]assignment.Record, int64, error)
}

// allRecordsLimit bounds the admin-wide flatten. The view is not paginated
// because filtering and sorting happen after flattening.
const allRecordsLimit = 10000

// Service derives invoice rows from assignment records.
type Service struct {
	Assignments Source
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Summary totals rows per status bucket, computed before any filter.
type Summary struct {
	Total         int   `json:"total"`
	Paid          int   `json:"paid"`
	Unpaid        int   `json:"unpaid"`
	Overdue       int   `json:"overdue"`
	AmountDue     int64 `json:"amountDue"`
	AmountPaid    int64 `json:"amountPaid"`
	AmountOverdue int64 `json:"amountOverdue"`
}

// Query flattens the relevant assignments and applies the search and status
// filters. An empty clientID means all clients.
func (s *Service) Query(ctx context.Context, clientID, q string, status billing.Status) ([]billing.Row, Summary, error) {
	records, err := s.load(ctx, clientID)
	if err != nil {
		return nil, Summary{}, err
	}
	assignments := make([]billing.Assignment, 0, len(records))
	for _, rec := range records {
		assignments = append(assignments, rec.Billing())
	}
	rows := billing.Flatten(assignments, s.now())
	summary := summarize(rows)
	rows = billing.Present(rows, q, status)
	if obs.BillingQueryTotal != nil {
		obs.BillingQueryTotal.WithLabelValues(string(status)).Inc()
	}
	return rows, summary, nil
}

func (s *Service) load(ctx context.Context, clientID string) ([]assignment.Record, error) {
	if clientID != "" {
		return s.Assignments.ForClient(ctx, clientID)
	}
	records, _, err := s.Assignments.All(ctx, allRecordsLimit, 0)
	return records, err
}

func summarize(rows []billing.Row) Summary {
	var s Summary
	s.Total = len(rows)
	for _, row := range rows {
		switch row.Status() {
		case billing.StatusPaid:
			s.Paid++
			s.AmountPaid += row.Amount
		case billing.StatusOverdue:
			s.Overdue++
			s.AmountOverdue += row.Amount
			s.AmountDue += row.Amount
		default:
			s.Unpaid++
			s.AmountDue += row.Amount
		}
	}
	return s
}
