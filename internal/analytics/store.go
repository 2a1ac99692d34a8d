package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Overview aggregates the headline numbers shown on the admin dashboard.
type Overview struct {
	Clients            int64 `json:"clients"`
	ActiveServices     int64 `json:"activeServices"`
	PendingAssignments int64 `json:"pendingAssignments"`
	OpenTickets        int64 `json:"openTickets"`
	OverdueRenewals    int64 `json:"overdueRenewals"`
	OverdueAmount      int64 `json:"overdueAmount"`
	CollectedAmount    int64 `json:"collectedAmount"`
}

// RevenuePoint is one day of collected renewal payments.
type RevenuePoint struct {
	Day    time.Time `json:"day"`
	Amount int64     `json:"amount"`
	Count  int64     `json:"count"`
}

// Store runs the aggregate queries behind the dashboard.
type Store struct {
	Pool *pgxpool.Pool
}

func (s *Store) Overview(ctx context.Context, now time.Time) (Overview, error) {
	var o Overview
	err := s.Pool.QueryRow(ctx, `
SELECT
  (SELECT count(*) FROM users WHERE role = 'client'),
  (SELECT count(*) FROM services WHERE active),
  (SELECT count(*) FROM assignments WHERE is_accepted = 'pending'),
  (SELECT count(*) FROM tickets WHERE status <> 'closed'),
  (SELECT count(*) FROM renewal_dates WHERE NOT has_paid AND due_date < $1),
  (SELECT COALESCE(SUM(COALESCE(r.price, a.price)), 0)
     FROM renewal_dates r JOIN assignments a ON a.id = r.assignment_id
    WHERE NOT r.has_paid AND r.due_date < $1),
  (SELECT COALESCE(SUM(COALESCE(r.price, a.price)), 0)
     FROM renewal_dates r JOIN assignments a ON a.id = r.assignment_id
    WHERE r.has_paid)`, now).
		Scan(&o.Clients, &o.ActiveServices, &o.PendingAssignments, &o.OpenTickets,
			&o.OverdueRenewals, &o.OverdueAmount, &o.CollectedAmount)
	return o, err
}

// RevenueRange returns collected renewal payments per day, from inclusive, to exclusive.
func (s *Store) RevenueRange(ctx context.Context, from, to time.Time) ([]RevenuePoint, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT date_trunc('day', r.due_date) AS day,
       COALESCE(SUM(COALESCE(r.price, a.price)), 0),
       count(*)
  FROM renewal_dates r
  JOIN assignments a ON a.id = r.assignment_id
 WHERE r.has_paid AND r.due_date >= $1 AND r.due_date < $2
 GROUP BY day
 ORDER BY day`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var points []RevenuePoint
	for rows.Next() {
		var p RevenuePoint
		if err := rows.Scan(&p.Day, &p.Amount, &p.Count); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
