package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/murphys-tech/catalog-api/internal/billing"
)

// ErrNotFound indicates the requested assignment or renewal does not exist.
var ErrNotFound = errors.New("assignment: not found")

// Record is a persisted service assignment. Assignments are historical and
// are never deleted, only amended.
type Record struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoiceId"`
	ClientID    string          `json:"clientId"`
	ServiceID   string          `json:"serviceId"`
	ServiceName string          `json:"serviceName"`
	Price       int64           `json:"price"`
	Cycle       string          `json:"cycle"`
	StartDate   *time.Time      `json:"startDate,omitempty"`
	EndDate     *time.Time      `json:"endDate,omitempty"`
	IsAccepted  string          `json:"isAccepted"`
	Renewals    []RenewalRecord `json:"renewalDates"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RenewalRecord is one scheduled billing occurrence under an assignment.
type RenewalRecord struct {
	ID                string     `json:"id"`
	Label             string     `json:"label"`
	DueDate           *time.Time `json:"date,omitempty"`
	Price             *int64     `json:"price,omitempty"`
	HasPaid           bool       `json:"hasPaid"`
	NotifiedOverdueAt *time.Time `json:"-"`
}

// Billing converts the persisted record into the billing core's input shape.
func (r Record) Billing() billing.Assignment {
	renewals := make([]billing.Renewal, 0, len(r.Renewals))
	for _, ren := range r.Renewals {
		renewals = append(renewals, billing.Renewal{
			ID:    ren.ID,
			Label: ren.Label,
			Date:  ren.DueDate,
			Price: ren.Price,
			Paid:  ren.HasPaid,
		})
	}
	return billing.Assignment{
		ID:          r.ID,
		InvoiceID:   r.InvoiceID,
		ClientID:    r.ClientID,
		ServiceID:   r.ServiceID,
		ServiceName: r.ServiceName,
		Price:       r.Price,
		Cycle:       billing.Cycle(r.Cycle),
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Accepted:    billing.Acceptance(r.IsAccepted),
		Renewals:    renewals,
	}
}

// Store executes assignment queries against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// CreateInput carries the fields needed to create an assignment.
type CreateInput struct {
	InvoiceID   string
	ClientID    string
	ServiceID   string
	ServiceName string
	Price       int64
	Cycle       string
	StartDate   *time.Time
	EndDate     *time.Time
	IsAccepted  string
}

const recordColumns = `id, invoice_id, client_id, service_id, service_name,
	price, cycle, start_date, end_date, is_accepted, created_at, updated_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.InvoiceID, &rec.ClientID, &rec.ServiceID, &rec.ServiceName,
		&rec.Price, &rec.Cycle, &rec.StartDate, &rec.EndDate, &rec.IsAccepted,
		&rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

// Create inserts an assignment record.
func (s *Store) Create(ctx context.Context, in CreateInput) (Record, error) {
	rec, err := scanRecord(s.Pool.QueryRow(ctx, `
		INSERT INTO assignments
			(invoice_id, client_id, service_id, service_name, price, cycle,
			 start_date, end_date, is_accepted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+recordColumns,
		in.InvoiceID, in.ClientID, in.ServiceID, in.ServiceName, in.Price, in.Cycle,
		in.StartDate, in.EndDate, in.IsAccepted))
	if err != nil {
		return Record{}, err
	}
	rec.Renewals = []RenewalRecord{}
	return rec, nil
}

// Get loads one assignment with its renewals.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	rec, err := scanRecord(s.Pool.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM assignments WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if err := s.attachRenewals(ctx, []*Record{&rec}); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListByClient returns all assignments for one client, oldest first.
func (s *Store) ListByClient(ctx context.Context, clientID string) ([]Record, error) {
	return s.list(ctx,
		"SELECT "+recordColumns+" FROM assignments WHERE client_id = $1 ORDER BY created_at",
		clientID)
}

// ListAll returns a page of assignments plus the unpaged total.
func (s *Store) ListAll(ctx context.Context, limit, offset int32) ([]Record, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM assignments").Scan(&total); err != nil {
		return nil, 0, err
	}
	records, err := s.list(ctx,
		"SELECT "+recordColumns+" FROM assignments ORDER BY created_at DESC LIMIT $1 OFFSET $2",
		limit, offset)
	return records, total, err
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		rec.Renewals = []RenewalRecord{}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	refs := make([]*Record, len(records))
	for i := range records {
		refs[i] = &records[i]
	}
	if err := s.attachRenewals(ctx, refs); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) attachRenewals(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, 0, len(records))
	byID := make(map[string]*Record, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
		byID[rec.ID] = rec
		if rec.Renewals == nil {
			rec.Renewals = []RenewalRecord{}
		}
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT assignment_id, id, label, due_date, price, has_paid, notified_overdue_at
		FROM renewal_dates
		WHERE assignment_id = ANY($1)
		ORDER BY created_at`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			assignmentID string
			ren          RenewalRecord
		)
		if err := rows.Scan(&assignmentID, &ren.ID, &ren.Label, &ren.DueDate,
			&ren.Price, &ren.HasPaid, &ren.NotifiedOverdueAt); err != nil {
			return err
		}
		if rec, ok := byID[assignmentID]; ok {
			rec.Renewals = append(rec.Renewals, ren)
		}
	}
	return rows.Err()
}

// SetAcceptance updates the acceptance state of an assignment.
func (s *Store) SetAcceptance(ctx context.Context, id, state string) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE assignments SET is_accepted = $2, updated_at = now() WHERE id = $1`, id, state)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddRenewal appends a renewal occurrence to an assignment.
func (s *Store) AddRenewal(ctx context.Context, assignmentID, label string, dueDate *time.Time, price *int64) (RenewalRecord, error) {
	var ren RenewalRecord
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO renewal_dates (assignment_id, label, due_date, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, label, due_date, price, has_paid`,
		assignmentID, label, dueDate, price,
	).Scan(&ren.ID, &ren.Label, &ren.DueDate, &ren.Price, &ren.HasPaid)
	if err != nil {
		return RenewalRecord{}, err
	}
	_, _ = s.Pool.Exec(ctx, `UPDATE assignments SET updated_at = now() WHERE id = $1`, assignmentID)
	return ren, nil
}

// MarkRenewalPaid flips the paid flag on a renewal.
func (s *Store) MarkRenewalPaid(ctx context.Context, renewalID string, paid bool) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE renewal_dates SET has_paid = $2 WHERE id = $1`, renewalID, paid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// OverdueRenewal is one unpaid, past-due renewal that has not been notified yet.
type OverdueRenewal struct {
	RenewalID   string
	ClientID    string
	InvoiceID   string
	ServiceName string
	DueDate     time.Time
	Amount      int64
}

// ListOverdueUnnotified returns unpaid renewals whose due date passed before
// now and which have not yet produced an overdue notice.
func (s *Store) ListOverdueUnnotified(ctx context.Context, now time.Time, limit int32) ([]OverdueRenewal, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT r.id, a.client_id, a.invoice_id, a.service_name, r.due_date,
			COALESCE(r.price, a.price)
		FROM renewal_dates r
		JOIN assignments a ON a.id = r.assignment_id
		WHERE NOT r.has_paid
		  AND r.due_date IS NOT NULL
		  AND r.due_date < $1
		  AND r.notified_overdue_at IS NULL
		ORDER BY r.due_date
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OverdueRenewal
	for rows.Next() {
		var o OverdueRenewal
		if err := rows.Scan(&o.RenewalID, &o.ClientID, &o.InvoiceID, &o.ServiceName,
			&o.DueDate, &o.Amount); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkOverdueNotified stamps a renewal so the sweep does not notify it twice.
func (s *Store) MarkOverdueNotified(ctx context.Context, renewalID string, at time.Time) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE renewal_dates SET notified_overdue_at = $2 WHERE id = $1`, renewalID, at)
	return err
}
