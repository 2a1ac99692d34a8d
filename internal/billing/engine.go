package billing

import (
	"sort"
	"strings"
	"time"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// DiscountType enumerates the supported discount kinds.
type DiscountType string

const (
	// DiscountPercentage reduces the base price by a percentage.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed reduces the base price by a fixed amount.
	DiscountFixed DiscountType = "fixed"
)

// Discount describes an optional price reduction attached to a catalog service.
type Discount struct {
	Type  DiscountType
	Value int64
}

// ResolveEffectivePrice applies an optional discount to a base price.
// A nil or zero-valued discount degrades to the base price, and the result
// never goes below zero.
func ResolveEffectivePrice(base Money, d *Discount) Money {
	if d == nil || d.Value <= 0 {
		return base
	}
	effective := base
	switch d.Type {
	case DiscountPercentage:
		effective = base - base*d.Value/100
	case DiscountFixed:
		effective = base - d.Value
	default:
		return base
	}
	if effective < 0 {
		return 0
	}
	return effective
}

// PricedService carries the pricing fields of a catalog service referenced by
// a cart line.
type PricedService struct {
	Price    Money
	Discount *Discount
}

// CartLine is one entry in a cart. Lines whose service reference is missing
// contribute nothing to the total.
type CartLine struct {
	Service *PricedService
}

// CartTotal sums the effective prices of all well-formed cart lines. A single
// malformed line must not fail the whole computation, so bad lines are
// skipped rather than reported.
func CartTotal(lines []CartLine) Money {
	var total Money
	for _, line := range lines {
		if line.Service == nil || line.Service.Price < 0 {
			continue
		}
		total += ResolveEffectivePrice(line.Service.Price, line.Service.Discount)
	}
	return total
}

// Acceptance enumerates assignment acceptance states.
type Acceptance string

const (
	AcceptanceAccepted Acceptance = "accepted"
	AcceptancePending  Acceptance = "pending"
	AcceptanceRejected Acceptance = "rejected"
)

// Cycle enumerates billing cycles for an assignment.
type Cycle string

const (
	CycleMonthly Cycle = "monthly"
	CycleAnnual  Cycle = "annual"
	CycleNone    Cycle = "none"
)

// Renewal is one scheduled billing occurrence under an assignment.
type Renewal struct {
	ID    string
	Label string
	Date  *time.Time
	Price *Money
	Paid  bool
}

// Assignment is a client's subscription to a catalog service together with
// its renewal schedule.
type Assignment struct {
	ID          string
	InvoiceID   string
	ClientID    string
	ServiceID   string
	ServiceName string
	Price       Money
	Cycle       Cycle
	StartDate   *time.Time
	EndDate     *time.Time
	Accepted    Acceptance
	Renewals    []Renewal
}

// Source tags where a billable row originated.
type Source string

const (
	SourceService Source = "service"
	SourceRenewal Source = "renewal"
)

// Row is a derived, display-only invoice line. It is rebuilt from assignment
// records on every query and never persisted.
type Row struct {
	Source      Source     `json:"source"`
	ServiceID   string     `json:"serviceId"`
	InvoiceID   string     `json:"invoiceId"`
	RenewalID   string     `json:"renewalId,omitempty"`
	ServiceName string     `json:"serviceName"`
	IssueDate   *time.Time `json:"issueDate,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Amount      Money      `json:"amount"`
	Paid        bool       `json:"paid"`
	Overdue     bool       `json:"isOverdue"`
}

// Status enumerates display buckets for a billable row.
type Status string

const (
	StatusAll     Status = "all"
	StatusPaid    Status = "paid"
	StatusUnpaid  Status = "unpaid"
	StatusOverdue Status = "overdue"
)

// IsOverdue reports whether an unpaid obligation with the given due date has
// lapsed. A missing due date can never produce an overdue determination.
func IsOverdue(due *time.Time, paid bool, now time.Time) bool {
	return due != nil && !paid && due.Before(now)
}

// Status buckets the row for display. Overdue wins over unpaid; the two are
// mutually exclusive by construction.
func (r Row) Status() Status {
	switch {
	case r.Overdue:
		return StatusOverdue
	case !r.Paid:
		return StatusUnpaid
	default:
		return StatusPaid
	}
}

// Flatten expands each assignment into its billable rows: one row per
// renewal, or a single service-level row when no renewals exist. Service-level
// rows are never marked overdue; only renewal rows carry due-date semantics.
// Output order follows assignment order, then renewal order.
func Flatten(assignments []Assignment, now time.Time) []Row {
	rows := make([]Row, 0, len(assignments))
	for _, a := range assignments {
		if len(a.Renewals) == 0 {
			rows = append(rows, Row{
				Source:      SourceService,
				ServiceID:   a.ServiceID,
				InvoiceID:   a.InvoiceID,
				ServiceName: a.ServiceName,
				IssueDate:   a.StartDate,
				DueDate:     a.EndDate,
				Amount:      a.Price,
				Paid:        a.Accepted == AcceptanceAccepted,
				Overdue:     false,
			})
			continue
		}
		for _, ren := range a.Renewals {
			amount := a.Price
			if ren.Price != nil {
				amount = *ren.Price
			}
			rows = append(rows, Row{
				Source:      SourceRenewal,
				ServiceID:   a.ServiceID,
				InvoiceID:   a.InvoiceID,
				RenewalID:   ren.ID,
				ServiceName: a.ServiceName,
				IssueDate:   a.StartDate,
				DueDate:     ren.Date,
				Amount:      amount,
				Paid:        ren.Paid,
				Overdue:     IsOverdue(ren.Date, ren.Paid, now),
			})
		}
	}
	return rows
}

func statusRank(r Row) int {
	switch r.Status() {
	case StatusOverdue:
		return -1
	case StatusPaid:
		return 1
	default:
		return 0
	}
}

func searchKey(r Row) string {
	if r.InvoiceID != "" {
		return r.InvoiceID
	}
	if r.ServiceID != "" {
		return r.ServiceID
	}
	return r.ServiceName
}

// Present narrows rows by free-text search and status, then orders them
// overdue first, unpaid next, paid last. Ties keep input order, which is why
// the sort must be stable.
func Present(rows []Row, search string, filter Status) []Row {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if needle != "" && !strings.Contains(strings.ToLower(searchKey(r)), needle) {
			continue
		}
		switch filter {
		case StatusPaid:
			if !r.Paid {
				continue
			}
		case StatusUnpaid:
			if r.Paid || r.Overdue {
				continue
			}
		case StatusOverdue:
			if !r.Overdue {
				continue
			}
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return statusRank(out[i]) < statusRank(out[j])
	})
	return out
}
