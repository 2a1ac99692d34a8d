package assignment

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/murphys-tech/catalog-api/internal/catalog"
)

type memStore struct {
	records  map[string]*Record
	nextID   int
	renewals map[string]string // renewal id -> assignment id
}

func newMemStore() *memStore {
	return &memStore{records: map[string]*Record{}, renewals: map[string]string{}}
}

func (m *memStore) Create(_ context.Context, in CreateInput) (Record, error) {
	m.nextID++
	rec := Record{
		ID:          fmt.Sprintf("a%d", m.nextID),
		InvoiceID:   in.InvoiceID,
		ClientID:    in.ClientID,
		ServiceID:   in.ServiceID,
		ServiceName: in.ServiceName,
		Price:       in.Price,
		Cycle:       in.Cycle,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		IsAccepted:  in.IsAccepted,
		Renewals:    []RenewalRecord{},
	}
	m.records[rec.ID] = &rec
	return rec, nil
}

func (m *memStore) Get(_ context.Context, id string) (Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return *rec, nil
}

func (m *memStore) ListByClient(_ context.Context, clientID string) ([]Record, error) {
	var out []Record
	for _, rec := range m.records {
		if rec.ClientID == clientID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *memStore) ListAll(_ context.Context, _, _ int32) ([]Record, int64, error) {
	var out []Record
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) SetAcceptance(_ context.Context, id, state string) error {
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.IsAccepted = state
	return nil
}

func (m *memStore) AddRenewal(_ context.Context, assignmentID, label string, dueDate *time.Time, price *int64) (RenewalRecord, error) {
	rec, ok := m.records[assignmentID]
	if !ok {
		return RenewalRecord{}, ErrNotFound
	}
	m.nextID++
	ren := RenewalRecord{ID: fmt.Sprintf("r%d", m.nextID), Label: label, DueDate: dueDate, Price: price}
	rec.Renewals = append(rec.Renewals, ren)
	m.renewals[ren.ID] = assignmentID
	return ren, nil
}

func (m *memStore) MarkRenewalPaid(_ context.Context, renewalID string, paid bool) error {
	assignmentID, ok := m.renewals[renewalID]
	if !ok {
		return ErrNotFound
	}
	rec := m.records[assignmentID]
	for i := range rec.Renewals {
		if rec.Renewals[i].ID == renewalID {
			rec.Renewals[i].HasPaid = paid
		}
	}
	return nil
}

func TestAssignDefaultsAndValidation(t *testing.T) {
	svc := &Service{Store: newMemStore()}
	ctx := context.Background()

	rec, err := svc.Assign(ctx, AssignInput{ClientID: "c1", ServiceID: "s1", ServiceName: "Hosting", Price: 1000})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if rec.Cycle != "none" || rec.IsAccepted != "pending" {
		t.Fatalf("unexpected defaults: cycle=%q accepted=%q", rec.Cycle, rec.IsAccepted)
	}
	if !strings.HasPrefix(rec.InvoiceID, "INV-") {
		t.Fatalf("invoice id %q", rec.InvoiceID)
	}

	if _, err := svc.Assign(ctx, AssignInput{ClientID: "c1", ServiceID: "s1", Cycle: "weekly"}); err == nil {
		t.Fatal("expected invalid cycle to be rejected")
	}
	if _, err := svc.Assign(ctx, AssignInput{ServiceID: "s1"}); err == nil {
		t.Fatal("expected missing client to be rejected")
	}
}

func TestAssignFromCheckoutUsesEffectivePrice(t *testing.T) {
	store := newMemStore()
	svc := &Service{Store: store}

	items := []catalog.Item{
		{ID: "s1", Name: "Hosting", Price: 1000, HasDiscount: true, DiscountType: "percentage", DiscountValue: 20},
		{ID: "s2", Name: "Backup", Price: 500},
	}
	if err := svc.AssignFromCheckout(context.Background(), "c1", items); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	records, _ := store.ListByClient(context.Background(), "c1")
	if len(records) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(records))
	}
	prices := map[string]int64{}
	for _, rec := range records {
		prices[rec.ServiceID] = rec.Price
		if rec.IsAccepted != "pending" {
			t.Fatalf("assignment %s not pending", rec.ID)
		}
	}
	if prices["s1"] != 800 || prices["s2"] != 500 {
		t.Fatalf("unexpected prices: %v", prices)
	}
}

func TestRespondOwnershipAndFinality(t *testing.T) {
	store := newMemStore()
	svc := &Service{Store: store}
	ctx := context.Background()

	rec, err := svc.Assign(ctx, AssignInput{ClientID: "c1", ServiceID: "s1", Price: 100})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	if _, err := svc.Respond(ctx, "other", rec.ID, true); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	updated, err := svc.Respond(ctx, "c1", rec.ID, true)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if updated.IsAccepted != "accepted" {
		t.Fatalf("state %q", updated.IsAccepted)
	}

	if _, err := svc.Respond(ctx, "c1", rec.ID, false); err == nil {
		t.Fatal("expected second decision to be rejected")
	}
}

func TestRenewalLifecycle(t *testing.T) {
	store := newMemStore()
	svc := &Service{Store: store}
	ctx := context.Background()

	rec, err := svc.Assign(ctx, AssignInput{ClientID: "c1", ServiceID: "s1", Price: 100})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ren, err := svc.AddRenewal(ctx, rec.ID, RenewalInput{Label: "March", DueDate: &due})
	if err != nil {
		t.Fatalf("add renewal: %v", err)
	}
	if ren.HasPaid {
		t.Fatal("new renewal must start unpaid")
	}

	neg := int64(-5)
	if _, err := svc.AddRenewal(ctx, rec.ID, RenewalInput{Price: &neg}); err == nil {
		t.Fatal("expected negative renewal price to be rejected")
	}
	if _, err := svc.AddRenewal(ctx, "missing", RenewalInput{}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := svc.MarkRenewalPaid(ctx, ren.ID, true); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	got, _ := store.Get(ctx, rec.ID)
	if !got.Renewals[0].HasPaid {
		t.Fatal("renewal not marked paid")
	}
}
