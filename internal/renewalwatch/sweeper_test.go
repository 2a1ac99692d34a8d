package renewalwatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/murphys-tech/catalog-api/internal/assignment"
	"github.com/murphys-tech/catalog-api/internal/notice"
)

type fakeAssignments struct {
	overdue  []assignment.OverdueRenewal
	notified map[string]time.Time
	markErr  error
}

func (f *fakeAssignments) ListOverdueUnnotified(_ context.Context, _ time.Time, _ int32) ([]assignment.OverdueRenewal, error) {
	var out []assignment.OverdueRenewal
	for _, o := range f.overdue {
		if _, done := f.notified[o.RenewalID]; !done {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeAssignments) MarkOverdueNotified(_ context.Context, renewalID string, at time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	if f.notified == nil {
		f.notified = map[string]time.Time{}
	}
	f.notified[renewalID] = at
	return nil
}

type fakeNotifier struct {
	published []string
	failFor   map[string]bool
}

func (f *fakeNotifier) NotifyOverdue(_ context.Context, _, invoiceID, _ string, _ int64, _ time.Time) (notice.Notice, error) {
	if f.failFor[invoiceID] {
		return notice.Notice{}, errors.New("publish failed")
	}
	f.published = append(f.published, invoiceID)
	return notice.Notice{ID: "n-" + invoiceID}, nil
}

func fixtureOverdue() []assignment.OverdueRenewal {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return []assignment.OverdueRenewal{
		{RenewalID: "r1", ClientID: "c1", InvoiceID: "INV-A", ServiceName: "Hosting", DueDate: due, Amount: 1000},
		{RenewalID: "r2", ClientID: "c2", InvoiceID: "INV-B", ServiceName: "Backup", DueDate: due, Amount: 500},
	}
}

func TestSweepNotifiesEachRenewalOnce(t *testing.T) {
	store := &fakeAssignments{overdue: fixtureOverdue()}
	notifier := &fakeNotifier{}
	sweeper := &Sweeper{Assignments: store, Notices: notifier}

	notified, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if notified != 2 {
		t.Fatalf("notified %d", notified)
	}

	// a second pass finds nothing new
	notified, err = sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if notified != 0 {
		t.Fatalf("second pass notified %d", notified)
	}
	if len(notifier.published) != 2 {
		t.Fatalf("published %v", notifier.published)
	}
}

func TestSweepRetriesFailedNotices(t *testing.T) {
	store := &fakeAssignments{overdue: fixtureOverdue()}
	notifier := &fakeNotifier{failFor: map[string]bool{"INV-A": true}}
	sweeper := &Sweeper{Assignments: store, Notices: notifier}

	notified, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if notified != 1 {
		t.Fatalf("notified %d", notified)
	}

	// the failed renewal is retried once publishing recovers
	notifier.failFor = nil
	notified, err = sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("retry sweep: %v", err)
	}
	if notified != 1 {
		t.Fatalf("retry notified %d", notified)
	}
	if _, ok := store.notified["r1"]; !ok {
		t.Fatal("r1 never marked notified")
	}
}
