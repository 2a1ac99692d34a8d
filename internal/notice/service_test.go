package notice

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type memStore struct {
	notices []Notice
	nextID  int
}

func (m *memStore) Create(_ context.Context, title, body, audience string, clientID *string, expiresAt *time.Time) (Notice, error) {
	m.nextID++
	n := Notice{
		ID: fmt.Sprintf("n%d", m.nextID), Title: title, Body: body,
		Audience: audience, ClientID: clientID, ExpiresAt: expiresAt,
	}
	m.notices = append(m.notices, n)
	return n, nil
}

func (m *memStore) ActiveForClient(_ context.Context, clientID string, now time.Time) ([]Notice, error) {
	var out []Notice
	for _, n := range m.notices {
		if n.ExpiresAt != nil && !n.ExpiresAt.After(now) {
			continue
		}
		if n.Audience == AudienceAll || (n.ClientID != nil && *n.ClientID == clientID) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memStore) ListAll(_ context.Context) ([]Notice, error) {
	return m.notices, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	for i, n := range m.notices {
		if n.ID == id {
			m.notices = append(m.notices[:i], m.notices[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func TestPublishAudienceRules(t *testing.T) {
	svc := &Service{Store: &memStore{}}
	ctx := context.Background()

	if _, err := svc.Publish(ctx, PublishInput{Title: "t", Body: "b", Audience: AudienceAll, ClientID: "c1"}); err == nil {
		t.Fatal("broadcast with client must be rejected")
	}
	if _, err := svc.Publish(ctx, PublishInput{Title: "t", Body: "b", Audience: AudienceClient}); err == nil {
		t.Fatal("targeted without client must be rejected")
	}
	if _, err := svc.Publish(ctx, PublishInput{Title: "t", Body: "b", Audience: "staff"}); err == nil {
		t.Fatal("unknown audience must be rejected")
	}
	n, err := svc.Publish(ctx, PublishInput{Title: "Maintenance", Body: "Sunday 02:00"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n.Audience != AudienceAll {
		t.Fatalf("audience %q", n.Audience)
	}
}

func TestPublishDefaultTTL(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := &Service{
		Store:      &memStore{},
		DefaultTTL: 72 * time.Hour,
		Now:        func() time.Time { return now },
	}
	n, err := svc.Publish(context.Background(), PublishInput{Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n.ExpiresAt == nil || !n.ExpiresAt.Equal(now.Add(72*time.Hour)) {
		t.Fatalf("expiry %v", n.ExpiresAt)
	}
}

func TestForClientVisibility(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &memStore{}
	svc := &Service{Store: store, Now: func() time.Time { return now }}
	ctx := context.Background()

	expired := now.Add(-time.Hour)
	if _, err := svc.Publish(ctx, PublishInput{Title: "old", Body: "b", ExpiresAt: &expired}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := svc.Publish(ctx, PublishInput{Title: "broadcast", Body: "b"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := svc.Publish(ctx, PublishInput{Title: "for c2", Body: "b", Audience: AudienceClient, ClientID: "c2"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	visible, err := svc.ForClient(ctx, "c1")
	if err != nil {
		t.Fatalf("for client: %v", err)
	}
	if len(visible) != 1 || visible[0].Title != "broadcast" {
		t.Fatalf("unexpected visibility: %+v", visible)
	}
}

func TestNotifyOverdueTargetsClient(t *testing.T) {
	store := &memStore{}
	svc := &Service{Store: store}
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	n, err := svc.NotifyOverdue(context.Background(), "c1", "INV-ABC", "Hosting", 1500, due)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if n.Audience != AudienceClient || n.ClientID == nil || *n.ClientID != "c1" {
		t.Fatalf("notice not targeted: %+v", n)
	}
	if n.Title != "Invoice INV-ABC is overdue" {
		t.Fatalf("title %q", n.Title)
	}
}
