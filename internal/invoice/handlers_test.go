package invoice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/murphys-tech/catalog-api/internal/assignment"
	"github.com/murphys-tech/catalog-api/internal/common"
)

type fakeSource struct {
	records []assignment.Record
}

func (f *fakeSource) ForClient(_ context.Context, clientID string) ([]assignment.Record, error) {
	var out []assignment.Record
	for _, rec := range f.records {
		if rec.ClientID == clientID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeSource) All(_ context.Context, _, _ int32) ([]assignment.Record, int64, error) {
	return f.records, int64(len(f.records)), nil
}

func fixtureSource() *fakeSource {
	past := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	return &fakeSource{records: []assignment.Record{
		{
			ID: "a1", InvoiceID: "INV-AAA", ClientID: "c1", ServiceID: "s1",
			ServiceName: "Hosting", Price: 1000, IsAccepted: "accepted",
			Renewals: []assignment.RenewalRecord{
				{ID: "r1", DueDate: &past, HasPaid: false},
				{ID: "r2", DueDate: &future, HasPaid: true},
			},
		},
		{
			ID: "a2", InvoiceID: "INV-BBB", ClientID: "c2", ServiceID: "s2",
			ServiceName: "Backup", Price: 500, IsAccepted: "pending",
		},
	}}
}

func fixtureHandler() *Handler {
	now := func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return &Handler{Svc: &Service{Assignments: fixtureSource(), Now: now}}
}

func doInfo(t *testing.T, h *Handler, target, userID, role string) (*httptest.ResponseRecorder, []map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(common.WithUser(req.Context(), userID, role))
	rr := httptest.NewRecorder()
	h.Info(rr, req)
	if rr.Code != http.StatusOK {
		return rr, nil
	}
	var body struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return rr, body.Data
}

func TestInfoClientScopedToOwnRows(t *testing.T) {
	h := fixtureHandler()
	rr, rows := doInfo(t, h, "/billing/info", "c1", common.RoleClient)
	require.Equal(t, http.StatusOK, rr.Code)
	// one row per renewal, overdue first
	require.Len(t, rows, 2)
	require.Equal(t, true, rows[0]["isOverdue"])
	require.Equal(t, "INV-AAA", rows[0]["invoiceId"])
	for _, row := range rows {
		require.Equal(t, "Hosting", row["serviceName"])
	}
}

func TestInfoAdminSeesAllClients(t *testing.T) {
	h := fixtureHandler()
	rr, rows := doInfo(t, h, "/billing/info", "admin-1", common.RoleAdmin)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, rows, 3)
}

func TestInfoAdminClientFilter(t *testing.T) {
	h := fixtureHandler()
	rr, rows := doInfo(t, h, "/billing/info?clientId=c2", "admin-1", common.RoleAdmin)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, rows, 1)
	require.Equal(t, "Backup", rows[0]["serviceName"])
}

func TestInfoStatusFilter(t *testing.T) {
	h := fixtureHandler()

	rr, rows := doInfo(t, h, "/billing/info?status=overdue", "c1", common.RoleClient)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, rows, 1)
	require.Equal(t, true, rows[0]["isOverdue"])

	rr, rows = doInfo(t, h, "/billing/info?status=paid", "c1", common.RoleClient)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, rows, 1)
	require.Equal(t, "r2", rows[0]["renewalId"])
}

func TestInfoUnknownStatusRejected(t *testing.T) {
	h := fixtureHandler()
	rr, _ := doInfo(t, h, "/billing/info?status=pending", "c1", common.RoleClient)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInfoRequiresAuth(t *testing.T) {
	h := fixtureHandler()
	req := httptest.NewRequest(http.MethodGet, "/billing/info", nil)
	rr := httptest.NewRecorder()
	h.Info(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSummaryBuckets(t *testing.T) {
	h := fixtureHandler()
	req := httptest.NewRequest(http.MethodGet, "/billing/summary", nil)
	req = req.WithContext(common.WithUser(req.Context(), "c1", common.RoleClient))
	rr := httptest.NewRecorder()
	h.Summary(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, 2, body.Data.Total)
	require.Equal(t, 1, body.Data.Paid)
	require.Equal(t, 1, body.Data.Overdue)
	require.Equal(t, 0, body.Data.Unpaid)
	require.Equal(t, int64(1000), body.Data.AmountOverdue)
	require.Equal(t, int64(1000), body.Data.AmountPaid)
}
