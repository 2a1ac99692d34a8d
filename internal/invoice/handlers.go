package invoice

import (
	"net/http"
	"strings"

	"github.com/murphys-tech/catalog-api/internal/billing"
	"github.com/murphys-tech/catalog-api/internal/common"
)

// Handler serves the invoice view endpoints.
type Handler struct {
	Svc *Service
}

// Info returns the flattened invoice rows for the caller. Clients see their
// own rows; admins see everything, or one client via the clientId parameter.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	clientID, status, ok := h.scope(w, r)
	if !ok {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	rows, _, err := h.Svc.Query(r.Context(), clientID, q, status)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load billing info", nil)
		return
	}
	if rows == nil {
		rows = []billing.Row{}
	}
	common.Data(w, http.StatusOK, rows)
}

// Summary returns per-status row counts and amount totals for the caller.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	clientID, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	_, summary, err := h.Svc.Query(r.Context(), clientID, "", billing.StatusAll)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load billing summary", nil)
		return
	}
	common.Data(w, http.StatusOK, summary)
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (clientID string, status billing.Status, ok bool) {
	userID, authed := common.UserID(r.Context())
	if !authed {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return "", "", false
	}
	clientID = userID
	if common.IsAdmin(r.Context()) {
		clientID = strings.TrimSpace(r.URL.Query().Get("clientId"))
	}
	status = billing.StatusAll
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		switch billing.Status(raw) {
		case billing.StatusAll, billing.StatusPaid, billing.StatusUnpaid, billing.StatusOverdue:
			status = billing.Status(raw)
		default:
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status filter", nil)
			return "", "", false
		}
	}
	return clientID, status, true
}
