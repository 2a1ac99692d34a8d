package assignment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/murphys-tech/catalog-api/internal/common"
)

// Handler exposes assignment endpoints. Admin routes manage assignments for
// any client; client routes are scoped to the authenticated user.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Mine lists the authenticated client's assignments.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing user", nil)
		return
	}
	records, err := h.Svc.ForClient(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list assignments", nil)
		return
	}
	if records == nil {
		records = []Record{}
	}
	common.Data(w, http.StatusOK, records)
}

// Respond handles the client's accept or reject decision.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing user", nil)
		return
	}
	var body struct {
		Accept *bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Accept == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "accept flag required", nil)
		return
	}
	rec, err := h.Svc.Respond(r.Context(), userID, chi.URLParam(r, "id"), *body.Accept)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "assignment not found", nil)
		case errors.Is(err, ErrForbidden):
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "not your assignment", nil)
		case errors.Is(err, ErrInvalidInput):
			common.JSONError(w, http.StatusConflict, "ALREADY_DECIDED", "assignment already decided", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update assignment", nil)
		}
		return
	}
	common.Data(w, http.StatusOK, rec)
}

// List returns a page of all assignments. Admin only.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := common.ParsePagination(r, 20, 100)
	records, total, err := h.Svc.All(r.Context(), int32(limit), int32((page-1)*limit))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list assignments", nil)
		return
	}
	if records == nil {
		records = []Record{}
	}
	common.Paginated(w, http.StatusOK, records, common.Pagination{Page: page, PerPage: limit, TotalItems: total})
}

// Create assigns a service to a client. Admin only.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in AssignInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(in); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
			return
		}
	}
	rec, err := h.Svc.Assign(r.Context(), in)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create assignment", nil)
		return
	}
	common.Data(w, http.StatusCreated, rec)
}

// Detail returns one assignment with its renewals. Admin only.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "assignment not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load assignment", nil)
		return
	}
	common.Data(w, http.StatusOK, rec)
}

// AddRenewal appends a renewal occurrence. Admin only.
func (h *Handler) AddRenewal(w http.ResponseWriter, r *http.Request) {
	var in RenewalInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	ren, err := h.Svc.AddRenewal(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "assignment not found", nil)
		case errors.Is(err, ErrInvalidInput):
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to add renewal", nil)
		}
		return
	}
	common.Data(w, http.StatusCreated, ren)
}

// SetRenewalPaid records or reverts a payment on a renewal. Admin only.
func (h *Handler) SetRenewalPaid(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Paid *bool `json:"paid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Paid == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "paid flag required", nil)
		return
	}
	if err := h.Svc.MarkRenewalPaid(r.Context(), chi.URLParam(r, "renewalID"), *body.Paid); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "renewal not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update renewal", nil)
		return
	}
	common.Data(w, http.StatusOK, map[string]bool{"paid": *body.Paid})
}
