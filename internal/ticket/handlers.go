package ticket

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/murphys-tech/catalog-api/internal/common"
)

// Handler exposes the ticket endpoints.
type Handler struct {
	Svc *Service
}

func caller(w http.ResponseWriter, r *http.Request) (id, role string, ok bool) {
	id, ok = common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return "", "", false
	}
	role, _ = common.Role(r.Context())
	return id, role, true
}

// Open creates a support ticket for the caller.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	var body struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	t, err := h.Svc.Open(r.Context(), userID, body.Subject, body.Body)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to open ticket", nil)
		return
	}
	common.Data(w, http.StatusCreated, t)
}

// Mine lists the caller's tickets.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	tickets, err := h.Svc.Mine(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list tickets", nil)
		return
	}
	if tickets == nil {
		tickets = []Ticket{}
	}
	common.Data(w, http.StatusOK, tickets)
}

// List returns tickets across all clients. Admin only.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.Svc.All(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list tickets", nil)
		return
	}
	if tickets == nil {
		tickets = []Ticket{}
	}
	common.Data(w, http.StatusOK, tickets)
}

// Detail returns one ticket thread.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	t, err := h.Svc.Get(r.Context(), userID, common.IsAdmin(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeThreadError(w, err)
		return
	}
	common.Data(w, http.StatusOK, t)
}

// Reply appends a message to a ticket thread.
func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(w, r)
	if !ok {
		return
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	reply, err := h.Svc.Reply(r.Context(), userID, role, chi.URLParam(r, "id"), body.Message)
	if err != nil {
		h.writeThreadError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, reply)
}

// Close closes a ticket.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Close(r.Context(), userID, common.IsAdmin(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeThreadError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]string{"status": StatusClosed})
}

func (h *Handler) writeThreadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "ticket not found", nil)
	case errors.Is(err, ErrForbidden):
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "not your ticket", nil)
	case errors.Is(err, ErrClosed):
		common.JSONError(w, http.StatusConflict, "TICKET_CLOSED", "ticket is closed", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "ticket operation failed", nil)
	}
}
