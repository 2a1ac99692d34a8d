package notice

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/murphys-tech/catalog-api/internal/common"
)

// Handler exposes the notice endpoints.
type Handler struct {
	Svc *Service
}

// Mine lists notices visible to the caller.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	notices, err := h.Svc.ForClient(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list notices", nil)
		return
	}
	if notices == nil {
		notices = []Notice{}
	}
	common.Data(w, http.StatusOK, notices)
}

// List returns all notices. Admin only.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	notices, err := h.Svc.All(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list notices", nil)
		return
	}
	if notices == nil {
		notices = []Notice{}
	}
	common.Data(w, http.StatusOK, notices)
}

// Publish creates a notice. Admin only.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	var in PublishInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	n, err := h.Svc.Publish(r.Context(), in)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to publish notice", nil)
		return
	}
	common.Data(w, http.StatusCreated, n)
}

// Delete removes a notice. Admin only.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "notice not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to delete notice", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
