package settings

import (
	"encoding/json"
	"net/http"

	"github.com/murphys-tech/catalog-api/internal/common"
)

// Handler exposes the settings endpoints.
type Handler struct {
	Svc *Service
}

// Public returns the unauthenticated settings subset.
func (h *Handler) Public(w http.ResponseWriter, r *http.Request) {
	pub, err := h.Svc.GetPublic(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load settings", nil)
		return
	}
	common.Data(w, http.StatusOK, pub)
}

// Get returns the full settings record. Admin only.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	full, err := h.Svc.Get(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load settings", nil)
		return
	}
	common.Data(w, http.StatusOK, full)
}

// Update overwrites the settings record. Admin only.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in Settings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	updated, err := h.Svc.Update(r.Context(), in)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to update settings", nil)
		return
	}
	common.Data(w, http.StatusOK, updated)
}
