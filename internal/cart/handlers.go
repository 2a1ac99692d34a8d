package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/murphys-tech/catalog-api/internal/common"
)

// Handler wires the cart service to HTTP.
type Handler struct {
	Svc      *Service
	Currency string
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return "", false
	}
	return userID, true
}

// Get returns the user's cart and derived total.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Get(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load cart", nil)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"id":       view.Cart.ID,
		"items":    view.Lines,
		"total":    view.Total,
		"currency": h.Currency,
	})
}

// AddItem adds one catalog service to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		ServiceID string `json:"serviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	line, err := h.Svc.AddItem(r.Context(), userID, payload.ServiceID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		case errors.Is(err, ErrDuplicateLine):
			common.JSONError(w, http.StatusConflict, "CONFLICT", "service already in cart", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to add item", nil)
		}
		return
	}
	common.Data(w, http.StatusCreated, line)
}

// RemoveItem deletes one line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	lineID := chi.URLParam(r, "itemId")
	if err := h.Svc.RemoveItem(r.Context(), userID, lineID); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart item not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to remove item", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cancel empties the cart.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Cancel(r.Context(), userID); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to clear cart", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Checkout converts the cart into pending service assignments.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	total, err := h.Svc.Checkout(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrEmptyCart) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "cart is empty", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"total":    total,
		"currency": h.Currency,
	})
}
