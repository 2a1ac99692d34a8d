package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/murphys-tech/catalog-api/internal/common"
)

// Handler exposes catalog endpoints over HTTP.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

// HandlerConfig groups Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Validate *validator.Validate
}

// NewHandler constructs a catalog handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validate
	if v == nil {
		v = validator.New()
	}
	return &Handler{svc: cfg.Service, validate: v}
}

// Categories lists all categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.Categories(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load categories", nil)
		return
	}
	if categories == nil {
		categories = []Category{}
	}
	common.Data(w, http.StatusOK, categories)
}

// Services lists catalog items with optional search and category filters.
func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	page, limit := common.ParsePagination(r, 20, 100)
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	includeInactive := common.IsAdmin(r.Context()) && r.URL.Query().Get("all") == "true"

	items, total, err := h.svc.Items(r.Context(), query, category, page, limit, includeInactive)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load services", nil)
		return
	}
	if items == nil {
		items = []Item{}
	}
	common.Paginated(w, http.StatusOK, items, common.Pagination{Page: page, PerPage: limit, TotalItems: total})
}

// ServiceDetail returns one catalog item by slug.
func (h *Handler) ServiceDetail(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	item, err := h.svc.ItemBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "service not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load service", nil)
		return
	}
	common.Data(w, http.StatusOK, item)
}

// CreateCategory handles admin category creation.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var payload CategoryInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "name and slug are required", nil)
		return
	}
	category, err := h.svc.CreateCategory(r.Context(), payload)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to create category", nil)
		return
	}
	common.Data(w, http.StatusCreated, category)
}

// UpdateCategory handles admin category updates.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload CategoryInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "name and slug are required", nil)
		return
	}
	category, err := h.svc.UpdateCategory(r.Context(), id, payload)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "category not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to update category", nil)
		return
	}
	common.Data(w, http.StatusOK, category)
}

// DeleteCategory handles admin category deletion.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteCategory(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "category not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to delete category", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type itemPayload struct {
	CategoryID    *string `json:"categoryId"`
	Name          string  `json:"name" validate:"required"`
	Slug          string  `json:"slug" validate:"required"`
	Description   string  `json:"description"`
	Price         int64   `json:"price" validate:"gte=0"`
	Currency      string  `json:"currency"`
	HasDiscount   bool    `json:"hasDiscount"`
	DiscountType  string  `json:"discountType"`
	DiscountValue int64   `json:"discountValue"`
	Active        *bool   `json:"active"`
}

func (p itemPayload) input() ItemInput {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	currency := strings.TrimSpace(p.Currency)
	if currency == "" {
		currency = "USD"
	}
	return ItemInput{
		CategoryID:    p.CategoryID,
		Name:          strings.TrimSpace(p.Name),
		Slug:          p.Slug,
		Description:   p.Description,
		Price:         p.Price,
		Currency:      currency,
		HasDiscount:   p.HasDiscount,
		DiscountType:  p.DiscountType,
		DiscountValue: p.DiscountValue,
		Active:        active,
	}
}

// CreateService handles admin catalog item creation.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var payload itemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "name, slug and a non-negative price are required", nil)
		return
	}
	item, err := h.svc.CreateItem(r.Context(), payload.input())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to create service", nil)
		return
	}
	common.Data(w, http.StatusCreated, item)
}

// UpdateService handles admin catalog item updates.
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload itemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "name, slug and a non-negative price are required", nil)
		return
	}
	item, err := h.svc.UpdateItem(r.Context(), id, payload.input())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "service not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to update service", nil)
		return
	}
	common.Data(w, http.StatusOK, item)
}

// DeactivateService hides a catalog item without deleting it.
func (h *Handler) DeactivateService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.SetItemActive(r.Context(), id, false); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "service not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to deactivate service", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
