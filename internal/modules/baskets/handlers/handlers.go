// Package handlers provides HTTP handlers for basket operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"carteira/internal/modules/baskets"
)

// CacheInvalidator drops cached performance results for a basket. The
// performance cache keys results by basket, so any allocation change
// makes them stale.
type CacheInvalidator interface {
	InvalidateBasket(ctx context.Context, basketID string) error
}

// Handler handles basket HTTP requests
type Handler struct {
	service     *baskets.Service
	invalidator CacheInvalidator
	log         zerolog.Logger
}

// NewHandler creates a new baskets handler
func NewHandler(service *baskets.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "baskets").Logger(),
	}
}

// SetCacheInvalidator wires the performance cache, wired after
// construction to break the handler/calculations dependency cycle.
func (h *Handler) SetCacheInvalidator(inv CacheInvalidator) {
	h.invalidator = inv
}

func (h *Handler) invalidateCache(ctx context.Context, basketID string) {
	if h.invalidator == nil {
		return
	}
	if err := h.invalidator.InvalidateBasket(ctx, basketID); err != nil {
		h.log.Warn().Err(err).Str("basket_id", basketID).Msg("Failed to invalidate performance cache")
	}
}

// Routes mounts the basket routes on a chi router
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleCreate)
	r.Get("/{basketID}", h.HandleGet)
	r.Put("/{basketID}", h.HandleUpdate)
	r.Delete("/{basketID}", h.HandleDelete)
}

type basketRequest struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Allocations []baskets.AllocationInput `json:"allocations"`
}

// HandleList handles GET /api/baskets
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list baskets")
		http.Error(w, "Failed to list baskets", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"baskets": list,
		"count":   len(list),
	}))
}

// HandleCreate handles POST /api/baskets
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req basketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	basket, err := h.service.Create(r.Context(), req.Name, req.Description, req.Allocations)
	if err != nil {
		h.respondError(w, err, "Failed to create basket")
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(basket))
}

// HandleGet handles GET /api/baskets/{basketID}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	basket, err := h.service.Get(r.Context(), chi.URLParam(r, "basketID"))
	if err != nil {
		h.respondError(w, err, "Failed to get basket")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(basket))
}

// HandleUpdate handles PUT /api/baskets/{basketID}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req basketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	basket, err := h.service.Update(r.Context(), chi.URLParam(r, "basketID"), req.Name, req.Description, req.Allocations)
	if err != nil {
		h.respondError(w, err, "Failed to update basket")
		return
	}

	h.invalidateCache(r.Context(), basket.ID)

	h.writeJSON(w, http.StatusOK, envelope(basket))
}

// HandleDelete handles DELETE /api/baskets/{basketID}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	basketID := chi.URLParam(r, "basketID")
	if err := h.service.Delete(r.Context(), basketID); err != nil {
		h.respondError(w, err, "Failed to delete basket")
		return
	}

	h.invalidateCache(r.Context(), basketID)

	h.writeJSON(w, http.StatusOK, envelope(map[string]string{"status": "deleted"}))
}

// respondError maps domain errors to HTTP statuses
func (h *Handler) respondError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, baskets.ErrBasketNotFound):
		http.Error(w, "Basket not found", http.StatusNotFound)
	case errors.Is(err, baskets.ErrInvalidAllocation), errors.Is(err, baskets.ErrDuplicateAsset):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}
