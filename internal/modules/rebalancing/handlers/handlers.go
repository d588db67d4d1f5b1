// Package handlers provides HTTP handlers for rebalance planning.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"carteira/internal/modules/baskets"
	"carteira/internal/modules/portfolio"
	"carteira/internal/modules/rebalancing"
)

// Handler handles rebalance plan HTTP requests
type Handler struct {
	service   *rebalancing.Service
	baskets   *baskets.Service
	portfolio *portfolio.Service
	log       zerolog.Logger
}

// NewHandler creates a new rebalancing handler
func NewHandler(
	service *rebalancing.Service,
	basketService *baskets.Service,
	portfolioService *portfolio.Service,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:   service,
		baskets:   basketService,
		portfolio: portfolioService,
		log:       log.With().Str("handler", "rebalancing").Logger(),
	}
}

// Routes mounts the rebalancing routes on a chi router
func (h *Handler) Routes(r chi.Router) {
	r.Post("/{basketID}/plan", h.HandleComputePlan)
}

type planRequest struct {
	// TargetAmount is optional: when omitted or zero the current
	// portfolio total (positions plus cash) is used.
	TargetAmount decimal.Decimal `json:"target_amount"`
}

// HandleComputePlan handles POST /api/rebalancing/{basketID}/plan
func (h *Handler) HandleComputePlan(w http.ResponseWriter, r *http.Request) {
	basketID := chi.URLParam(r, "basketID")

	var req planRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	allocations, err := h.baskets.GetBasketAllocations(r.Context(), basketID)
	if err != nil {
		if errors.Is(err, baskets.ErrBasketNotFound) {
			http.Error(w, "Basket not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("basket_id", basketID).Msg("Failed to load basket allocations")
		http.Error(w, "Failed to load basket allocations", http.StatusInternalServerError)
		return
	}
	if len(allocations) == 0 {
		http.Error(w, "Basket has no allocations", http.StatusUnprocessableEntity)
		return
	}

	summary, err := h.portfolio.GetSummary(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load portfolio state")
		http.Error(w, "Failed to load portfolio state", http.StatusInternalServerError)
		return
	}

	targetAmount := req.TargetAmount
	if targetAmount.LessThanOrEqual(decimal.Zero) {
		targetAmount = summary.TotalValue
	}
	if targetAmount.LessThanOrEqual(decimal.Zero) {
		http.Error(w, "target_amount is required when the portfolio is empty", http.StatusUnprocessableEntity)
		return
	}

	positions, err := h.portfolio.GetCurrentPositions(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to derive positions")
		http.Error(w, "Failed to derive positions", http.StatusInternalServerError)
		return
	}

	prices := h.service.LatestPrices(r.Context(), allocations)

	plan, err := h.service.ComputePlan(r.Context(), allocations, positions, prices, targetAmount, summary.CashBalance)
	if err != nil {
		h.log.Error().Err(err).Str("basket_id", basketID).Msg("Failed to compute rebalance plan")
		http.Error(w, "Failed to compute rebalance plan", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(plan))
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
