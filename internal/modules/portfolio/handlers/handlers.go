// Package handlers provides HTTP handlers for portfolio operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"carteira/internal/modules/portfolio"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// Routes mounts the portfolio routes on a chi router
func (h *Handler) Routes(r chi.Router) {
	r.Get("/summary", h.HandleSummary)
	r.Get("/positions", h.HandlePositions)
	r.Post("/transactions", h.HandleRecordTransaction)
	r.Get("/cash", h.HandleGetCash)
	r.Put("/cash", h.HandleSetCash)
}

// HandleSummary handles GET /api/portfolio/summary
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSummary(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build portfolio summary")
		http.Error(w, "Failed to build portfolio summary", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(summary))
}

// HandlePositions handles GET /api/portfolio/positions
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.service.GetCurrentPositions(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to derive positions")
		http.Error(w, "Failed to derive positions", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"positions": positions,
		"count":     len(positions),
	}))
}

// HandleRecordTransaction handles POST /api/portfolio/transactions
func (h *Handler) HandleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var input portfolio.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	txn, err := h.service.RecordTransaction(r.Context(), input)
	if err != nil {
		if errors.Is(err, portfolio.ErrInvalidTransaction) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.log.Error().Err(err).Msg("Failed to record transaction")
		http.Error(w, "Failed to record transaction", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(txn))
}

// HandleGetCash handles GET /api/portfolio/cash
func (h *Handler) HandleGetCash(w http.ResponseWriter, r *http.Request) {
	cash, err := h.service.GetCashBalance(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get cash balance")
		http.Error(w, "Failed to get cash balance", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]decimal.Decimal{"cash_balance": cash}))
}

// HandleSetCash handles PUT /api/portfolio/cash
func (h *Handler) HandleSetCash(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.SetCashBalance(r.Context(), req.Amount); err != nil {
		if errors.Is(err, portfolio.ErrInvalidTransaction) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.log.Error().Err(err).Msg("Failed to set cash balance")
		http.Error(w, "Failed to set cash balance", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]string{"status": "updated"}))
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
