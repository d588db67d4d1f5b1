// Package handlers provides HTTP handlers for performance queries.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"carteira/internal/modules/baskets"
	"carteira/internal/modules/calculations"
	"carteira/internal/modules/charts"
	"carteira/internal/modules/performance"
)

// Handler handles performance HTTP requests
type Handler struct {
	service *calculations.Service
	charts  *charts.Service
	log     zerolog.Logger
}

// NewHandler creates a new performance handler
func NewHandler(service *calculations.Service, chartService *charts.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		charts:  chartService,
		log:     log.With().Str("handler", "performance").Logger(),
	}
}

// Routes mounts the performance routes on a chi router
func (h *Handler) Routes(r chi.Router) {
	r.Get("/{basketID}", h.HandlePerformance)
	r.Get("/{basketID}/chart.png", h.HandleChart)
	r.Get("/{basketID}/evolution", h.HandleEvolutionData)
}

// HandlePerformance handles GET /api/performance/{basketID}?period=1M
// or ?start=YYYY-MM-DD&end=YYYY-MM-DD for an explicit window.
func (h *Handler) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	result, err := h.resolve(w, r)
	if err != nil {
		return // resolve already wrote the error
	}

	h.writeJSON(w, http.StatusOK, envelope(result))
}

// HandleChart handles GET /api/performance/{basketID}/chart.png
func (h *Handler) HandleChart(w http.ResponseWriter, r *http.Request) {
	result, err := h.resolve(w, r)
	if err != nil {
		return
	}

	png, err := h.charts.RenderEvolutionPNG(result.PeriodLabel, result)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to render evolution chart")
		http.Error(w, "Failed to render chart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.Error().Err(err).Msg("Failed to write chart response")
	}
}

// HandleEvolutionData handles GET /api/performance/{basketID}/evolution
func (h *Handler) HandleEvolutionData(w http.ResponseWriter, r *http.Request) {
	result, err := h.resolve(w, r)
	if err != nil {
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(h.charts.EvolutionData(result)))
}

// resolve runs the performance query described by the request. On
// failure it writes the HTTP error and returns a non-nil error.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (*performance.BasketPerformance, error) {
	basketID := chi.URLParam(r, "basketID")

	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	var (
		result *performance.BasketPerformance
		err    error
	)
	if startStr != "" || endStr != "" {
		start, startErr := time.Parse("2006-01-02", startStr)
		end, endErr := time.Parse("2006-01-02", endStr)
		if startErr != nil || endErr != nil {
			http.Error(w, "start and end must be YYYY-MM-DD dates", http.StatusBadRequest)
			return nil, errors.New("bad date range")
		}
		result, err = h.service.BasketPerformanceForRange(r.Context(), basketID, start, end)
	} else {
		token := performance.NamedPeriod(r.URL.Query().Get("period"))
		if token == "" {
			token = performance.PeriodAll
		}
		result, err = h.service.BasketPerformanceForToken(r.Context(), basketID, token)
	}

	if err != nil {
		h.respondError(w, err)
		return nil, err
	}

	return result, nil
}

// respondError maps engine errors to HTTP statuses
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, baskets.ErrBasketNotFound):
		http.Error(w, "Basket not found", http.StatusNotFound)
	case errors.Is(err, performance.ErrInvalidPeriod):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, performance.ErrEmptyBasket):
		http.Error(w, "Basket has no allocations", http.StatusUnprocessableEntity)
	case errors.Is(err, performance.ErrNoUsableData):
		http.Error(w, "No usable price data in the requested period", http.StatusUnprocessableEntity)
	default:
		h.log.Error().Err(err).Msg("Failed to compute basket performance")
		http.Error(w, "Failed to compute basket performance", http.StatusInternalServerError)
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
