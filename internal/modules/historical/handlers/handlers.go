// Package handlers provides HTTP handlers for asset and price history
// operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"carteira/internal/domain"
	"carteira/internal/modules/historical"
)

// Handler handles historical data HTTP requests
type Handler struct {
	repo *historical.Repository
	log  zerolog.Logger
}

// NewHandler creates a new historical data handler
func NewHandler(repo *historical.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "historical").Logger(),
	}
}

// Routes mounts the historical routes on a chi router
func (h *Handler) Routes(r chi.Router) {
	r.Get("/assets", h.HandleListAssets)
	r.Post("/assets", h.HandleUpsertAsset)
	r.Get("/assets/{assetID}/prices", h.HandleGetSeries)
	r.Post("/assets/{assetID}/prices", h.HandleUpsertPrices)
	r.Get("/staleness", h.HandleStaleness)
}

// HandleListAssets handles GET /api/historical/assets
func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.repo.ListAssets(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list assets")
		http.Error(w, "Failed to list assets", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"assets": assets,
		"count":  len(assets),
	}))
}

// HandleUpsertAsset handles POST /api/historical/assets
func (h *Handler) HandleUpsertAsset(w http.ResponseWriter, r *http.Request) {
	var asset domain.Asset
	if err := json.NewDecoder(r.Body).Decode(&asset); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if asset.Ticker == "" {
		http.Error(w, "ticker is required", http.StatusBadRequest)
		return
	}
	if asset.ID == "" {
		asset.ID = uuid.New().String()
	}
	if asset.CalcMode == "" {
		asset.CalcMode = domain.CalcModePrice
	}

	if err := h.repo.UpsertAsset(r.Context(), asset); err != nil {
		h.log.Error().Err(err).Str("ticker", asset.Ticker).Msg("Failed to upsert asset")
		http.Error(w, "Failed to upsert asset", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(asset))
}

// HandleGetSeries handles GET /api/historical/assets/{assetID}/prices
func (h *Handler) HandleGetSeries(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")

	var (
		points []domain.PricePoint
		err    error
	)

	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")
	if fromStr != "" && toStr != "" {
		from, fromErr := time.Parse("2006-01-02", fromStr)
		to, toErr := time.Parse("2006-01-02", toStr)
		if fromErr != nil || toErr != nil {
			http.Error(w, "from and to must be YYYY-MM-DD dates", http.StatusBadRequest)
			return
		}
		points, err = h.repo.GetSeriesRange(r.Context(), assetID, from, to)
	} else {
		points, err = h.repo.GetHistoricalSeries(r.Context(), assetID)
	}

	if err != nil {
		h.log.Error().Err(err).Str("asset_id", assetID).Msg("Failed to get price series")
		http.Error(w, "Failed to get price series", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"asset_id": assetID,
		"prices":   points,
		"count":    len(points),
	}))
}

// HandleUpsertPrices handles POST /api/historical/assets/{assetID}/prices
func (h *Handler) HandleUpsertPrices(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")

	var points []domain.PricePoint
	if err := json.NewDecoder(r.Body).Decode(&points); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(points) == 0 {
		http.Error(w, "at least one price point is required", http.StatusBadRequest)
		return
	}

	if err := h.repo.UpsertPrices(r.Context(), assetID, points); err != nil {
		h.log.Error().Err(err).Str("asset_id", assetID).Msg("Failed to upsert prices")
		http.Error(w, "Failed to upsert prices", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"asset_id": assetID,
		"stored":   len(points),
	}))
}

// HandleStaleness handles GET /api/historical/staleness
func (h *Handler) HandleStaleness(w http.ResponseWriter, r *http.Request) {
	infos, err := h.repo.CheckStaleness(r.Context(), time.Now())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to check staleness")
		http.Error(w, "Failed to check staleness", http.StatusInternalServerError)
		return
	}

	outdated := 0
	for _, info := range infos {
		if info.Outdated {
			outdated++
		}
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"assets":   infos,
		"outdated": outdated,
	}))
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
