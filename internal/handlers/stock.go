package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/akagifreeez/seed-restock-bot/internal/catalog"
	"github.com/akagifreeez/seed-restock-bot/internal/models"
	"github.com/akagifreeez/seed-restock-bot/internal/services"
)

// StockSource returns the latest known stock
type StockSource interface {
	Latest(ctx context.Context) (*models.Snapshot, error)
}

type StockHandler struct {
	stock StockSource
}

func NewStockHandler(stock StockSource) *StockHandler {
	return &StockHandler{stock: stock}
}

type stockResponse struct {
	*models.Snapshot
	Ignored catalog.TierSet `json:"ignored"`
}

// GetLatest returns the latest stock, optionally without some tiers
// GET /api/v1/stock?ignore=SECRET,GODLY
func (h *StockHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	var ignored catalog.TierSet
	if raw := r.URL.Query().Get("ignore"); raw != "" {
		set, err := catalog.ParseTierSet(strings.Split(raw, ","))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ignored = set
	}

	snap, err := h.stock.Latest(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoStock) {
			http.Error(w, "No stock known yet", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("Failed to get latest stock")
		http.Error(w, "Failed to get stock", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stockResponse{
		Snapshot: services.VisibleSubset(snap, ignored),
		Ignored:  ignored,
	})
}
