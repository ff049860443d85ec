package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/akagifreeez/seed-restock-bot/internal/models"
	"github.com/akagifreeez/seed-restock-bot/internal/storage"
)

// Announcer sends an unfiltered message to every subscriber
type Announcer interface {
	Announce(ctx context.Context, text string) models.DispatchReport
}

type AdminHandler struct {
	store       storage.Store
	announcer   Announcer
	subscribers func() int
}

// NewAdminHandler creates the admin endpoints. subscribers reports the size of the
// in-memory subscriber registry.
func NewAdminHandler(store storage.Store, announcer Announcer, subscribers func() int) *AdminHandler {
	return &AdminHandler{store: store, announcer: announcer, subscribers: subscribers}
}

// GetStats returns user statistics
// GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load user stats")
		http.Error(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}

	resp := struct {
		*models.UserStats
		Registered int `json:"registered"`
	}{UserStats: stats}
	if h.subscribers != nil {
		resp.Registered = h.subscribers()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Broadcast sends an announcement to every subscriber and returns the delivery report
// POST /api/v1/admin/broadcast {"text": "..."}
func (h *AdminHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		http.Error(w, "Text is required", http.StatusBadRequest)
		return
	}

	adminID, _ := GetUserIDFromContext(r.Context())
	log.Info().Int64("admin_id", adminID).Msg("Admin broadcast requested")

	// A disconnecting client must not abort a half-sent broadcast
	report := h.announcer.Announce(context.WithoutCancel(r.Context()), req.Text)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
