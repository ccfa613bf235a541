package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/matryer/way"
	log "github.com/sirupsen/logrus"

	"snakeduel-server/stats"
)

// StatsHandler serves the persisted win/loss records.
type StatsHandler struct {
	store *stats.Store
}

func NewStatsHandler(store *stats.Store) *StatsHandler {
	return &StatsHandler{store: store}
}

// HandlePlayerStats returns one player's record.
func (h *StatsHandler) HandlePlayerStats(w http.ResponseWriter, r *http.Request) {
	playerID := way.Param(r.Context(), "id")
	if playerID == "" {
		http.Error(w, "Missing player id", http.StatusBadRequest)
		return
	}

	record, err := h.store.GetStats(playerID)
	if err != nil {
		log.Printf("Stats lookup failed for %s: %v", playerID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "Player not found", http.StatusNotFound)
		return
	}

	writeJSON(w, record)
}

// HandleMyStats returns the record of the authenticated player. Wrap
// with auth.Middleware.
func (h *StatsHandler) HandleMyStats(w http.ResponseWriter, r *http.Request) {
	playerID := r.Header.Get("X-Player-ID")
	if playerID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	record, err := h.store.GetStats(playerID)
	if err != nil {
		log.Printf("Stats lookup failed for %s: %v", playerID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "Player not found", http.StatusNotFound)
		return
	}

	writeJSON(w, record)
}

// HandleLeaderboard returns the top players by wins.
func (h *StatsHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	entries, err := h.store.Leaderboard(limit)
	if err != nil {
		log.Printf("Leaderboard query failed: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"leaderboard": entries})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
