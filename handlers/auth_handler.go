package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"snakeduel-server/auth"
)

const maxUsernameLen = 24

// AuthHandler issues guest identity tokens so a client can reconnect
// as the same player.
type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

func (h *AuthHandler) HandleGuestToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(body.Username)
	if username == "" || len(username) > maxUsernameLen {
		http.Error(w, "Invalid username", http.StatusBadRequest)
		return
	}

	playerID := uuid.New().String()
	token, err := auth.GenerateToken(playerID, username, true)
	if err != nil {
		log.Printf("Failed to generate guest token: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"token":     token,
		"player_id": playerID,
		"username":  username,
	})
}
