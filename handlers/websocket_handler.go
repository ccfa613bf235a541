package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"snakeduel-server/auth"
	"snakeduel-server/constants"
	"snakeduel-server/game"
	"snakeduel-server/models"
	"snakeduel-server/stats"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// WebSocketHandler upgrades connections and hands each session to the
// game manager.
type WebSocketHandler struct {
	manager *game.Manager
	store   *stats.Store
}

func NewWebSocketHandler(manager *game.Manager, store *stats.Store) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		store:   store,
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	player := h.identify(r, conn)
	if player == nil {
		return
	}

	if h.manager.Sessions.ExistsByUsername(player.Username) {
		h.reject(conn, "Username already taken. Please choose a different username.", "USERNAME_EXISTS")
		return
	}
	if existing := h.manager.FindPlayerByID(player.ID); existing != nil {
		h.reject(conn, "This identity is already connected.", "ALREADY_CONNECTED")
		return
	}

	if h.store != nil {
		go func() {
			if err := h.store.EnsurePlayer(player.ID, player.Username, player.Guest); err != nil {
				log.Printf("Failed to persist player %s: %v", player.ID, err)
			}
		}()
	}

	h.manager.RegisterPlayer(player)

	go game.ReadPump(player, h.manager)
	go game.WritePump(player)

	h.manager.SendConnected(player)
}

// identify resolves the session identity: a valid token resumes the
// identity it carries, otherwise the connection becomes a fresh guest.
func (h *WebSocketHandler) identify(r *http.Request, conn *websocket.Conn) *models.Player {
	player := &models.Player{
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Guest:    true,
		JoinedAt: time.Now(),
	}

	if token := r.URL.Query().Get("token"); token != "" {
		claims, err := auth.ValidateToken(token)
		if err != nil {
			log.Printf("Rejecting connection with invalid token: %v", err)
			conn.Close()
			return nil
		}
		player.ID = claims.PlayerID
		player.Username = claims.Username
		player.Guest = claims.Guest
		return player
	}

	player.ID = uuid.New().String()
	player.Username = r.URL.Query().Get("username")
	if player.Username == "" {
		player.Username = "Player_" + player.ID[:8]
	}
	return player
}

func (h *WebSocketHandler) reject(conn *websocket.Conn, message, code string) {
	conn.WriteJSON(map[string]any{
		"type":    constants.MSG_ERROR,
		"message": message,
		"code":    code,
	})
	conn.Close()
}
