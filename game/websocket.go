package game

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"snakeduel-server/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ReadPump drains the player's connection until it drops, dispatching
// each decoded message into the manager. Runs as one goroutine per
// session.
func ReadPump(player *models.Player, m *Manager) {
	defer func() {
		m.RemovePlayer(player.ID)
		player.Conn.Close()
	}()

	player.Conn.SetReadDeadline(time.Now().Add(pongWait))
	player.Conn.SetPongHandler(func(string) error {
		player.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := player.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg map[string]any
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		msgType, ok := msg["type"].(string)
		if !ok {
			continue
		}

		m.handleMessage(player, msgType, msg)
	}
}

// WritePump flushes the player's send channel to the connection and
// keeps the connection alive with pings.
func WritePump(player *models.Player) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		player.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-player.Send:
			player.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				player.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := player.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(player.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-player.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			player.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := player.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendMessage enqueues one message for a player. A full send buffer
// means the consumer is stalled; the message is dropped rather than
// blocking the simulation.
func sendMessage(player *models.Player, msgType string, data map[string]any) {
	if player == nil || player.Send == nil {
		return
	}

	message := map[string]any{
		"type": msgType,
	}
	for k, v := range data {
		message[k] = v
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling %s message: %v", msgType, err)
		return
	}

	select {
	case player.Send <- jsonData:
	default:
		log.Printf("Dropping %s message for player %s, send buffer full", msgType, player.ID)
	}
}
