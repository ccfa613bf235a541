package game

import (
	"snakeduel-server/models"
)

// RelayPeerSignal forwards a WebRTC signaling payload (offer, answer
// or ICE candidate) to the player's match opponent. The server only
// relays; it never terminates a peer connection itself.
func (m *Manager) RelayPeerSignal(player *models.Player, msgType string, msg map[string]any) {
	matchID, bound := m.Sessions.MatchOf(player.ID)
	if !bound {
		return
	}
	match, exists := m.Registry.Get(matchID)
	if !exists {
		return
	}

	match.Mutex.RLock()
	var opponent *models.Player
	for _, id := range match.Order {
		if id != player.ID {
			opponent = match.Players[id]
		}
	}
	match.Mutex.RUnlock()

	if opponent == nil {
		return
	}

	payload := map[string]any{
		"match_id":       matchID,
		"from_player_id": player.ID,
	}
	for k, v := range msg {
		if k == "type" || k == "match_id" {
			continue
		}
		payload[k] = v
	}
	sendMessage(opponent, msgType, payload)
}
