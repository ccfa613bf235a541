package game

import (
	log "github.com/sirupsen/logrus"

	"snakeduel-server/constants"
	"snakeduel-server/models"
)

// RequestRematch forwards a rematch offer to the opponent of a
// finished match. Finished matches stay terminal; an accepted rematch
// forms a brand-new match.
func (m *Manager) RequestRematch(player *models.Player, matchID string) {
	opponent, ok := m.rematchOpponent(player, matchID)
	if !ok {
		return
	}
	if opponent == nil {
		sendMessage(player, constants.MSG_ERROR, map[string]any{
			"message": "Opponent has left the game",
			"code":    "OPPONENT_DISCONNECTED",
		})
		return
	}

	sendMessage(opponent, constants.MSG_REMATCH_REQUEST, map[string]any{
		"match_id":       matchID,
		"requester_id":   player.ID,
		"requester_name": player.Username,
	})
}

// AcceptRematch forms a new match between the same pair, keeping the
// original join order.
func (m *Manager) AcceptRematch(player *models.Player, matchID string) {
	opponent, ok := m.rematchOpponent(player, matchID)
	if !ok {
		return
	}
	if opponent == nil {
		sendMessage(player, constants.MSG_ERROR, map[string]any{
			"message": "Opponent has left the game",
			"code":    "OPPONENT_DISCONNECTED",
		})
		return
	}

	match, exists := m.Registry.Get(matchID)
	if !exists {
		return
	}
	match.Mutex.RLock()
	first := match.Players[match.Order[0]]
	second := match.Players[match.Order[1]]
	match.Mutex.RUnlock()

	log.Printf("Rematch accepted for match %s", matchID)
	m.formMatch(first, second)
}

// rematchOpponent validates a rematch intent. ok is false when the
// match is missing, unfinished, or the player is not a participant;
// a nil opponent with ok true means the other player is gone.
func (m *Manager) rematchOpponent(player *models.Player, matchID string) (*models.Player, bool) {
	match, exists := m.Registry.Get(matchID)
	if !exists {
		sendMessage(player, constants.MSG_ERROR, map[string]any{
			"message": "Match not found",
			"code":    "MATCH_NOT_FOUND",
		})
		return nil, false
	}

	match.Mutex.RLock()
	defer match.Mutex.RUnlock()

	if match.Status != models.StatusFinished {
		return nil, false
	}
	if _, member := match.Players[player.ID]; !member {
		return nil, false
	}
	if len(match.Order) < 2 {
		return nil, true
	}

	for _, id := range match.Order {
		if id == player.ID {
			continue
		}
		if opponent, connected := m.Sessions.Get(id); connected {
			return opponent, true
		}
	}
	return nil, true
}
