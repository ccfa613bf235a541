package game

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"snakeduel-server/constants"
	"snakeduel-server/models"
	"snakeduel-server/session"
)

// ResultRecorder is the persistence collaborator consumed after a
// match finishes. Its outcome never affects the simulation.
type ResultRecorder interface {
	RecordResult(playerID string, won bool) (wins, losses int, err error)
}

// Manager is the session router: it owns the registry, pairing queue
// and scheduler, relays player intents into them and relays resulting
// state back out over each player's send channel.
type Manager struct {
	Registry  *Registry
	Queue     *PairingQueue
	Engine    *Engine
	Scheduler *Scheduler
	Sessions  *session.Service
	Stats     ResultRecorder
}

func NewManager(stats ResultRecorder) *Manager {
	m := &Manager{
		Registry: NewRegistry(),
		Queue:    NewPairingQueue(),
		Sessions: session.NewService(),
		Stats:    stats,
	}
	m.Engine = NewEngine(m.Registry)
	m.Scheduler = NewScheduler(m.Registry, m.Engine, m.broadcastTick, m.finishMatch)
	return m
}

// RegisterPlayer binds a freshly connected session.
func (m *Manager) RegisterPlayer(player *models.Player) {
	if registered := m.Sessions.Register(player); !registered {
		log.Printf("Player %s (%s) already registered", player.ID, player.Username)
		return
	}
	log.Printf("Player %s (%s) connected, sessions: %d", player.ID, player.Username, m.Sessions.Len())
}

// SendConnected acknowledges a fresh session with its identity.
func (m *Manager) SendConnected(player *models.Player) {
	sendMessage(player, constants.MSG_CONNECTED, map[string]any{
		"player": player,
	})
}

// FindPlayerByID returns the connected player with the given ID.
func (m *Manager) FindPlayerByID(playerID string) *models.Player {
	player, exists := m.Sessions.Get(playerID)
	if !exists {
		return nil
	}
	return player
}

// handleMessage processes incoming messages from players.
func (m *Manager) handleMessage(player *models.Player, msgType string, msg map[string]any) {
	switch msgType {
	case constants.MSG_REQUEST_MATCH:
		m.RequestMatch(player)
	case constants.MSG_CANCEL_MATCHMAKING:
		m.CancelMatchmaking(player)
	case constants.MSG_PLAYER_READY:
		if matchID, ok := msg["match_id"].(string); ok {
			ready := true
			if r, ok := msg["ready"].(bool); ok {
				ready = r
			}
			m.SetReady(player, matchID, ready)
		}
	case constants.MSG_PLAYER_MOVE:
		if matchID, ok := msg["match_id"].(string); ok {
			if direction, ok := msg["direction"].(string); ok {
				m.ChangeDirection(player, matchID, direction)
			}
		}
	case constants.MSG_GET_GAME_STATE:
		if matchID, ok := msg["match_id"].(string); ok {
			m.SendMatchState(player, matchID)
		}
	case constants.MSG_LEAVE_GAME:
		if matchID, ok := msg["match_id"].(string); ok {
			m.LeaveMatch(player, matchID)
		}
	case constants.MSG_REMATCH_REQUEST:
		if matchID, ok := msg["match_id"].(string); ok {
			m.RequestRematch(player, matchID)
		}
	case constants.MSG_REMATCH_ACCEPT:
		if matchID, ok := msg["match_id"].(string); ok {
			m.AcceptRematch(player, matchID)
		}
	case constants.MSG_PEER_OFFER, constants.MSG_PEER_ANSWER, constants.MSG_PEER_ICE_CANDIDATE:
		m.RelayPeerSignal(player, msgType, msg)
	}
}

// RequestMatch pairs the player with the longest-waiting opponent or
// queues them. Re-requesting while queued is idempotent.
func (m *Manager) RequestMatch(player *models.Player) {
	if matchID, bound := m.Sessions.MatchOf(player.ID); bound {
		if match, exists := m.Registry.Get(matchID); exists {
			if match.Snapshot().Status != models.StatusFinished {
				sendMessage(player, constants.MSG_ERROR, map[string]any{
					"message": "You are already in a match",
					"code":    "ALREADY_IN_MATCH",
				})
				return
			}
		}
	}

	opponent, paired := m.Queue.RequestMatch(player)
	if !paired {
		sendMessage(player, constants.MSG_MATCHMAKING_WAITING, map[string]any{
			"message": "Waiting for an opponent",
		})
		return
	}

	m.formMatch(opponent, player)
}

// CancelMatchmaking removes the player's pending queue entry.
// Acknowledged even when nothing was queued.
func (m *Manager) CancelMatchmaking(player *models.Player) {
	m.Queue.Cancel(player.ID)
	sendMessage(player, constants.MSG_MATCHMAKING_CANCELLED, map[string]any{
		"status": "cancelled",
	})
}

// formMatch creates a new waiting match with first as player 0 and
// second as player 1 and notifies both participants.
func (m *Manager) formMatch(first, second *models.Player) {
	matchID := uuid.New().String()
	match, err := m.Registry.Create(matchID, models.DefaultMatchConfig())
	if err != nil {
		log.Printf("Match %s create failed: %v", matchID, err)
		return
	}

	first.Ready = false
	second.Ready = false
	if _, err := m.Registry.AddPlayer(matchID, first); err != nil {
		m.Registry.Delete(matchID)
		return
	}
	if _, err := m.Registry.AddPlayer(matchID, second); err != nil {
		m.Registry.Delete(matchID)
		return
	}
	m.Sessions.SetMatch(first.ID, matchID)
	m.Sessions.SetMatch(second.ID, matchID)

	match.Mutex.Lock()
	match.WaitTimer = time.AfterFunc(constants.WAITING_TIMEOUT, func() {
		m.evictIdleMatch(matchID)
	})
	match.Mutex.Unlock()

	snap := match.Snapshot()
	payload := map[string]any{
		"match_id": matchID,
		"data":     snap,
	}
	sendMessage(first, constants.MSG_MATCH_FOUND, payload)
	sendMessage(second, constants.MSG_MATCH_FOUND, payload)

	log.Printf("Match %s formed: %s vs %s", matchID, first.Username, second.Username)
}

// evictIdleMatch tears down a match that never left the waiting state.
func (m *Manager) evictIdleMatch(matchID string) {
	match, exists := m.Registry.Get(matchID)
	if !exists {
		return
	}

	match.Mutex.Lock()
	if match.Status != models.StatusWaiting {
		match.Mutex.Unlock()
		return
	}
	match.Mutex.Unlock()

	log.Printf("Match %s never started, evicting", matchID)

	snap := match.Snapshot()
	for _, status := range snap.Players {
		if bound, ok := m.Sessions.MatchOf(status.ID); ok && bound == matchID {
			m.Sessions.ClearMatch(status.ID)
		}
		if player, ok := m.Sessions.Get(status.ID); ok {
			sendMessage(player, constants.MSG_MATCH_EXPIRED, map[string]any{
				"match_id": matchID,
				"message":  "Match expired before both players were ready",
			})
		}
	}
	m.Registry.Delete(matchID)
}

// SetReady toggles readiness and starts the match once both players
// are ready.
func (m *Manager) SetReady(player *models.Player, matchID string, ready bool) {
	allReady, ok := m.Registry.SetReady(matchID, player.ID, ready)
	if !ok {
		return
	}

	match, exists := m.Registry.Get(matchID)
	if !exists {
		return
	}
	m.broadcast(match, constants.MSG_READY_UPDATE, map[string]any{
		"data": match.Snapshot(),
	})

	if allReady {
		m.startMatch(matchID)
	}
}

func (m *Manager) startMatch(matchID string) {
	if started := m.Registry.Start(matchID); !started {
		return
	}
	match, exists := m.Registry.Get(matchID)
	if !exists {
		return
	}

	m.broadcast(match, constants.MSG_GAME_START, map[string]any{
		"data": match.Snapshot(),
	})
	m.Scheduler.StartLoop(matchID, match.Config.TickInterval)

	log.Printf("Match %s started", matchID)
}

// ChangeDirection buffers the player's intended direction for the next
// tick. A 180-degree reversal of the current direction is dropped, as
// is any change while the match is not playing or the snake is dead.
func (m *Manager) ChangeDirection(player *models.Player, matchID string, directionStr string) {
	direction, ok := constants.ParseDirection(directionStr)
	if !ok {
		return
	}

	match, exists := m.Registry.Get(matchID)
	if !exists {
		return
	}

	match.Mutex.Lock()
	defer match.Mutex.Unlock()

	if match.Status != models.StatusPlaying {
		return
	}
	snake, exists := match.Snakes[player.ID]
	if !exists || !snake.Alive {
		return
	}
	if direction == snake.Direction.Opposite() {
		return
	}
	snake.NextDir = direction
}

// SendMatchState answers a direct state query. Works during the
// post-finish grace window too.
func (m *Manager) SendMatchState(player *models.Player, matchID string) {
	match, exists := m.Registry.Get(matchID)
	if !exists {
		sendMessage(player, constants.MSG_ERROR, map[string]any{
			"message": "Match not found",
			"code":    "MATCH_NOT_FOUND",
		})
		return
	}
	sendMessage(player, constants.MSG_GAME_UPDATE, map[string]any{
		"data": match.Snapshot(),
	})
}

// LeaveMatch removes the player from a match they belong to.
func (m *Manager) LeaveMatch(player *models.Player, matchID string) {
	if bound, ok := m.Sessions.MatchOf(player.ID); !ok || bound != matchID {
		return
	}
	m.removeFromMatch(matchID, player)
}

// RemovePlayer handles a session disconnect: dequeue from matchmaking,
// detach from any match, drop the session.
func (m *Manager) RemovePlayer(playerID string) {
	m.Queue.Cancel(playerID)

	player, exists := m.Sessions.Get(playerID)
	if exists {
		if matchID, bound := m.Sessions.MatchOf(playerID); bound {
			m.removeFromMatch(matchID, player)
		}
		log.Printf("Player %s (%s) disconnected", player.ID, player.Username)
	}
	m.Sessions.Unregister(playerID)
}

// removeFromMatch detaches the player and settles the match.
// Mid-game departure is a normal transition: the remaining player wins
// and the match finishes. An emptied match is deleted on the spot.
func (m *Manager) removeFromMatch(matchID string, player *models.Player) {
	match, exists := m.Registry.Get(matchID)
	if !exists {
		return
	}

	match.Mutex.Lock()
	statusBefore := match.Status
	if snake, ok := match.Snakes[player.ID]; ok {
		snake.Alive = false
	}
	match.Mutex.Unlock()

	remaining, removed := m.Registry.RemovePlayer(matchID, player.ID)
	if !removed {
		return
	}
	m.Sessions.ClearMatch(player.ID)

	if len(remaining) == 0 {
		m.Scheduler.StopLoop(matchID)
		return
	}

	switch statusBefore {
	case models.StatusPlaying:
		m.Scheduler.StopLoop(matchID)

		match.Mutex.Lock()
		if match.Status != models.StatusPlaying {
			// The tick loop finished the match first; its own finish
			// path already settled everything.
			match.Mutex.Unlock()
			return
		}
		match.Status = models.StatusFinished
		if len(remaining) == 1 {
			match.Winner = remaining[0].ID
		}
		match.Mutex.Unlock()

		snap := match.Snapshot()
		for _, p := range remaining {
			sendMessage(p, constants.MSG_PLAYER_DISCONNECTED, map[string]any{
				"match_id": matchID,
				"player":   player.Username,
				"message":  player.Username + " has left the game",
			})
			sendMessage(p, constants.MSG_GAME_OVER, map[string]any{"data": snap})
		}
		m.recordResults(match, snap.Winner)
		m.recordResult(player, false)
		m.scheduleDeletion(matchID)

	case models.StatusWaiting:
		// A half-empty waiting match can never start.
		for _, p := range remaining {
			m.Sessions.ClearMatch(p.ID)
			sendMessage(p, constants.MSG_PLAYER_DISCONNECTED, map[string]any{
				"match_id": matchID,
				"player":   player.Username,
				"message":  player.Username + " has left the game",
			})
		}
		m.Registry.Delete(matchID)

	case models.StatusFinished:
		// Grace deletion is already scheduled.
		for _, p := range remaining {
			sendMessage(p, constants.MSG_PLAYER_DISCONNECTED, map[string]any{
				"match_id": matchID,
				"player":   player.Username,
				"message":  player.Username + " has left the game",
			})
		}
	}
}

// broadcastTick relays a per-tick snapshot to every participant.
func (m *Manager) broadcastTick(match *models.Match, snap models.MatchSnapshot) {
	m.broadcast(match, constants.MSG_GAME_UPDATE, map[string]any{"data": snap})
}

// finishMatch settles a match the tick loop ended: final broadcast,
// stat recording, grace-window deletion.
func (m *Manager) finishMatch(match *models.Match, snap models.MatchSnapshot) {
	m.broadcast(match, constants.MSG_GAME_OVER, map[string]any{"data": snap})
	m.recordResults(match, snap.Winner)
	m.scheduleDeletion(match.ID)

	if snap.Winner == "" {
		log.Printf("Match %s finished in a tie", match.ID)
	} else {
		log.Printf("Match %s finished, winner %s", match.ID, snap.Winner)
	}
}

// recordResults persists win/loss for every non-guest participant.
// Fire-and-forget; a failed write never touches the simulation.
func (m *Manager) recordResults(match *models.Match, winner string) {
	match.Mutex.RLock()
	players := make([]*models.Player, 0, len(match.Order))
	for _, id := range match.Order {
		players = append(players, match.Players[id])
	}
	match.Mutex.RUnlock()

	for _, p := range players {
		m.recordResult(p, p.ID == winner)
	}
}

func (m *Manager) recordResult(player *models.Player, won bool) {
	if m.Stats == nil || player == nil || player.Guest {
		return
	}
	go func(playerID string, won bool) {
		if _, _, err := m.Stats.RecordResult(playerID, won); err != nil {
			log.Printf("Failed to record result for %s: %v", playerID, err)
		}
	}(player.ID, won)
}

// scheduleDeletion purges the finished match after the grace window.
func (m *Manager) scheduleDeletion(matchID string) {
	time.AfterFunc(constants.FINISH_GRACE, func() {
		match, exists := m.Registry.Get(matchID)
		if !exists {
			return
		}
		snap := match.Snapshot()
		for _, status := range snap.Players {
			if bound, ok := m.Sessions.MatchOf(status.ID); ok && bound == matchID {
				m.Sessions.ClearMatch(status.ID)
			}
		}
		m.Scheduler.StopLoop(matchID)
		m.Registry.Delete(matchID)
	})
}

// broadcast sends a message to every player in the match.
func (m *Manager) broadcast(match *models.Match, msgType string, data map[string]any) {
	match.Mutex.RLock()
	players := make([]*models.Player, 0, len(match.Order))
	for _, id := range match.Order {
		players = append(players, match.Players[id])
	}
	match.Mutex.RUnlock()

	for _, p := range players {
		sendMessage(p, msgType, data)
	}
}
