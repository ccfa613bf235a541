package constants

import "time"

const (
	// Game constants
	GRID_WIDTH  = 40
	GRID_HEIGHT = 30
	TICK_RATE   = 200 * time.Millisecond

	SNAKE_START_LENGTH  = 4
	INITIAL_APPLES      = 2
	APPLE_SPAWN_RETRIES = 100

	// A finished match is retained for FINISH_GRACE so the final state
	// broadcast and late state queries still resolve.
	FINISH_GRACE = 5 * time.Second

	// A match that never leaves the waiting state is evicted after
	// WAITING_TIMEOUT.
	WAITING_TIMEOUT = 2 * time.Minute

	// Message types
	MSG_CONNECTED             = "connected"
	MSG_REQUEST_MATCH         = "request_match"
	MSG_CANCEL_MATCHMAKING    = "cancel_matchmaking"
	MSG_MATCHMAKING_WAITING   = "matchmaking_waiting"
	MSG_MATCHMAKING_CANCELLED = "matchmaking_cancelled"
	MSG_MATCH_FOUND           = "match_found"
	MSG_MATCH_EXPIRED         = "match_expired"
	MSG_PLAYER_READY          = "player_ready"
	MSG_READY_UPDATE          = "ready_update"
	MSG_GAME_START            = "game_start"
	MSG_GAME_UPDATE           = "game_update"
	MSG_PLAYER_MOVE           = "player_move"
	MSG_GAME_OVER             = "game_over"
	MSG_GET_GAME_STATE        = "get_game_state"
	MSG_LEAVE_GAME            = "leave_game"
	MSG_REMATCH_REQUEST       = "rematch_request"
	MSG_REMATCH_ACCEPT        = "rematch_accept"
	MSG_PLAYER_DISCONNECTED   = "player_disconnected"
	MSG_PEER_OFFER            = "peer_offer"
	MSG_PEER_ANSWER           = "peer_answer"
	MSG_PEER_ICE_CANDIDATE    = "peer_ice_candidate"
	MSG_ERROR                 = "error"
)

type Direction int

const (
	UP Direction = iota
	DOWN
	LEFT
	RIGHT
)

// Opposite returns the 180-degree reversal of d.
func (d Direction) Opposite() Direction {
	switch d {
	case UP:
		return DOWN
	case DOWN:
		return UP
	case LEFT:
		return RIGHT
	default:
		return LEFT
	}
}

// ParseDirection maps a wire direction string to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "up":
		return UP, true
	case "down":
		return DOWN, true
	case "left":
		return LEFT, true
	case "right":
		return RIGHT, true
	default:
		return UP, false
	}
}
