package models

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"snakeduel-server/constants"
)

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type PlayerStatus struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Ready    bool   `json:"ready"`
}

// Snake is an ordered segment chain, head first.
type Snake struct {
	ID        string              `json:"id"`
	Body      []Position          `json:"body"`
	Direction constants.Direction `json:"direction"`
	NextDir   constants.Direction `json:"-"`
	Alive     bool                `json:"alive"`
	Username  string              `json:"username,omitempty"`
}

// Head returns the snake's head position.
func (s *Snake) Head() Position {
	return s.Body[0]
}

// Occupies reports whether any segment of the snake sits on pos.
func (s *Snake) Occupies(pos Position) bool {
	for _, seg := range s.Body {
		if seg == pos {
			return true
		}
	}
	return false
}

type Apple struct {
	Position Position `json:"position"`
}

type Player struct {
	ID       string          `json:"id"`
	Conn     *websocket.Conn `json:"-"`
	Send     chan []byte     `json:"-"`
	Username string          `json:"username"`
	Ready    bool            `json:"ready"`
	Guest    bool            `json:"guest"`
	JoinedAt time.Time       `json:"joined_at"`
}

type MatchStatus string

const (
	StatusWaiting  MatchStatus = "waiting"
	StatusPlaying  MatchStatus = "playing"
	StatusFinished MatchStatus = "finished"
)

// MatchConfig holds per-match simulation settings.
type MatchConfig struct {
	Width        int
	Height       int
	TickInterval time.Duration
}

func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Width:        constants.GRID_WIDTH,
		Height:       constants.GRID_HEIGHT,
		TickInterval: constants.TICK_RATE,
	}
}

// Match is one two-player game instance. Players and Snakes are keyed
// by player ID; Order records join order and is the tick iteration
// order. All fields behind Mutex.
type Match struct {
	ID        string
	Players   map[string]*Player
	Snakes    map[string]*Snake
	Order     []string
	Apples    []Apple
	Config    MatchConfig
	Status    MatchStatus
	Winner    string
	Mutex     sync.RWMutex
	WaitTimer *time.Timer
	CreatedAt time.Time
}

// MatchSnapshot is the per-tick state sent to clients.
type MatchSnapshot struct {
	ID      string         `json:"id"`
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Players []PlayerStatus `json:"players"`
	Snakes  []Snake        `json:"snakes"`
	Apples  []Apple        `json:"apples"`
	Status  MatchStatus    `json:"status"`
	Winner  string         `json:"winner,omitempty"`
}

// Snapshot copies the match state for broadcast. Snake bodies are
// deep-copied so the simulation can keep mutating after the snapshot
// is handed off.
func (m *Match) Snapshot() MatchSnapshot {
	m.Mutex.RLock()
	defer m.Mutex.RUnlock()

	snap := MatchSnapshot{
		ID:      m.ID,
		Width:   m.Config.Width,
		Height:  m.Config.Height,
		Players: make([]PlayerStatus, 0, len(m.Order)),
		Snakes:  make([]Snake, 0, len(m.Order)),
		Apples:  append([]Apple(nil), m.Apples...),
		Status:  m.Status,
		Winner:  m.Winner,
	}
	for _, id := range m.Order {
		p, ok := m.Players[id]
		if !ok {
			continue
		}
		snap.Players = append(snap.Players, PlayerStatus{ID: p.ID, Username: p.Username, Ready: p.Ready})
		if s, ok := m.Snakes[id]; ok {
			cp := *s
			cp.Body = append([]Position(nil), s.Body...)
			snap.Snakes = append(snap.Snakes, cp)
		}
	}
	return snap
}
