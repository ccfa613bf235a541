package game

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"snakeduel-server/constants"
	"snakeduel-server/models"
)

var (
	ErrMatchExists   = errors.New("match already exists")
	ErrMatchNotFound = errors.New("match not found")
	ErrMatchFull     = errors.New("match is full")
)

// Registry owns every live match. It is constructed in main and passed
// to the components that need it; nothing in this package holds
// process-global state.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]*models.Match
}

func NewRegistry() *Registry {
	return &Registry{
		matches: make(map[string]*models.Match),
	}
}

// Create allocates a new waiting match under matchID.
func (r *Registry) Create(matchID string, cfg models.MatchConfig) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.matches[matchID]; exists {
		return nil, ErrMatchExists
	}

	match := &models.Match{
		ID:        matchID,
		Players:   make(map[string]*models.Player),
		Snakes:    make(map[string]*models.Snake),
		Order:     make([]string, 0, 2),
		Apples:    make([]models.Apple, 0, constants.INITIAL_APPLES),
		Config:    cfg,
		Status:    models.StatusWaiting,
		CreatedAt: time.Now(),
	}
	r.matches[matchID] = match
	return match, nil
}

func (r *Registry) Get(matchID string) (*models.Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	match, exists := r.matches[matchID]
	return match, exists
}

// Delete removes a match. Idempotent.
func (r *Registry) Delete(matchID string) {
	r.mu.Lock()
	match, exists := r.matches[matchID]
	delete(r.matches, matchID)
	r.mu.Unlock()

	if !exists {
		return
	}
	match.Mutex.Lock()
	if match.WaitTimer != nil {
		match.WaitTimer.Stop()
		match.WaitTimer = nil
	}
	match.Mutex.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// AddPlayer joins player to the match and lays out its snake. The
// first joiner spawns in the top-left quadrant heading right, the
// second in the bottom-right quadrant heading left, each with
// SNAKE_START_LENGTH segments trailing behind the head.
func (r *Registry) AddPlayer(matchID string, player *models.Player) (*models.Snake, error) {
	match, exists := r.Get(matchID)
	if !exists {
		return nil, ErrMatchNotFound
	}

	match.Mutex.Lock()
	defer match.Mutex.Unlock()

	if len(match.Order) >= 2 {
		return nil, ErrMatchFull
	}
	if _, exists := match.Players[player.ID]; exists {
		return nil, ErrMatchFull
	}

	snake := startingSnake(player, len(match.Order), match.Config)
	match.Players[player.ID] = player
	match.Snakes[player.ID] = snake
	match.Order = append(match.Order, player.ID)
	return snake, nil
}

func startingSnake(player *models.Player, joinIndex int, cfg models.MatchConfig) *models.Snake {
	var head models.Position
	var dir constants.Direction
	if joinIndex == 0 {
		head = models.Position{X: cfg.Width / 4, Y: cfg.Height / 4}
		dir = constants.RIGHT
	} else {
		head = models.Position{X: 3 * cfg.Width / 4, Y: 3 * cfg.Height / 4}
		dir = constants.LEFT
	}

	body := make([]models.Position, constants.SNAKE_START_LENGTH)
	for i := range body {
		seg := head
		if dir == constants.RIGHT {
			seg.X -= i
		} else {
			seg.X += i
		}
		body[i] = seg
	}

	return &models.Snake{
		ID:        player.ID,
		Body:      body,
		Direction: dir,
		NextDir:   dir,
		Alive:     true,
		Username:  player.Username,
	}
}

// RemovePlayer detaches the player from the match. A match left with
// no players is deleted immediately; there is nobody left to deliver
// a final state to. Returns the remaining players.
func (r *Registry) RemovePlayer(matchID, playerID string) (remaining []*models.Player, removed bool) {
	match, exists := r.Get(matchID)
	if !exists {
		return nil, false
	}

	match.Mutex.Lock()
	if _, exists := match.Players[playerID]; !exists {
		match.Mutex.Unlock()
		return nil, false
	}

	delete(match.Players, playerID)
	delete(match.Snakes, playerID)
	for i, id := range match.Order {
		if id == playerID {
			match.Order = append(match.Order[:i], match.Order[i+1:]...)
			break
		}
	}
	for _, id := range match.Order {
		remaining = append(remaining, match.Players[id])
	}
	empty := len(match.Order) == 0
	match.Mutex.Unlock()

	if empty {
		r.Delete(matchID)
	}
	return remaining, true
}

// SetReady toggles a player's readiness. Reports whether every player
// in a full match is now ready.
func (r *Registry) SetReady(matchID, playerID string, ready bool) (allReady bool, ok bool) {
	match, exists := r.Get(matchID)
	if !exists {
		return false, false
	}

	match.Mutex.Lock()
	defer match.Mutex.Unlock()

	player, exists := match.Players[playerID]
	if !exists || match.Status != models.StatusWaiting {
		return false, false
	}
	player.Ready = ready

	if len(match.Order) < 2 {
		return false, true
	}
	for _, id := range match.Order {
		if !match.Players[id].Ready {
			return false, true
		}
	}
	return true, true
}

// Start moves a waiting match to playing and spawns the initial
// apples. Calling Start on a match in any other state is a no-op.
func (r *Registry) Start(matchID string) bool {
	match, exists := r.Get(matchID)
	if !exists {
		return false
	}

	match.Mutex.Lock()
	defer match.Mutex.Unlock()

	if match.Status != models.StatusWaiting {
		return false
	}
	if match.WaitTimer != nil {
		match.WaitTimer.Stop()
		match.WaitTimer = nil
	}

	match.Status = models.StatusPlaying
	for i := 0; i < constants.INITIAL_APPLES; i++ {
		if !spawnApple(match) {
			log.Printf("Match %s: could not place initial apple %d", matchID, i)
		}
	}
	return true
}
