package game

import (
	"math/rand"

	log "github.com/sirupsen/logrus"

	"snakeduel-server/constants"
	"snakeduel-server/models"
)

// Engine advances matches one discrete step at a time. It holds no
// state of its own beyond the registry reference.
type Engine struct {
	registry *Registry
}

func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry}
}

type pendingMove struct {
	snake   *models.Snake
	newHead models.Position
}

// Tick advances one match by one step: commit buffered directions,
// move every living snake, resolve collisions, consume apples and
// detect termination. Returns false if the match is absent or not
// playing.
//
// Collisions are resolved against a single pre-tick snapshot of all
// bodies: every new head is computed before any body moves, so the
// outcome does not depend on player iteration order. Two heads
// entering the same cell on the same tick kill both snakes.
func (e *Engine) Tick(matchID string) bool {
	match, exists := e.registry.Get(matchID)
	if !exists {
		return false
	}

	match.Mutex.Lock()
	defer match.Mutex.Unlock()

	if match.Status != models.StatusPlaying {
		return false
	}

	moves := make([]pendingMove, 0, len(match.Order))
	for _, id := range match.Order {
		snake, ok := match.Snakes[id]
		if !ok || !snake.Alive {
			continue
		}
		snake.Direction = snake.NextDir
		moves = append(moves, pendingMove{snake: snake, newHead: step(snake.Head(), snake.Direction)})
	}

	// Collision pass. Bodies are still pre-tick here; Alive flags are
	// only written, never read, so late deaths cannot shadow earlier
	// evaluations.
	for i := range moves {
		mv := &moves[i]
		head := mv.newHead

		if head.X < 0 || head.X >= match.Config.Width || head.Y < 0 || head.Y >= match.Config.Height {
			mv.snake.Alive = false
			continue
		}
		if mv.snake.Occupies(head) {
			mv.snake.Alive = false
			continue
		}
		for j := range moves {
			if j == i {
				continue
			}
			other := moves[j]
			if head == other.newHead || other.snake.Occupies(head) {
				mv.snake.Alive = false
				break
			}
		}
	}

	// Movement pass. Dead snakes keep their pre-tick bodies.
	for _, mv := range moves {
		if !mv.snake.Alive {
			continue
		}
		if idx := appleAt(match, mv.newHead); idx >= 0 {
			match.Apples = append(match.Apples[:idx], match.Apples[idx+1:]...)
			mv.snake.Body = append([]models.Position{mv.newHead}, mv.snake.Body...)
			if !spawnApple(match) {
				log.Printf("Match %s: apple respawn gave up, grid nearly full", match.ID)
			}
		} else {
			mv.snake.Body = append([]models.Position{mv.newHead}, mv.snake.Body[:len(mv.snake.Body)-1]...)
		}
	}

	alive := make([]string, 0, 2)
	for _, id := range match.Order {
		if snake, ok := match.Snakes[id]; ok && snake.Alive {
			alive = append(alive, id)
		}
	}
	switch len(alive) {
	case 0:
		match.Status = models.StatusFinished
		match.Winner = ""
	case 1:
		match.Status = models.StatusFinished
		match.Winner = alive[0]
	}

	return true
}

func step(pos models.Position, dir constants.Direction) models.Position {
	switch dir {
	case constants.UP:
		return models.Position{X: pos.X, Y: pos.Y - 1}
	case constants.DOWN:
		return models.Position{X: pos.X, Y: pos.Y + 1}
	case constants.LEFT:
		return models.Position{X: pos.X - 1, Y: pos.Y}
	default:
		return models.Position{X: pos.X + 1, Y: pos.Y}
	}
}

func appleAt(match *models.Match, pos models.Position) int {
	for i, apple := range match.Apples {
		if apple.Position == pos {
			return i
		}
	}
	return -1
}

// spawnApple places one apple on a uniformly random free cell via
// rejection sampling. Gives up after APPLE_SPAWN_RETRIES when the grid
// is nearly full; the simulation tolerates a missing apple. Caller
// holds the match lock.
func spawnApple(match *models.Match) bool {
	for attempt := 0; attempt < constants.APPLE_SPAWN_RETRIES; attempt++ {
		pos := models.Position{
			X: rand.Intn(match.Config.Width),
			Y: rand.Intn(match.Config.Height),
		}
		if cellFree(match, pos) {
			match.Apples = append(match.Apples, models.Apple{Position: pos})
			return true
		}
	}
	return false
}

func cellFree(match *models.Match, pos models.Position) bool {
	for _, snake := range match.Snakes {
		if snake.Occupies(pos) {
			return false
		}
	}
	for _, apple := range match.Apples {
		if apple.Position == pos {
			return false
		}
	}
	return true
}
