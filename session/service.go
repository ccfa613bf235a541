package session

import (
	"sync"

	"snakeduel-server/models"
)

// Service maps connected sessions to player identities and to the
// match each player currently belongs to.
type Service struct {
	mu      sync.RWMutex
	players map[string]*models.Player
	matches map[string]string
	order   []string
}

func NewService() *Service {
	return &Service{
		players: make(map[string]*models.Player),
		matches: make(map[string]string),
		order:   make([]string, 0),
	}
}

func (s *Service) Register(player *models.Player) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.players[player.ID]; exists {
		return false
	}

	s.players[player.ID] = player
	s.order = append(s.order, player.ID)
	return true
}

func (s *Service) Unregister(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.players, playerID)
	delete(s.matches, playerID)
	for i, id := range s.order {
		if id == playerID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Service) Get(playerID string) (*models.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, exists := s.players[playerID]
	return player, exists
}

func (s *Service) ExistsByUsername(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.players {
		if p.Username == username {
			return true
		}
	}
	return false
}

// SetMatch binds the player's session to a match.
func (s *Service) SetMatch(playerID, matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.players[playerID]; exists {
		s.matches[playerID] = matchID
	}
}

func (s *Service) ClearMatch(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.matches, playerID)
}

// MatchOf returns the match the player is currently bound to.
func (s *Service) MatchOf(playerID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matchID, exists := s.matches[playerID]
	return matchID, exists
}

func (s *Service) Snapshot() []*models.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Player, 0, len(s.order))
	for _, id := range s.order {
		if player, exists := s.players[id]; exists {
			result = append(result, player)
		}
	}
	return result
}

func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}
