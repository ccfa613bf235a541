package game

import (
	"sync"
	"time"

	"snakeduel-server/models"
)

type waitingEntry struct {
	Player     *models.Player
	EnqueuedAt time.Time
}

// PairingQueue holds players waiting for an opponent, oldest first.
// It owns only the transient waiting entries, never match state.
type PairingQueue struct {
	mu      sync.Mutex
	entries []waitingEntry
}

func NewPairingQueue() *PairingQueue {
	return &PairingQueue{
		entries: make([]waitingEntry, 0),
	}
}

// RequestMatch either pairs the requester with the longest-waiting
// entry or enqueues them. A player re-requesting while already queued
// keeps a single entry and goes to the back. Returns the popped
// opponent when a pair formed.
func (q *PairingQueue) RequestMatch(player *models.Player) (opponent *models.Player, paired bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.removeLocked(player.ID)

	if len(q.entries) > 0 {
		oldest := q.entries[0]
		q.entries = q.entries[1:]
		return oldest.Player, true
	}

	q.entries = append(q.entries, waitingEntry{Player: player, EnqueuedAt: time.Now()})
	return nil, false
}

// Cancel removes any pending entry for the player. No-op if absent.
func (q *PairingQueue) Cancel(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(playerID)
}

func (q *PairingQueue) removeLocked(playerID string) bool {
	for i, e := range q.entries {
		if e.Player.ID == playerID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (q *PairingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
