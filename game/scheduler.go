package game

import (
	"sync"
	"time"

	"snakeduel-server/models"
)

// Scheduler runs one recurring tick loop per playing match. It owns
// only the loop handles; all simulation state stays behind the
// registry. The loop goroutine re-checks match existence and status on
// every firing (via Engine.Tick), so a timer racing a deletion is a
// harmless no-op.
type Scheduler struct {
	mu       sync.Mutex
	loops    map[string]chan struct{}
	registry *Registry
	engine   *Engine

	onTick   func(match *models.Match, snap models.MatchSnapshot)
	onFinish func(match *models.Match, snap models.MatchSnapshot)
}

func NewScheduler(registry *Registry, engine *Engine,
	onTick, onFinish func(*models.Match, models.MatchSnapshot)) *Scheduler {
	return &Scheduler{
		loops:    make(map[string]chan struct{}),
		registry: registry,
		engine:   engine,
		onTick:   onTick,
		onFinish: onFinish,
	}
}

// StartLoop begins ticking the match at interval. Starting a loop for
// a match that already has one cancels the old loop first.
func (s *Scheduler) StartLoop(matchID string, interval time.Duration) {
	s.mu.Lock()
	if old, exists := s.loops[matchID]; exists {
		close(old)
	}
	stop := make(chan struct{})
	s.loops[matchID] = stop
	s.mu.Unlock()

	go s.run(matchID, interval, stop)
}

// StopLoop cancels the match's loop. No-op when none is running.
func (s *Scheduler) StopLoop(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stop, exists := s.loops[matchID]; exists {
		close(stop)
		delete(s.loops, matchID)
	}
}

// Running reports whether the match currently has a tick loop.
func (s *Scheduler) Running(matchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.loops[matchID]
	return exists
}

// release drops the loop handle, but only if it still belongs to this
// loop; a defensive restart may have replaced it.
func (s *Scheduler) release(matchID string, stop chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, exists := s.loops[matchID]; exists && current == stop {
		delete(s.loops, matchID)
	}
}

func (s *Scheduler) run(matchID string, interval time.Duration, stop chan struct{}) {
	defer s.release(matchID, stop)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.engine.Tick(matchID) {
				return
			}
			match, exists := s.registry.Get(matchID)
			if !exists {
				return
			}
			snap := match.Snapshot()
			if snap.Status == models.StatusFinished {
				if s.onFinish != nil {
					s.onFinish(match, snap)
				}
				return
			}
			if s.onTick != nil {
				s.onTick(match, snap)
			}
		}
	}
}
