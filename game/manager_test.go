package game

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"snakeduel-server/constants"
	"snakeduel-server/models"
)

// nextMessage pops one decoded message from the player's send channel.
func nextMessage(t *testing.T, player *models.Player) map[string]any {
	t.Helper()
	select {
	case raw := <-player.Send:
		var msg map[string]any
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("undecodable message: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("expected a message, got none")
		return nil
	}
}

// awaitMessage drains the channel until a message of the wanted type
// arrives.
func awaitMessage(t *testing.T, player *models.Player, msgType string) map[string]any {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case raw := <-player.Send:
			var msg map[string]any
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("undecodable message: %v", err)
			}
			if msg["type"] == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("no %s message arrived", msgType)
			return nil
		}
	}
}

func connectedPair(t *testing.T, m *Manager) (*models.Player, *models.Player, string) {
	t.Helper()

	p1 := newTestPlayer("p1", "Alice")
	p2 := newTestPlayer("p2", "Bob")
	m.RegisterPlayer(p1)
	m.RegisterPlayer(p2)

	m.RequestMatch(p1)
	if msg := nextMessage(t, p1); msg["type"] != constants.MSG_MATCHMAKING_WAITING {
		t.Fatalf("expected matchmaking_waiting, got %v", msg["type"])
	}

	m.RequestMatch(p2)
	found := awaitMessage(t, p1, constants.MSG_MATCH_FOUND)
	awaitMessage(t, p2, constants.MSG_MATCH_FOUND)

	matchID, _ := found["match_id"].(string)
	if matchID == "" {
		t.Fatal("match_found carried no match id")
	}
	return p1, p2, matchID
}

func TestManagerMatchmakingPairsPlayers(t *testing.T) {
	m := NewManager(nil)
	p1, p2, matchID := connectedPair(t, m)

	if bound, ok := m.Sessions.MatchOf(p1.ID); !ok || bound != matchID {
		t.Errorf("p1 not bound to match, got %q", bound)
	}
	if bound, ok := m.Sessions.MatchOf(p2.ID); !ok || bound != matchID {
		t.Errorf("p2 not bound to match, got %q", bound)
	}

	match, exists := m.Registry.Get(matchID)
	if !exists {
		t.Fatal("match missing from registry")
	}
	snap := match.Snapshot()
	if snap.Status != models.StatusWaiting {
		t.Errorf("fresh match should be waiting, got %s", snap.Status)
	}
	if len(snap.Players) != 2 || snap.Players[0].ID != "p1" {
		t.Errorf("join order lost: %v", snap.Players)
	}
}

func TestManagerCancelMatchmakingIdempotent(t *testing.T) {
	m := NewManager(nil)
	p1 := newTestPlayer("p1", "Alice")
	m.RegisterPlayer(p1)

	m.RequestMatch(p1)
	nextMessage(t, p1)

	m.CancelMatchmaking(p1)
	if msg := nextMessage(t, p1); msg["type"] != constants.MSG_MATCHMAKING_CANCELLED {
		t.Fatalf("expected cancellation ack, got %v", msg["type"])
	}
	m.CancelMatchmaking(p1)
	if msg := nextMessage(t, p1); msg["type"] != constants.MSG_MATCHMAKING_CANCELLED {
		t.Fatalf("second cancel should still ack, got %v", msg["type"])
	}
	if m.Queue.Len() != 0 {
		t.Errorf("queue should be empty, got %d", m.Queue.Len())
	}
}

func TestManagerReadyGateStartsMatch(t *testing.T) {
	m := NewManager(nil)
	p1, p2, matchID := connectedPair(t, m)
	defer m.Scheduler.StopLoop(matchID)

	m.SetReady(p1, matchID, true)
	awaitMessage(t, p1, constants.MSG_READY_UPDATE)
	awaitMessage(t, p2, constants.MSG_READY_UPDATE)

	match, _ := m.Registry.Get(matchID)
	if match.Snapshot().Status != models.StatusWaiting {
		t.Fatal("match must not start with one ready player")
	}

	m.SetReady(p2, matchID, true)
	awaitMessage(t, p1, constants.MSG_GAME_START)
	awaitMessage(t, p2, constants.MSG_GAME_START)

	snap := match.Snapshot()
	if snap.Status != models.StatusPlaying {
		t.Errorf("expected playing, got %s", snap.Status)
	}
	if len(snap.Apples) != constants.INITIAL_APPLES {
		t.Errorf("expected %d apples, got %d", constants.INITIAL_APPLES, len(snap.Apples))
	}
	if !m.Scheduler.Running(matchID) {
		t.Error("tick loop should be running")
	}
}

func TestManagerDirectionReversalDropped(t *testing.T) {
	m := NewManager(nil)
	p1, p2, matchID := connectedPair(t, m)
	defer m.Scheduler.StopLoop(matchID)

	m.SetReady(p1, matchID, true)
	m.SetReady(p2, matchID, true)

	match, _ := m.Registry.Get(matchID)
	snake := func() *models.Snake {
		match.Mutex.RLock()
		defer match.Mutex.RUnlock()
		return match.Snakes[p1.ID]
	}()

	// p1 heads right; left is the exact reversal.
	m.ChangeDirection(p1, matchID, "left")
	match.Mutex.RLock()
	next := snake.NextDir
	match.Mutex.RUnlock()
	if next != constants.RIGHT {
		t.Errorf("reversal must leave NextDir unchanged, got %v", next)
	}

	m.ChangeDirection(p1, matchID, "up")
	match.Mutex.RLock()
	next = snake.NextDir
	match.Mutex.RUnlock()
	if next != constants.UP {
		t.Errorf("legal turn should buffer, got %v", next)
	}

	m.ChangeDirection(p1, matchID, "sideways")
	match.Mutex.RLock()
	next = snake.NextDir
	match.Mutex.RUnlock()
	if next != constants.UP {
		t.Errorf("garbage direction should be ignored, got %v", next)
	}
}

func TestManagerDirectionIgnoredBeforeStart(t *testing.T) {
	m := NewManager(nil)
	p1, _, matchID := connectedPair(t, m)

	m.ChangeDirection(p1, matchID, "up")

	match, _ := m.Registry.Get(matchID)
	match.Mutex.RLock()
	defer match.Mutex.RUnlock()
	if match.Snakes[p1.ID].NextDir != constants.RIGHT {
		t.Error("direction change must be ignored while waiting")
	}
}

func TestManagerDisconnectMidGameFinishesMatch(t *testing.T) {
	m := NewManager(nil)
	p1, p2, matchID := connectedPair(t, m)
	defer m.Scheduler.StopLoop(matchID)

	m.SetReady(p1, matchID, true)
	m.SetReady(p2, matchID, true)

	m.RemovePlayer(p2.ID)

	awaitMessage(t, p1, constants.MSG_PLAYER_DISCONNECTED)
	over := awaitMessage(t, p1, constants.MSG_GAME_OVER)
	data, _ := over["data"].(map[string]any)
	if data == nil || data["winner"] != "p1" {
		t.Errorf("remaining player should win, got %v", over)
	}

	if m.Scheduler.Running(matchID) {
		t.Error("tick loop should be stopped")
	}
	if _, exists := m.Registry.Get(matchID); !exists {
		t.Error("finished match should survive the grace window")
	}
	if _, bound := m.Sessions.MatchOf(p2.ID); bound {
		t.Error("leaver should be unbound from the match")
	}
}

func TestManagerDisconnectWhileWaitingTearsDownMatch(t *testing.T) {
	m := NewManager(nil)
	p1, p2, matchID := connectedPair(t, m)

	m.RemovePlayer(p2.ID)

	awaitMessage(t, p1, constants.MSG_PLAYER_DISCONNECTED)
	if _, exists := m.Registry.Get(matchID); exists {
		t.Error("half-empty waiting match should be deleted")
	}
	if _, bound := m.Sessions.MatchOf(p1.ID); bound {
		t.Error("remaining player should be unbound")
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	results map[string]bool
}

func (f *fakeRecorder) RecordResult(playerID string, won bool) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.results == nil {
		f.results = make(map[string]bool)
	}
	f.results[playerID] = won
	return 1, 0, nil
}

func (f *fakeRecorder) get(playerID string) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	won, ok := f.results[playerID]
	return won, ok
}

func TestManagerRecordsResultsForRegisteredPlayers(t *testing.T) {
	rec := &fakeRecorder{}
	m := NewManager(rec)
	p1, p2, matchID := connectedPair(t, m)
	defer m.Scheduler.StopLoop(matchID)
	p1.Guest = false
	p2.Guest = false

	m.SetReady(p1, matchID, true)
	m.SetReady(p2, matchID, true)
	m.RemovePlayer(p2.ID)

	// Recording is fire-and-forget; poll briefly.
	deadline := time.Now().Add(time.Second)
	for {
		wonP1, okP1 := rec.get("p1")
		wonP2, okP2 := rec.get("p2")
		if okP1 && okP2 {
			if !wonP1 {
				t.Error("p1 should be recorded as winner")
			}
			if wonP2 {
				t.Error("p2 should be recorded as loser")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("results never recorded: p1=%v p2=%v", okP1, okP2)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManagerGuestResultsNotRecorded(t *testing.T) {
	rec := &fakeRecorder{}
	m := NewManager(rec)
	p1, p2, matchID := connectedPair(t, m)
	defer m.Scheduler.StopLoop(matchID)
	p1.Guest = true
	p2.Guest = true

	m.SetReady(p1, matchID, true)
	m.SetReady(p2, matchID, true)
	m.RemovePlayer(p2.ID)

	time.Sleep(50 * time.Millisecond)
	if _, ok := rec.get("p1"); ok {
		t.Error("guest results must not be persisted")
	}
	if _, ok := rec.get("p2"); ok {
		t.Error("guest results must not be persisted")
	}
}

func TestManagerRematchFormsNewMatch(t *testing.T) {
	m := NewManager(nil)
	p1, p2, matchID := connectedPair(t, m)
	defer m.Scheduler.StopLoop(matchID)

	m.SetReady(p1, matchID, true)
	m.SetReady(p2, matchID, true)
	m.Scheduler.StopLoop(matchID)

	match, _ := m.Registry.Get(matchID)
	match.Mutex.Lock()
	match.Status = models.StatusFinished
	match.Winner = "p1"
	match.Mutex.Unlock()

	m.RequestRematch(p1, matchID)
	awaitMessage(t, p2, constants.MSG_REMATCH_REQUEST)

	m.AcceptRematch(p2, matchID)
	found1 := awaitMessage(t, p1, constants.MSG_MATCH_FOUND)
	awaitMessage(t, p2, constants.MSG_MATCH_FOUND)

	newID, _ := found1["match_id"].(string)
	if newID == "" || newID == matchID {
		t.Fatalf("rematch should form a fresh match, got %q", newID)
	}
	if bound, ok := m.Sessions.MatchOf(p1.ID); !ok || bound != newID {
		t.Errorf("p1 should be bound to the new match")
	}

	newMatch, exists := m.Registry.Get(newID)
	if !exists {
		t.Fatal("new match missing")
	}
	if newMatch.Snapshot().Status != models.StatusWaiting {
		t.Error("rematch starts in waiting state")
	}
}

func TestManagerStateQueryDuringGraceWindow(t *testing.T) {
	m := NewManager(nil)
	p1, p2, matchID := connectedPair(t, m)
	defer m.Scheduler.StopLoop(matchID)

	m.SetReady(p1, matchID, true)
	m.SetReady(p2, matchID, true)
	m.RemovePlayer(p2.ID)

	m.SendMatchState(p1, matchID)
	update := awaitMessage(t, p1, constants.MSG_GAME_UPDATE)
	data, _ := update["data"].(map[string]any)
	if data == nil || data["status"] != string(models.StatusFinished) {
		t.Errorf("late query should see the finished state, got %v", update)
	}
}
