package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tTong32/Real-Time-Chess-sub000/internal/game"
	"github.com/tTong32/Real-Time-Chess-sub000/internal/protocol"
	"github.com/tTong32/Real-Time-Chess-sub000/internal/storage"
)

// Finish-persistence retry parameters. A finished game that fails to persist
// is retried in the background; the in-memory result is already correct.
const (
	finishRetryAttempts = 5
	finishRetryBackoff  = 500 * time.Millisecond
)

// gameSlot pairs a live engine with its persistence record. The slot mutex
// serialises every operation on the game: move attempts, ticks and
// checkpoints never overlap for one game, while distinct games run in
// parallel.
type gameSlot struct {
	mu     sync.Mutex
	engine *game.Engine
	rec    *storage.GameRecord
}

// GameManager owns every live game engine. It creates and starts games,
// routes move attempts, drives the periodic tick/checkpoint loop, settles
// ratings when rated games end, and feeds state snapshots to the
// broadcaster.
type GameManager struct {
	store *storage.Store
	hub   *Hub
	bcast *Broadcaster

	tickInterval    time.Duration
	checkpointEvery int

	// now supplies wall-clock milliseconds; swapped out in tests.
	now func() int64

	mu    sync.RWMutex
	slots map[string]*gameSlot
}

// NewGameManager wires a manager to its store, hub and broadcaster.
func NewGameManager(store *storage.Store, hub *Hub, bcast *Broadcaster, tickInterval time.Duration, checkpointEvery int) *GameManager {
	return &GameManager{
		store:           store,
		hub:             hub,
		bcast:           bcast,
		tickInterval:    tickInterval,
		checkpointEvery: checkpointEvery,
		now:             func() int64 { return time.Now().UnixMilli() },
		slots:           make(map[string]*gameSlot),
	}
}

// CreateGame persists a fresh waiting game on a standard board and returns
// its identifier. The engine is not constructed until the game starts.
func (m *GameManager) CreateGame(whiteID, blackID string, rated bool, roomCode string) (string, error) {
	now := m.now()
	gs := game.NewGameState(uuid.NewString(), whiteID, blackID, rated, now)
	rec := storage.NewGameRecord(gs, roomCode, now)
	if err := m.store.CreateGame(rec); err != nil {
		return "", fmt.Errorf("create game: %w", err)
	}
	return gs.ID, nil
}

// StartGame transitions a waiting game to active, constructs its engine and
// returns a snapshot of the live state.
func (m *GameManager) StartGame(id string) (*game.GameState, error) {
	rec, err := m.store.GetGame(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.Status != game.StatusWaiting {
		return nil, ErrGameNotWaiting
	}

	gs := rec.State()
	gs.Status = game.StatusActive
	gs.StartedAt = m.now()

	m.mu.Lock()
	if _, ok := m.slots[id]; ok {
		m.mu.Unlock()
		return nil, ErrGameNotWaiting
	}
	slot := &gameSlot{engine: game.NewEngine(gs), rec: rec}
	m.slots[id] = slot
	m.mu.Unlock()

	slot.mu.Lock()
	defer slot.mu.Unlock()
	rec.Sync(gs)
	if err := m.store.UpdateGame(rec); err != nil {
		m.evict(id)
		return nil, fmt.Errorf("start game %s: %w", id, err)
	}
	return gs.Clone(), nil
}

// slot returns the live slot for a game, rehydrating it from persistence if
// the engine is not in memory. Only active games rehydrate.
func (m *GameManager) slot(id string) (*gameSlot, error) {
	m.mu.RLock()
	s := m.slots[id]
	m.mu.RUnlock()
	if s != nil {
		return s, nil
	}

	rec, err := m.store.GetGame(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.Status != game.StatusActive {
		return nil, ErrGameNotActive
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.slots[id]; s != nil {
		return s, nil
	}
	s = &gameSlot{engine: game.NewEngine(rec.State()), rec: rec}
	m.slots[id] = s
	return s, nil
}

// AttemptMove runs one move attempt end to end: tick the clock forward,
// validate and execute, then persist and broadcast on success. Rejections
// come back in the outcome and leave persisted state untouched.
func (m *GameManager) AttemptMove(id string, mv game.Move) (game.MoveOutcome, error) {
	s, err := m.slot(id)
	if err != nil {
		return game.MoveOutcome{Move: mv}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := m.now()
	eng := s.engine
	if err := eng.Tick(now); err != nil {
		m.abortGame(id, eng, err)
		return game.MoveOutcome{Move: mv}, err
	}

	out, err := eng.AttemptMove(mv, now)
	if err != nil {
		m.abortGame(id, eng, err)
		return out, err
	}
	if !out.OK {
		return out, nil
	}

	gs := eng.State()
	if gs.Status == game.StatusFinished {
		m.finishGame(id, s, now)
		return out, nil
	}

	s.rec.Sync(gs)
	if err := m.store.UpdateGame(s.rec); err != nil {
		// The move already happened in memory; the next checkpoint retries.
		log.Errorf("persist move for game %s: %v", id, err)
	}
	m.bcast.Publish(id, gs.Clone())
	return out, nil
}

// Snapshot returns a copy of a game's current state, from memory when the
// engine is live, otherwise from persistence.
func (m *GameManager) Snapshot(id string) (*game.GameState, error) {
	m.mu.RLock()
	s := m.slots[id]
	m.mu.RUnlock()
	if s != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.engine.State().Clone(), nil
	}

	rec, err := m.store.GetGame(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.State(), nil
}

// AbandonGame marks a waiting game abandoned; rooms use it on expiry and
// host departure. Games that already started are not touched.
func (m *GameManager) AbandonGame(id string) error {
	rec, err := m.store.GetGame(id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrGameNotFound
	}
	if err != nil {
		return err
	}
	if rec.Status != game.StatusWaiting {
		return ErrGameNotWaiting
	}
	rec.Status = game.StatusAbandoned
	return m.store.UpdateGame(rec)
}

// finishGame settles an ended game: winner resolution against the surviving
// kings, final persistence with retry, rating updates for rated games, the
// gameEnded broadcast, and eviction. Called with the slot lock held.
func (m *GameManager) finishGame(id string, s *gameSlot, now int64) {
	eng := s.engine
	gs := eng.State()

	// The engine marks the winner on a direct king capture; re-derive from
	// the board so a state with both kings gone still resolves
	// deterministically.
	whiteKingGone := gs.Board.FindKing(game.White) == nil
	blackKingGone := gs.Board.FindKing(game.Black) == nil
	if winner := eng.ResolveSimultaneousKingCapture(whiteKingGone, blackKingGone); winner != nil {
		gs.Status = game.StatusFinished
		gs.Winner = winner
	}

	s.rec.Sync(gs)
	s.rec.EndedAt = now
	m.persistFinished(id, s.rec)

	if gs.Rated && gs.Winner != nil {
		m.updateRatings(gs.PlayerID(*gs.Winner), gs.PlayerID(gs.Winner.Other()))
	}

	winner := ""
	if gs.Winner != nil {
		winner = gs.Winner.String()
	}
	m.bcast.Flush(id)
	data, err := protocol.Encode(protocol.EventGameEnded, protocol.GameEnded{
		GameID: id,
		Winner: winner,
		State:  gs.Clone(),
	})
	if err != nil {
		log.Errorf("encode gameEnded for %s: %v", id, err)
	} else {
		m.hub.BroadcastToGame(id, data)
	}

	m.evict(id)
	m.hub.DropGame(id)
	log.Infof("game %s finished, winner %s", id, winner)
}

// persistFinished writes the final record, retrying in the background with
// backoff on failure. A dropped win is never hidden: every failed attempt is
// logged loudly.
func (m *GameManager) persistFinished(id string, rec *storage.GameRecord) {
	err := m.store.UpdateGame(rec)
	if err == nil {
		return
	}
	log.Errorf("persist finished game %s: %v (retrying)", id, err)
	go func() {
		backoff := finishRetryBackoff
		for attempt := 1; attempt <= finishRetryAttempts; attempt++ {
			time.Sleep(backoff)
			err := m.store.UpdateGame(rec)
			if err == nil {
				log.Infof("persist finished game %s succeeded on retry %d", id, attempt)
				return
			}
			log.Errorf("persist finished game %s retry %d: %v", id, attempt, err)
			backoff *= 2
		}
		log.Criticalf("giving up persisting finished game %s; result may be lost", id)
	}()
}

// updateRatings applies the Elo exchange for a decided rated game.
func (m *GameManager) updateRatings(winnerID, loserID string) {
	winner, err := m.store.GetUser(winnerID)
	if err != nil {
		log.Errorf("load winner %s for rating update: %v", winnerID, err)
		return
	}
	loser, err := m.store.GetUser(loserID)
	if err != nil {
		log.Errorf("load loser %s for rating update: %v", loserID, err)
		return
	}
	newWinner, newLoser := updatedRatings(winner.Rating, loser.Rating)
	if err := m.store.UpdateUserRating(winnerID, newWinner, true); err != nil {
		log.Errorf("update winner %s rating: %v", winnerID, err)
	}
	if err := m.store.UpdateUserRating(loserID, newLoser, false); err != nil {
		log.Errorf("update loser %s rating: %v", loserID, err)
	}
	log.Infof("ratings updated: %s %d -> %d, %s %d -> %d",
		winnerID, winner.Rating, newWinner, loserID, loser.Rating, newLoser)
}

// abortGame handles a broken invariant: dump full diagnostics, evict the
// game, and leave the persisted record as it was. Only the affected game
// stops; everything else keeps running.
func (m *GameManager) abortGame(id string, eng *game.Engine, cause error) {
	dump, _ := json.Marshal(eng.State())
	log.Criticalf("aborting game %s: %v\nstate: %s", id, cause, dump)
	m.evict(id)
	m.hub.DropGame(id)
}

// evict removes a game from the in-memory registry.
func (m *GameManager) evict(id string) {
	m.mu.Lock()
	delete(m.slots, id)
	m.mu.Unlock()
}

// activeIDs snapshots the registry keys so the tick loop never holds the
// registry lock during per-game work.
func (m *GameManager) activeIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.slots))
	for id := range m.slots {
		ids = append(ids, id)
	}
	return ids
}

// tickAll advances every live game's clock; when checkpoint is set it also
// persists each game's board and player states. Checkpoint failures are
// logged and retried on the next cycle, never interrupting play.
func (m *GameManager) tickAll(checkpoint bool) {
	now := m.now()
	for _, id := range m.activeIDs() {
		m.mu.RLock()
		s := m.slots[id]
		m.mu.RUnlock()
		if s == nil {
			continue
		}

		s.mu.Lock()
		if err := s.engine.Tick(now); err != nil {
			s.mu.Unlock()
			m.abortGame(id, s.engine, err)
			continue
		}
		if checkpoint {
			s.rec.Sync(s.engine.State())
			if err := m.store.UpdateGame(s.rec); err != nil {
				log.Errorf("checkpoint game %s: %v", id, err)
			}
		}
		s.mu.Unlock()
	}
}

// Run drives the periodic game loop until the context is cancelled: a tick
// every interval, a persistence checkpoint every checkpointEvery ticks.
func (m *GameManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	iteration := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			iteration++
			m.tickAll(iteration%m.checkpointEvery == 0)
		}
	}
}
