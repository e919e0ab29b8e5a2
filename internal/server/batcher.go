package server

import (
	"sync"
	"time"

	"github.com/tTong32/Real-Time-Chess-sub000/internal/game"
	"github.com/tTong32/Real-Time-Chess-sub000/internal/protocol"
)

// Broadcast batching windows. A state update waits out the debounce so a
// burst of moves collapses into one message; the hard cap bounds how stale a
// delivered state can be once updates keep arriving.
const (
	broadcastDebounce = 100 * time.Millisecond
	broadcastMaxDelay = 500 * time.Millisecond
)

// pendingState is the not-yet-emitted update for one game. Only the latest
// state matters; newer snapshots replace older ones in place.
type pendingState struct {
	state   *game.GameState
	firstAt time.Time
	timer   *time.Timer
}

// Broadcaster batches gameStateUpdate fan-out per game: at most one outbound
// message per debounce window, never more than the hard cap after the first
// pending update. Publish takes a snapshot the caller must not mutate.
type Broadcaster struct {
	hub *Hub

	debounce time.Duration
	maxDelay time.Duration

	mu      sync.Mutex
	pending map[string]*pendingState
}

// NewBroadcaster returns a broadcaster with the standard windows.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return newBroadcaster(hub, broadcastDebounce, broadcastMaxDelay)
}

func newBroadcaster(hub *Hub, debounce, maxDelay time.Duration) *Broadcaster {
	return &Broadcaster{
		hub:      hub,
		debounce: debounce,
		maxDelay: maxDelay,
		pending:  make(map[string]*pendingState),
	}
}

// Publish schedules a state snapshot for delivery to the game's subscribers.
// A snapshot already pending is replaced; emission is pushed back by the
// debounce but never beyond the hard cap from the first pending update.
func (b *Broadcaster) Publish(gameID string, state *game.GameState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.pending[gameID]; ok {
		p.state = state
		delay := b.debounce
		if remaining := b.maxDelay - time.Since(p.firstAt); remaining < delay {
			delay = remaining
			if delay < 0 {
				delay = 0
			}
		}
		p.timer.Reset(delay)
		return
	}

	p := &pendingState{state: state, firstAt: time.Now()}
	p.timer = time.AfterFunc(b.debounce, func() { b.emit(gameID) })
	b.pending[gameID] = p
}

// Flush emits a game's pending update immediately, if any.
func (b *Broadcaster) Flush(gameID string) {
	b.emit(gameID)
}

// FlushAll drains every pending update; called on shutdown.
func (b *Broadcaster) FlushAll() {
	b.mu.Lock()
	ids := make([]string, 0, len(b.pending))
	for id := range b.pending {
		ids = append(ids, id)
	}
	b.mu.Unlock()
	for _, id := range ids {
		b.emit(id)
	}
}

// emit sends the latest pending state for the game and clears the entry.
func (b *Broadcaster) emit(gameID string) {
	b.mu.Lock()
	p, ok := b.pending[gameID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.pending, gameID)
	p.timer.Stop()
	state := p.state
	b.mu.Unlock()

	data, err := protocol.Encode(protocol.EventGameStateUpdate, protocol.GameStateUpdate{State: state})
	if err != nil {
		log.Errorf("encode state update for game %s: %v", gameID, err)
		return
	}
	b.hub.BroadcastToGame(gameID, data)
}
