// Package server runs the live side of the chess service: the session hub
// and its batched broadcaster, the game manager with its tick loop, friend
// rooms, rating-based matchmaking, and the websocket transport that feeds
// them. Game rules live in internal/game; this package owns time, fan-out
// and persistence checkpoints.
package server

import (
	"sync"

	"github.com/tTong32/Real-Time-Chess-sub000/internal/logging"
)

var log = logging.GetLog()

// Session is one live real-time connection. The hub only ever talks to this
// interface, so transports and tests can provide their own implementations.
// Send must be safe for concurrent use.
type Session interface {
	ID() string
	Send(data []byte) error
}

// Hub is the session registry: a bidirectional user <-> session mapping plus
// per-game subscription sets covering players and spectators. A user may hold
// several sessions at once (multiple tabs); each receives every message
// addressed to the user.
type Hub struct {
	mu sync.RWMutex
	// sessions maps session id to the live handle.
	sessions map[string]Session
	// users maps user id to the ids of their sessions.
	users map[string]map[string]bool
	// owners maps session id back to its user.
	owners map[string]string
	// watchers maps game id to the session ids subscribed to it.
	watchers map[string]map[string]bool
	// watched is the reverse of watchers, for cleanup on unregister.
	watched map[string]map[string]bool
}

// NewHub returns an empty session hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]Session),
		users:    make(map[string]map[string]bool),
		owners:   make(map[string]string),
		watchers: make(map[string]map[string]bool),
		watched:  make(map[string]map[string]bool),
	}
}

// Register binds a session to its user. Re-registering an id replaces the
// previous handle.
func (h *Hub) Register(userID string, s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sid := s.ID()
	h.sessions[sid] = s
	h.owners[sid] = userID
	if h.users[userID] == nil {
		h.users[userID] = make(map[string]bool)
	}
	h.users[userID][sid] = true
}

// Unregister drops a session and every game subscription it held.
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	userID, ok := h.owners[sessionID]
	if !ok {
		return
	}
	delete(h.sessions, sessionID)
	delete(h.owners, sessionID)
	if set := h.users[userID]; set != nil {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(h.users, userID)
		}
	}
	for gameID := range h.watched[sessionID] {
		if set := h.watchers[gameID]; set != nil {
			delete(set, sessionID)
			if len(set) == 0 {
				delete(h.watchers, gameID)
			}
		}
	}
	delete(h.watched, sessionID)
}

// UserOf returns the user a session belongs to.
func (h *Hub) UserOf(sessionID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	userID, ok := h.owners[sessionID]
	return userID, ok
}

// SessionsOf returns the live sessions of one user.
func (h *Hub) SessionsOf(userID string) []Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Session
	for sid := range h.users[userID] {
		if s := h.sessions[sid]; s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Users returns the ids of every user with at least one live session.
func (h *Hub) Users() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.users))
	for id := range h.users {
		out = append(out, id)
	}
	return out
}

// Subscribe adds a session to a game's broadcast set. Unknown sessions are
// ignored; a stale id must not resurrect state.
func (h *Hub) Subscribe(gameID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[sessionID]; !ok {
		return
	}
	if h.watchers[gameID] == nil {
		h.watchers[gameID] = make(map[string]bool)
	}
	h.watchers[gameID][sessionID] = true
	if h.watched[sessionID] == nil {
		h.watched[sessionID] = make(map[string]bool)
	}
	h.watched[sessionID][gameID] = true
}

// Unsubscribe removes a session from a game's broadcast set.
func (h *Hub) Unsubscribe(gameID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.watchers[gameID]; set != nil {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(h.watchers, gameID)
		}
	}
	if set := h.watched[sessionID]; set != nil {
		delete(set, gameID)
		if len(set) == 0 {
			delete(h.watched, sessionID)
		}
	}
}

// DropGame clears a finished game's subscription set.
func (h *Hub) DropGame(gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sid := range h.watchers[gameID] {
		if set := h.watched[sid]; set != nil {
			delete(set, gameID)
			if len(set) == 0 {
				delete(h.watched, sid)
			}
		}
	}
	delete(h.watchers, gameID)
}

// subscribers snapshots the sessions watching a game.
func (h *Hub) subscribers(gameID string) []Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Session
	for sid := range h.watchers[gameID] {
		if s := h.sessions[sid]; s != nil {
			out = append(out, s)
		}
	}
	return out
}

// SendToSession delivers one message to one session. Unknown ids report an
// error so callers can fall back to the user's other sessions.
func (h *Hub) SendToSession(sessionID string, data []byte) error {
	h.mu.RLock()
	s := h.sessions[sessionID]
	h.mu.RUnlock()
	if s == nil {
		return ErrSessionNotFound
	}
	return s.Send(data)
}

// SendToUser delivers one message to every session of a user and reports how
// many deliveries succeeded. Send failures are logged; the failed connection
// is cleaned up by its own read loop.
func (h *Hub) SendToUser(userID string, data []byte) int {
	delivered := 0
	for _, s := range h.SessionsOf(userID) {
		if err := s.Send(data); err != nil {
			log.Warningf("send to user %s session %s: %v", userID, s.ID(), err)
			continue
		}
		delivered++
	}
	return delivered
}

// BroadcastToGame delivers one message to every session subscribed to a game.
func (h *Hub) BroadcastToGame(gameID string, data []byte) {
	for _, s := range h.subscribers(gameID) {
		if err := s.Send(data); err != nil {
			log.Warningf("broadcast game %s session %s: %v", gameID, s.ID(), err)
		}
	}
}
