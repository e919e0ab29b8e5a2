package server

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/tTong32/Real-Time-Chess-sub000/internal/storage"
)

// Rating window defaults. A player's window starts at matchDefaultRange and
// widens by matchExpansionRate every matchExpansionInterval of waiting, up
// to matchMaxRange.
const (
	matchDefaultRange      = 200
	matchMaxRange          = 500
	matchExpansionRate     = 50
	matchExpansionInterval = 30 * time.Second
)

// QueueEntry is one user waiting for a rated opponent.
type QueueEntry struct {
	UserID    string `json:"userId"`
	Rating    int    `json:"rating"`
	JoinedAt  int64  `json:"joinedAt"`
	SessionID string `json:"sessionId"`
}

// Match pairs two queue entries with the rated game created for them.
type Match struct {
	GameID string
	White  QueueEntry
	Black  QueueEntry
}

// MatchHandler is notified after a match's game has been persisted. Both
// entries have already left the queue by the time it runs.
type MatchHandler func(Match)

// QueueStatus describes one user's standing in the queue.
type QueueStatus struct {
	InQueue      bool
	Rating       int
	WaitedMs     int64
	RatingWindow int
	QueueSize    int
}

// MatchmakingManager pairs queued players by rating proximity, widening
// each player's acceptable window the longer they wait.
type MatchmakingManager struct {
	store *storage.Store
	games *GameManager

	interval time.Duration
	now      func() int64

	mu       sync.Mutex
	queue    map[string]*QueueEntry
	handlers []MatchHandler
}

// NewMatchmakingManager wires the queue to its store and game manager.
func NewMatchmakingManager(store *storage.Store, games *GameManager, interval time.Duration) *MatchmakingManager {
	return &MatchmakingManager{
		store:    store,
		games:    games,
		interval: interval,
		now:      func() int64 { return time.Now().UnixMilli() },
		queue:    make(map[string]*QueueEntry),
	}
}

// OnMatchFound registers a handler invoked once per match, after the game
// exists and both players have left the queue. A panicking handler does not
// stop the remaining handlers.
func (mm *MatchmakingManager) OnMatchFound(h MatchHandler) {
	mm.mu.Lock()
	mm.handlers = append(mm.handlers, h)
	mm.mu.Unlock()
}

// Enqueue adds a user to the queue and immediately tries to pair them.
// Returns the queue size after the attempt and, when the new entry paired
// right away, the match for the caller to hand to Dispatch once its own
// acknowledgement is on the wire. Handlers are never run from here.
func (mm *MatchmakingManager) Enqueue(userID, sessionID string) (int, *Match, error) {
	user, err := mm.store.GetUser(userID)
	if err != nil {
		return 0, nil, err
	}
	now := mm.now()

	mm.mu.Lock()
	if _, queued := mm.queue[userID]; queued {
		mm.mu.Unlock()
		return 0, nil, ErrAlreadyQueued
	}
	entry := &QueueEntry{
		UserID:    userID,
		Rating:    user.Rating,
		JoinedAt:  now,
		SessionID: sessionID,
	}
	mm.queue[userID] = entry
	match := mm.pairLocked(entry, now)
	size := len(mm.queue)
	mm.mu.Unlock()

	log.Infof("matchmaking: %s queued (rating %d, queue size %d)", userID, user.Rating, size)
	return size, match, nil
}

// Dequeue removes a user from the queue. Reports whether they were queued.
func (mm *MatchmakingManager) Dequeue(userID string) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if _, ok := mm.queue[userID]; !ok {
		return false
	}
	delete(mm.queue, userID)
	return true
}

// DequeueSession drops every queue entry tied to a closed session.
func (mm *MatchmakingManager) DequeueSession(sessionID string) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for id, entry := range mm.queue {
		if entry.SessionID == sessionID {
			delete(mm.queue, id)
		}
	}
}

// Status reports a user's queue standing and the current queue size.
func (mm *MatchmakingManager) Status(userID string) QueueStatus {
	now := mm.now()
	mm.mu.Lock()
	defer mm.mu.Unlock()

	st := QueueStatus{QueueSize: len(mm.queue)}
	entry, ok := mm.queue[userID]
	if !ok {
		return st
	}
	st.InQueue = true
	st.Rating = entry.Rating
	st.WaitedMs = now - entry.JoinedAt
	st.RatingWindow = window(entry, now)
	return st
}

// Size returns the number of queued users.
func (mm *MatchmakingManager) Size() int {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return len(mm.queue)
}

// window is the rating distance entry will currently accept.
func window(entry *QueueEntry, now int64) int {
	steps := (now - entry.JoinedAt) / matchExpansionInterval.Milliseconds()
	w := matchDefaultRange + matchExpansionRate*int(steps)
	if w > matchMaxRange {
		w = matchMaxRange
	}
	return w
}

// pairLocked tries to find an opponent for entry and, on success, creates
// the rated game and removes both players from the queue. Called with the
// queue lock held. Returns nil when no opponent is close enough.
func (mm *MatchmakingManager) pairLocked(entry *QueueEntry, now int64) *Match {
	limit := window(entry, now)

	var best *QueueEntry
	bestDiff := 0
	for _, other := range mm.queue {
		if other.UserID == entry.UserID {
			continue
		}
		diff := entry.Rating - other.Rating
		if diff < 0 {
			diff = -diff
		}
		if diff > limit {
			continue
		}
		if best == nil || diff < bestDiff || (diff == bestDiff && other.JoinedAt < best.JoinedAt) {
			best = other
			bestDiff = diff
		}
	}
	if best == nil {
		return nil
	}

	white, black := entry, best
	if rand.Intn(2) == 0 {
		white, black = best, entry
	}
	gameID, err := mm.games.CreateGame(white.UserID, black.UserID, true, "")
	if err != nil {
		log.Errorf("matchmaking: create game for %s vs %s: %v", white.UserID, black.UserID, err)
		return nil
	}

	// Both leave the queue before any handler sees the match, so a
	// concurrent pass cannot pair either of them again.
	delete(mm.queue, entry.UserID)
	delete(mm.queue, best.UserID)

	log.Infof("matchmaking: matched %s (%d) with %s (%d), game %s",
		white.UserID, white.Rating, black.UserID, black.Rating, gameID)
	return &Match{GameID: gameID, White: *white, Black: *black}
}

// matchAll runs one pairing pass over the whole queue, longest-waiting
// players first, and dispatches any matches found.
func (mm *MatchmakingManager) matchAll(now int64) {
	mm.mu.Lock()
	entries := make([]*QueueEntry, 0, len(mm.queue))
	for _, entry := range mm.queue {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].JoinedAt < entries[j].JoinedAt })

	var matches []Match
	for _, entry := range entries {
		if _, still := mm.queue[entry.UserID]; !still {
			continue
		}
		if m := mm.pairLocked(entry, now); m != nil {
			matches = append(matches, *m)
		}
	}
	mm.mu.Unlock()

	for _, m := range matches {
		mm.Dispatch(m)
	}
}

// Dispatch runs every registered handler for one match. Handlers run outside
// the queue lock; a panic in one is logged and does not reach the others.
func (mm *MatchmakingManager) Dispatch(m Match) {
	mm.mu.Lock()
	handlers := make([]MatchHandler, len(mm.handlers))
	copy(handlers, mm.handlers)
	mm.mu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("matchmaking: match handler panic for game %s: %v", m.GameID, r)
				}
			}()
			h(m)
		}()
	}
}

// Run drives the periodic pairing pass until the context is cancelled.
func (mm *MatchmakingManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(mm.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			mm.matchAll(mm.now())
		}
	}
}
