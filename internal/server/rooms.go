package server

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/tTong32/Real-Time-Chess-sub000/internal/game"
	"github.com/tTong32/Real-Time-Chess-sub000/internal/storage"
)

// Room codes are drawn uniformly from the full uppercase-alphanumeric set.
const (
	roomCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	roomCodeLength   = 6
	roomCodeRetries  = 100

	// Largest multiple of the alphabet size a byte can hold. Draws at or
	// above it are redrawn so the modulo map stays uniform.
	roomCodeByteLimit = byte(256 - 256%len(roomCodeAlphabet))
)

// RoomInfo is the in-memory registration of one friend room.
type RoomInfo struct {
	Code        string `json:"code"`
	HostID      string `json:"hostId"`
	GameID      string `json:"gameId"`
	PlayerCount int    `json:"playerCount"`
	CreatedAt   int64  `json:"createdAt"`
}

// RoomManager runs short-code friend rooms: code generation, join
// arbitration, host departure and the TTL expiry sweep. Rooms reference
// their games by identifier only; the game manager owns the games.
type RoomManager struct {
	store *storage.Store
	games *GameManager

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() int64
	rand          io.Reader

	mu    sync.Mutex
	rooms map[string]*RoomInfo
}

// NewRoomManager wires the room registry to its store and game manager.
func NewRoomManager(store *storage.Store, games *GameManager, ttl, sweepInterval time.Duration) *RoomManager {
	return &RoomManager{
		store:         store,
		games:         games,
		ttl:           ttl,
		sweepInterval: sweepInterval,
		now:           func() int64 { return time.Now().UnixMilli() },
		rand:          rand.Reader,
		rooms:         make(map[string]*RoomInfo),
	}
}

// generateCode draws random codes until one collides with neither a live
// room nor a persisted unfinished game. Called with the registry lock held.
func (rm *RoomManager) generateCode() (string, error) {
	buf := make([]byte, 1)
	for attempt := 0; attempt < roomCodeRetries; attempt++ {
		code := make([]byte, 0, roomCodeLength)
		for len(code) < roomCodeLength {
			if _, err := io.ReadFull(rm.rand, buf); err != nil {
				return "", err
			}
			if buf[0] >= roomCodeByteLimit {
				continue
			}
			code = append(code, roomCodeAlphabet[int(buf[0])%len(roomCodeAlphabet)])
		}
		candidate := string(code)

		if _, live := rm.rooms[candidate]; live {
			continue
		}
		_, err := rm.store.GetGameByRoomCode(candidate)
		if errors.Is(err, storage.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", ErrCodeExhausted
}

// CreateRoom opens a room for the host: a fresh unrated waiting game with
// the host holding both color placeholders until someone joins. Returns a
// copy; the registry entry never leaves the lock.
func (rm *RoomManager) CreateRoom(hostID string) (RoomInfo, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	code, err := rm.generateCode()
	if err != nil {
		return RoomInfo{}, err
	}
	gameID, err := rm.games.CreateGame(hostID, hostID, false, code)
	if err != nil {
		return RoomInfo{}, err
	}
	room := &RoomInfo{
		Code:        code,
		HostID:      hostID,
		GameID:      gameID,
		PlayerCount: 1,
		CreatedAt:   rm.now(),
	}
	rm.rooms[code] = room
	log.Infof("room %s created by %s (game %s)", code, hostID, gameID)
	return *room, nil
}

// JoinRoom admits a second player to a room. The joiner takes black; the
// host keeps white. Unknown codes are rehydrated from persistence so rooms
// survive a server restart.
func (rm *RoomManager) JoinRoom(code, userID string) (RoomInfo, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rec, err := rm.store.GetGameByRoomCode(code)
	if errors.Is(err, storage.ErrNotFound) {
		delete(rm.rooms, code)
		return RoomInfo{}, ErrRoomNotFound
	}
	if err != nil {
		return RoomInfo{}, err
	}
	if rec.Status != game.StatusWaiting {
		delete(rm.rooms, code)
		return RoomInfo{}, ErrRoomNotFound
	}

	room, ok := rm.rooms[code]
	if !ok {
		room = rm.rehydrate(code, rec)
	}
	if rec.WhiteID != rec.BlackID {
		return RoomInfo{}, ErrRoomFull
	}
	if userID == room.HostID {
		return RoomInfo{}, ErrJoinOwnRoom
	}

	rec.BlackID = userID
	if err := rm.store.UpdateGame(rec); err != nil {
		return RoomInfo{}, err
	}
	room.PlayerCount = 2
	log.Infof("room %s: %s joined host %s", code, userID, room.HostID)
	return *room, nil
}

// rehydrate rebuilds a room entry from its persisted game. Called with the
// registry lock held.
func (rm *RoomManager) rehydrate(code string, rec *storage.GameRecord) *RoomInfo {
	room := &RoomInfo{
		Code:        code,
		HostID:      rec.WhiteID,
		GameID:      rec.ID,
		PlayerCount: 2,
		CreatedAt:   rec.CreatedAt,
	}
	if rec.WhiteID == rec.BlackID {
		room.PlayerCount = 1
	}
	rm.rooms[code] = room
	return room
}

// RoomByGame finds the live room wrapping a game, if any.
func (rm *RoomManager) RoomByGame(gameID string) (RoomInfo, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for _, room := range rm.rooms {
		if room.GameID == gameID {
			return *room, true
		}
	}
	return RoomInfo{}, false
}

// CloseByHost shuts a waiting room down at its host's request, abandoning
// the underlying game. Joined guests or started games are left alone.
func (rm *RoomManager) CloseByHost(gameID, userID string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	var room *RoomInfo
	for _, r := range rm.rooms {
		if r.GameID == gameID {
			room = r
			break
		}
	}
	if room == nil {
		return ErrRoomNotFound
	}
	if room.HostID != userID {
		return ErrRoomNotFound
	}
	if err := rm.games.AbandonGame(gameID); err != nil {
		return err
	}
	delete(rm.rooms, room.Code)
	log.Infof("room %s closed by host %s", room.Code, userID)
	return nil
}

// Release drops the room entry for a game that went live; the code index is
// retained in persistence until the game finishes.
func (rm *RoomManager) Release(gameID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for code, room := range rm.rooms {
		if room.GameID == gameID {
			delete(rm.rooms, code)
			return
		}
	}
}

// sweep expires stale rooms: a single-occupant room past its TTL has its
// game abandoned; rooms whose game moved on from waiting are simply dropped.
// The whole pass holds the registry lock, so a join cannot land between the
// occupancy check and the abandon.
func (rm *RoomManager) sweep() {
	now := rm.now()

	rm.mu.Lock()
	defer rm.mu.Unlock()
	for code, room := range rm.rooms {
		rec, err := rm.store.GetGame(room.GameID)
		if errors.Is(err, storage.ErrNotFound) {
			delete(rm.rooms, code)
			continue
		}
		if err != nil {
			log.Errorf("room sweep load game %s: %v", room.GameID, err)
			continue
		}
		if rec.Status != game.StatusWaiting {
			delete(rm.rooms, code)
			continue
		}
		if room.PlayerCount == 1 && now-room.CreatedAt >= rm.ttl.Milliseconds() {
			if err := rm.games.AbandonGame(room.GameID); err != nil {
				log.Errorf("room sweep abandon game %s: %v", room.GameID, err)
				continue
			}
			delete(rm.rooms, code)
			log.Infof("room %s expired after %v", code, rm.ttl)
		}
	}
}

// Run drives the periodic expiry sweep until the context is cancelled.
func (rm *RoomManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(rm.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rm.sweep()
		}
	}
}
