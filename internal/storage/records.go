package storage

import (
	"github.com/tTong32/Real-Time-Chess-sub000/internal/game"
)

// GameRecord is the persisted form of one game. Board and player-state
// snapshots marshal through their own JSON shapes, so a record survives a
// round trip bit-compatible with the in-memory state.
type GameRecord struct {
	ID         string            `json:"id"`
	WhiteID    string            `json:"whiteId"`
	BlackID    string            `json:"blackId"`
	Status     game.Status       `json:"status"`
	Rated      bool              `json:"isRated"`
	RoomCode   string            `json:"roomCode,omitempty"`
	WinnerID   string            `json:"winnerId,omitempty"`
	Board      *game.Board       `json:"board"`
	White      *game.PlayerState `json:"whiteState"`
	Black      *game.PlayerState `json:"blackState"`
	CreatedAt  int64             `json:"createdAt"`
	StartedAt  int64             `json:"startedAt,omitempty"`
	LastMoveAt int64             `json:"lastMoveAt,omitempty"`
	EndedAt    int64             `json:"endedAt,omitempty"`
}

// NewGameRecord snapshots a game state for persistence.
func NewGameRecord(gs *game.GameState, roomCode string, now int64) *GameRecord {
	rec := &GameRecord{
		ID:         gs.ID,
		WhiteID:    gs.WhiteID,
		BlackID:    gs.BlackID,
		Status:     gs.Status,
		Rated:      gs.Rated,
		RoomCode:   roomCode,
		Board:      gs.Board.Clone(),
		White:      gs.White.Clone(),
		Black:      gs.Black.Clone(),
		CreatedAt:  now,
		StartedAt:  gs.StartedAt,
		LastMoveAt: gs.LastMoveAt,
	}
	if gs.Winner != nil {
		rec.WinnerID = gs.PlayerID(*gs.Winner)
	}
	return rec
}

// Sync refreshes the record's mutable snapshot fields from a live state.
func (r *GameRecord) Sync(gs *game.GameState) {
	r.Status = gs.Status
	r.Board = gs.Board.Clone()
	r.White = gs.White.Clone()
	r.Black = gs.Black.Clone()
	r.StartedAt = gs.StartedAt
	r.LastMoveAt = gs.LastMoveAt
	if gs.Winner != nil {
		r.WinnerID = gs.PlayerID(*gs.Winner)
	}
}

// State rebuilds the in-memory game state from the record. The returned
// state owns fresh copies of the snapshots.
func (r *GameRecord) State() *game.GameState {
	gs := &game.GameState{
		ID:         r.ID,
		Board:      r.Board.Clone(),
		White:      r.White.Clone(),
		Black:      r.Black.Clone(),
		WhiteID:    r.WhiteID,
		BlackID:    r.BlackID,
		Status:     r.Status,
		StartedAt:  r.StartedAt,
		LastMoveAt: r.LastMoveAt,
		Rated:      r.Rated,
	}
	switch r.WinnerID {
	case "":
	case r.WhiteID:
		w := game.White
		gs.Winner = &w
	case r.BlackID:
		w := game.Black
		gs.Winner = &w
	}
	return gs
}

// InitialRating is every user's rating before their first rated game.
const InitialRating = 1000

// UserRecord carries the rating and tallies the server keeps per user.
// Identity and credentials live elsewhere.
type UserRecord struct {
	ID          string `json:"id"`
	Rating      int    `json:"rating"`
	GamesPlayed int    `json:"gamesPlayed"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	CreatedAt   int64  `json:"createdAt"`
}

// CustomBoardRecord is a user-saved board layout. Layouts are validated
// against the replacement rules before they are written.
type CustomBoardRecord struct {
	UserID    string      `json:"userId"`
	Name      string      `json:"name"`
	Layout    game.Layout `json:"layout"`
	CreatedAt int64       `json:"createdAt"`
	UpdatedAt int64       `json:"updatedAt"`
}

// FriendRecord stores one friendship, keyed canonically so each pair is
// stored exactly once.
type FriendRecord struct {
	UserA     string `json:"userA"`
	UserB     string `json:"userB"`
	CreatedAt int64  `json:"createdAt"`
}
