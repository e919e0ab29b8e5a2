package game

// Status is the lifecycle state of a game.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusFinished  Status = "finished"
	StatusAbandoned Status = "abandoned"
)

// PlayerState carries one player's continuously-regenerating energy and the
// cooldown deadlines of their pieces. Energy is only materialised at explicit
// points (moves and ticks); between those, the effective value is computed
// from LastEnergyUpdate and the regen rate.
type PlayerState struct {
	Energy          float64 `json:"energy"`
	EnergyRegenRate float64 `json:"energyRegenRate"`
	// LastEnergyUpdate is the wall-clock millisecond timestamp at which
	// Energy was last materialised.
	LastEnergyUpdate int64 `json:"lastEnergyUpdate"`
	// PieceCooldowns maps piece identifiers to absolute millisecond
	// deadlines. Serialises as a plain JSON object so snapshots survive any
	// store.
	PieceCooldowns map[string]int64 `json:"pieceCooldowns"`
}

// NewPlayerState returns the state a player starts a game with.
func NewPlayerState(now int64) *PlayerState {
	return &PlayerState{
		Energy:           InitialEnergy,
		EnergyRegenRate:  InitialRegenRate,
		LastEnergyUpdate: now,
		PieceCooldowns:   make(map[string]int64),
	}
}

// Clone returns an independent copy.
func (ps *PlayerState) Clone() *PlayerState {
	cp := *ps
	cp.PieceCooldowns = make(map[string]int64, len(ps.PieceCooldowns))
	for id, deadline := range ps.PieceCooldowns {
		cp.PieceCooldowns[id] = deadline
	}
	return &cp
}

// Move is one player's attempt to move a piece between two cells.
type Move struct {
	PlayerID string `json:"playerId"`
	FromRow  int    `json:"fromRow"`
	FromCol  int    `json:"fromCol"`
	ToRow    int    `json:"toRow"`
	ToCol    int    `json:"toCol"`
}

// GameState is the complete state of one game. It is owned by exactly one
// engine at a time; concurrent access is the owner's responsibility.
type GameState struct {
	ID      string       `json:"id"`
	Board   *Board       `json:"board"`
	White   *PlayerState `json:"white"`
	Black   *PlayerState `json:"black"`
	WhiteID string       `json:"whiteId"`
	BlackID string       `json:"blackId"`
	Status  Status       `json:"status"`
	Winner  *Color       `json:"winner,omitempty"`
	// StartedAt and LastMoveAt are millisecond timestamps; zero means unset.
	StartedAt  int64 `json:"startedAt,omitempty"`
	LastMoveAt int64 `json:"lastMoveAt,omitempty"`
	Rated      bool  `json:"rated"`
}

// NewGameState creates a waiting game on a standard board with fresh player
// states.
func NewGameState(id, whiteID, blackID string, rated bool, now int64) *GameState {
	return &GameState{
		ID:      id,
		Board:   NewBoard(),
		White:   NewPlayerState(now),
		Black:   NewPlayerState(now),
		WhiteID: whiteID,
		BlackID: blackID,
		Status:  StatusWaiting,
		Rated:   rated,
	}
}

// PlayerState returns the state for the given color.
func (gs *GameState) PlayerState(color Color) *PlayerState {
	if color == White {
		return gs.White
	}
	return gs.Black
}

// ColorOf maps a player identifier to their color. The second result is
// false for players not in this game.
func (gs *GameState) ColorOf(playerID string) (Color, bool) {
	switch playerID {
	case gs.WhiteID:
		return White, true
	case gs.BlackID:
		return Black, true
	default:
		return White, false
	}
}

// PlayerID returns the identifier of the player holding the given color.
func (gs *GameState) PlayerID(color Color) string {
	if color == White {
		return gs.WhiteID
	}
	return gs.BlackID
}

// Clone returns a deep copy of the game state.
func (gs *GameState) Clone() *GameState {
	cp := *gs
	cp.Board = gs.Board.Clone()
	cp.White = gs.White.Clone()
	cp.Black = gs.Black.Clone()
	if gs.Winner != nil {
		w := *gs.Winner
		cp.Winner = &w
	}
	return &cp
}
