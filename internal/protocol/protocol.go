// Package protocol defines the message contract of the real-time channel:
// the envelope framing and the payload of every inbound and outbound event.
// Transports decode inbound envelopes and hand the raw payload to the server;
// the server encodes outbound events through Encode. Coordinates are board
// indices 0..7.
package protocol

import (
	"encoding/json"

	"github.com/tTong32/Real-Time-Chess-sub000/internal/game"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event names.
const (
	EventCreateRoom          = "createRoom"
	EventJoinRoom            = "joinRoom"
	EventStartGame           = "startGame"
	EventMakeMove            = "makeMove"
	EventRequestMatchmaking  = "requestMatchmaking"
	EventCancelMatchmaking   = "cancelMatchmaking"
	EventMatchmakingStatusIn = "getMatchmakingStatus"
	EventSpectateGame        = "spectateGame"
	EventLeaveGame           = "leaveGame"
	EventRequestGameState    = "requestGameState"
)

// Outbound event names.
const (
	EventRoomCreated          = "roomCreated"
	EventRoomJoined           = "roomJoined"
	EventRoomError            = "roomError"
	EventPlayerJoined         = "playerJoined"
	EventGameWaiting          = "gameWaiting"
	EventGameStarted          = "gameStarted"
	EventGameStateUpdate      = "gameStateUpdate"
	EventMoveAccepted         = "moveAccepted"
	EventMoveRejected         = "moveRejected"
	EventMatchFound           = "matchFound"
	EventMatchmakingStarted   = "matchmakingStarted"
	EventMatchmakingCancelled = "matchmakingCancelled"
	EventMatchmakingStatus    = "matchmakingStatus"
	EventMatchmakingError     = "matchmakingError"
	EventGameEnded            = "gameEnded"
	EventGameError            = "gameError"
	EventSpectatingStarted    = "spectatingStarted"
	EventSpectateError        = "spectateError"
)

// Inbound payloads.

// JoinRoomRequest asks to join a friend's room by its short code.
type JoinRoomRequest struct {
	RoomCode string `json:"roomCode"`
}

// GameRequest carries a bare game identifier; used by startGame,
// spectateGame, leaveGame and requestGameState.
type GameRequest struct {
	GameID string `json:"gameId"`
}

// MakeMoveRequest is one move attempt. The acting player is the
// authenticated user of the session; it is not part of the payload.
type MakeMoveRequest struct {
	GameID  string `json:"gameId"`
	FromRow int    `json:"fromRow"`
	FromCol int    `json:"fromCol"`
	ToRow   int    `json:"toRow"`
	ToCol   int    `json:"toCol"`
}

// Outbound payloads.

// RoomCreated reports the short code of a freshly created room.
type RoomCreated struct {
	RoomCode string `json:"roomCode"`
}

// RoomJoined confirms a successful join to the joiner.
type RoomJoined struct {
	GameID   string `json:"gameId"`
	RoomCode string `json:"roomCode"`
}

// ErrorMessage is the payload of every *Error event.
type ErrorMessage struct {
	Error string `json:"error"`
}

// PlayerJoined tells a room's occupants that a second player arrived.
type PlayerJoined struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId"`
}

// GameWaiting reports a game sitting in the waiting state.
type GameWaiting struct {
	GameID string `json:"gameId"`
}

// GameStarted carries the full initial state when a game goes live.
type GameStarted struct {
	GameID string          `json:"gameId"`
	State  *game.GameState `json:"state"`
}

// GameStateUpdate is the batched (or explicitly requested) state snapshot.
type GameStateUpdate struct {
	State *game.GameState `json:"state"`
}

// MoveAccepted echoes the executed move back to the mover.
type MoveAccepted struct {
	Move game.Move `json:"move"`
}

// MoveRejected reports why a move attempt was refused.
type MoveRejected struct {
	Reason string `json:"reason"`
}

// MatchFound tells a queued player their rated game exists. Color is the
// side the recipient plays; Opponent is the other player's identifier.
type MatchFound struct {
	GameID   string `json:"gameId"`
	Color    string `json:"color"`
	Opponent string `json:"opponent"`
}

// MatchmakingStarted confirms an enqueue and reports the queue size.
type MatchmakingStarted struct {
	QueueSize int `json:"queueSize"`
}

// QueueInfo describes one player's place in the matchmaking queue.
type QueueInfo struct {
	Rating int `json:"rating"`
	// WaitedMs is how long the player has been queued.
	WaitedMs int64 `json:"waitedMs"`
	// RatingWindow is the current effective rating window, which widens the
	// longer the player waits.
	RatingWindow int `json:"ratingWindow"`
}

// MatchmakingStatus answers a getMatchmakingStatus query.
type MatchmakingStatus struct {
	InQueue   bool       `json:"inQueue"`
	QueueInfo *QueueInfo `json:"queueInfo,omitempty"`
	QueueSize int        `json:"queueSize"`
}

// GameEnded announces the result; Winner is the winning color.
type GameEnded struct {
	GameID string          `json:"gameId"`
	Winner string          `json:"winner"`
	State  *game.GameState `json:"state"`
}

// SpectatingStarted confirms a spectate subscription.
type SpectatingStarted struct {
	GameID string `json:"gameId"`
}

// Encode marshals an event into its wire form.
func Encode(eventType string, payload any) ([]byte, error) {
	env := Envelope{Type: eventType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = data
	}
	return json.Marshal(env)
}

// Error encodes one of the *Error events with a plain error string.
func Error(eventType, message string) []byte {
	data, _ := Encode(eventType, ErrorMessage{Error: message})
	return data
}
