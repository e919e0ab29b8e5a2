package server

import "errors"

// Resource errors surfaced to the originating request. State, in memory and
// persisted, is unchanged when one of these comes back.
var (
	ErrGameNotFound   = errors.New("game not found")
	ErrGameNotActive  = errors.New("game is not active")
	ErrGameNotWaiting = errors.New("game is not waiting")
	ErrNotInGame      = errors.New("player not in game")
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrJoinOwnRoom    = errors.New("cannot join your own room")
	ErrAlreadyQueued  = errors.New("already in matchmaking queue")
	ErrCodeExhausted  = errors.New("failed to generate unique room code")

	// ErrSessionNotFound reports a dead or never-registered session handle.
	ErrSessionNotFound = errors.New("session not found")
)
