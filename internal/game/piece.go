// Package game implements the real-time chess core: the board model, move
// validation, per-piece cooldowns, per-player energy, and the engine that
// composes them for a single game. All time arguments are wall-clock
// milliseconds supplied by the caller; nothing in this package reads the
// system clock.
package game

import (
	"encoding/json"
	"fmt"
)

// Color represents the color of a piece or player.
type Color uint8

const (
	White Color = iota
	Black
)

// Other returns the opposite color.
func (c Color) Other() Color {
	return c ^ 1
}

// String returns the color name as used on the wire.
func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// MarshalJSON encodes the color as "white" or "black".
func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes "white" or "black".
func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "white":
		*c = White
	case "black":
		*c = Black
	default:
		return fmt.Errorf("unknown color %q", s)
	}
	return nil
}

// Kind identifies a piece type. The set includes the six classical kinds and
// the five variant kinds.
type Kind string

const (
	Pawn         Kind = "pawn"
	Knight       Kind = "knight"
	Bishop       Kind = "bishop"
	Rook         Kind = "rook"
	Queen        Kind = "queen"
	King         Kind = "king"
	TwistedPawn  Kind = "twistedPawn"
	PawnGeneral  Kind = "pawnGeneral"
	FlyingCastle Kind = "flyingCastle"
	Prince       Kind = "prince"
	IceBishop    Kind = "iceBishop"
)

// Kinds lists every recognised piece kind.
var Kinds = []Kind{
	Pawn, Knight, Bishop, Rook, Queen, King,
	TwistedPawn, PawnGeneral, FlyingCastle, Prince, IceBishop,
}

// kindTable holds the per-kind gameplay constants. Variant kinds mirror
// their classical analogue: twistedPawn=pawn, pawnGeneral=knight (cost and
// cooldown; it still scores like a pawn), prince=knight, flyingCastle=rook,
// iceBishop=bishop.
var kindTable = map[Kind]struct {
	cooldownSec int64
	energyCost  float64
	points      int
}{
	Pawn:         {4, 2, 1},
	Knight:       {5, 3, 3},
	Bishop:       {6, 3, 3},
	Rook:         {7, 5, 5},
	Queen:        {9, 6, 9},
	King:         {11, 4, 0},
	TwistedPawn:  {4, 2, 1},
	PawnGeneral:  {5, 3, 1},
	FlyingCastle: {7, 5, 5},
	Prince:       {5, 3, 3},
	IceBishop:    {6, 3, 3},
}

// Valid reports whether k is a recognised piece kind.
func (k Kind) Valid() bool {
	_, ok := kindTable[k]
	return ok
}

// BaseCooldown returns the post-move cooldown for the kind in milliseconds.
func (k Kind) BaseCooldown() int64 {
	return kindTable[k].cooldownSec * 1000
}

// EnergyCost returns the energy consumed by moving a piece of this kind.
func (k Kind) EnergyCost() float64 {
	return kindTable[k].energyCost
}

// Points returns the material value used for simultaneous-king-capture
// tie-breaking. Kings score zero.
func (k Kind) Points() int {
	return kindTable[k].points
}

// Piece is a single piece on the board. Row and Col always mirror the cell
// the piece occupies; the Board maintains that invariant on every mutation.
type Piece struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	Color    Color  `json:"color"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	HasMoved bool   `json:"hasMoved"`
	// CanPreventCapture is the prince's one-shot shield. It is always false
	// for other kinds.
	CanPreventCapture bool `json:"canPreventCapture,omitempty"`
}

// Clone returns an independent copy of the piece.
func (p *Piece) Clone() *Piece {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// String returns a short description for logs and test output.
func (p *Piece) String() string {
	if p == nil {
		return "<empty>"
	}
	return fmt.Sprintf("%s %s at (%d,%d)", p.Color, p.Kind, p.Row, p.Col)
}
