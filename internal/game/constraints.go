package game

import (
	"errors"
	"fmt"
)

// Category partitions piece kinds for custom-board replacement rules.
type Category uint8

const (
	// CategoryPawn covers pawn, twistedPawn and pawnGeneral.
	CategoryPawn Category = iota
	// CategoryMinorMajor covers every non-pawn, non-king kind.
	CategoryMinorMajor
	// CategoryKing covers the king alone.
	CategoryKing
)

// Category returns the replacement category of the kind.
func (k Kind) Category() Category {
	switch k {
	case Pawn, TwistedPawn, PawnGeneral:
		return CategoryPawn
	case King:
		return CategoryKing
	default:
		return CategoryMinorMajor
	}
}

// CanReplace reports whether a custom setup may substitute repl for orig.
// Substitution is only legal within a category: pawn-likes for pawn-likes,
// minor/major pieces for each other, kings never swapped out.
func CanReplace(orig, repl Kind) bool {
	if !orig.Valid() || !repl.Valid() {
		return false
	}
	return orig.Category() == repl.Category()
}

// Layout is a custom board description: an 8x8 grid of optional piece kinds.
// Row 0 is the black home row, row 7 the white home row.
type Layout [][]*Kind

var errLayoutDimensions = errors.New("layout must be an 8x8 grid")

// ValidateLayout checks a custom layout: the grid must be 8x8, every entry a
// recognised kind, and any king must sit on its home row at column 4.
func ValidateLayout(layout Layout) error {
	if len(layout) != BoardSize {
		return errLayoutDimensions
	}
	for r, row := range layout {
		if len(row) != BoardSize {
			return errLayoutDimensions
		}
		for c, k := range row {
			if k == nil {
				continue
			}
			if !k.Valid() {
				return fmt.Errorf("unrecognised piece kind %q at (%d,%d)", *k, r, c)
			}
			if *k == King && !((r == 0 || r == BoardSize-1) && c == 4) {
				return fmt.Errorf("king at (%d,%d) must be on row 0 or %d at column 4", r, c, BoardSize-1)
			}
		}
	}
	return nil
}

// StandardLayout returns the standard initial setup as a Layout, the template
// against which replacements are judged.
func StandardLayout() Layout {
	layout := make(Layout, BoardSize)
	for r := range layout {
		layout[r] = make([]*Kind, BoardSize)
	}
	for c := 0; c < BoardSize; c++ {
		k := backRank[c]
		p := Pawn
		layout[0][c] = kindPtr(k)
		layout[1][c] = kindPtr(p)
		layout[6][c] = kindPtr(p)
		layout[7][c] = kindPtr(k)
	}
	return layout
}

func kindPtr(k Kind) *Kind {
	cp := k
	return &cp
}
