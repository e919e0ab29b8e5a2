package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

// BoardSize is the side length of the square board.
const BoardSize = 8

// Board is an 8x8 grid of optional pieces. The zero value is not usable;
// construct with NewBoard or NewBoardFromLayout. Board methods keep every
// stored piece's Row/Col in sync with its cell.
type Board struct {
	cells [BoardSize][BoardSize]*Piece
}

// ErrEmptySource is returned by MovePiece when the source cell holds no piece.
var ErrEmptySource = errors.New("source cell is empty")

// backRank is the standard arrangement of the home row, king on column 4.
var backRank = [BoardSize]Kind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// NewBoard returns a board in the standard initial setup: black on rows 0-1,
// white on rows 6-7. Piece identifiers are deterministic so that snapshots
// taken before and after a persistence round trip name the same pieces.
func NewBoard() *Board {
	b := &Board{}
	seq := map[string]int{}
	place := func(r, c int, kind Kind, color Color) {
		key := color.String() + string(kind)
		n := seq[key]
		seq[key] = n + 1
		b.cells[r][c] = &Piece{
			ID:                fmt.Sprintf("%s-%s-%d", color, kind, n),
			Kind:              kind,
			Color:             color,
			Row:               r,
			Col:               c,
			CanPreventCapture: kind == Prince,
		}
	}
	for c := 0; c < BoardSize; c++ {
		place(0, c, backRank[c], Black)
		place(1, c, Pawn, Black)
		place(6, c, Pawn, White)
		place(7, c, backRank[c], White)
	}
	return b
}

// NewBoardFromLayout builds a board from a custom layout. The layout is
// validated first; cells on the top half of the board (rows 0-3) become black
// pieces, the bottom half white.
func NewBoardFromLayout(layout Layout) (*Board, error) {
	if err := ValidateLayout(layout); err != nil {
		return nil, err
	}
	b := &Board{}
	seq := map[string]int{}
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			k := layout[r][c]
			if k == nil {
				continue
			}
			color := White
			if r < BoardSize/2 {
				color = Black
			}
			key := color.String() + string(*k)
			n := seq[key]
			seq[key] = n + 1
			b.cells[r][c] = &Piece{
				ID:                fmt.Sprintf("%s-%s-%d", color, *k, n),
				Kind:              *k,
				Color:             color,
				Row:               r,
				Col:               c,
				CanPreventCapture: *k == Prince,
			}
		}
	}
	return b, nil
}

// InBounds reports whether (r,c) lies on the board.
func InBounds(r, c int) bool {
	return r >= 0 && r < BoardSize && c >= 0 && c < BoardSize
}

// At returns the piece at (r,c), or nil when the cell is empty or the
// coordinates are off the board.
func (b *Board) At(r, c int) *Piece {
	if !InBounds(r, c) {
		return nil
	}
	return b.cells[r][c]
}

// Set places p at (r,c), overwriting any occupant. The stored piece's Row and
// Col are rewritten to (r,c). A nil p clears the cell. Off-board coordinates
// are ignored.
func (b *Board) Set(r, c int, p *Piece) {
	if !InBounds(r, c) {
		return
	}
	if p != nil {
		p.Row = r
		p.Col = c
	}
	b.cells[r][c] = p
}

// IsEmpty reports whether (r,c) holds no piece. Off-board cells read as empty.
func (b *Board) IsEmpty(r, c int) bool {
	return b.At(r, c) == nil
}

// FindByID returns the piece with the given identifier, or nil.
func (b *Board) FindByID(id string) *Piece {
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if p := b.cells[r][c]; p != nil && p.ID == id {
				return p
			}
		}
	}
	return nil
}

// FindByColor returns all pieces of the given color in row-major order.
func (b *Board) FindByColor(color Color) []*Piece {
	var out []*Piece
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if p := b.cells[r][c]; p != nil && p.Color == color {
				out = append(out, p)
			}
		}
	}
	return out
}

// FindKing returns the king of the given color, or nil if it has been
// captured.
func (b *Board) FindKing(color Color) *Piece {
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if p := b.cells[r][c]; p != nil && p.Color == color && p.Kind == King {
				return p
			}
		}
	}
	return nil
}

// MovePiece moves the piece at the source cell to the destination cell,
// overwriting any occupant, and marks it as having moved. It fails when the
// source is empty or either coordinate is off the board.
func (b *Board) MovePiece(fromR, fromC, toR, toC int) error {
	if !InBounds(fromR, fromC) || !InBounds(toR, toC) {
		return fmt.Errorf("move (%d,%d)->(%d,%d) out of bounds", fromR, fromC, toR, toC)
	}
	p := b.cells[fromR][fromC]
	if p == nil {
		return ErrEmptySource
	}
	b.cells[fromR][fromC] = nil
	p.HasMoved = true
	b.Set(toR, toC, p)
	return nil
}

// ConsumePrinceShield clears the one-shot shield of the prince at (r,c).
// It reports whether a shield was consumed. Mutating the flag through the
// board keeps the effect visible to every holder of this board.
func (b *Board) ConsumePrinceShield(r, c int) bool {
	p := b.At(r, c)
	if p == nil || p.Kind != Prince || !p.CanPreventCapture {
		return false
	}
	p.CanPreventCapture = false
	return true
}

// Clone returns a deep copy sharing no pieces with the original.
func (b *Board) Clone() *Board {
	cp := &Board{}
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			cp.cells[r][c] = b.cells[r][c].Clone()
		}
	}
	return cp
}

// CheckIntegrity verifies that every stored piece records its own cell and
// that identifiers are unique. A non-nil result indicates a programming bug;
// callers should abort the affected game.
func (b *Board) CheckIntegrity() error {
	seen := map[string]bool{}
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			p := b.cells[r][c]
			if p == nil {
				continue
			}
			if p.Row != r || p.Col != c {
				return fmt.Errorf("piece %s records (%d,%d) but occupies (%d,%d)", p.ID, p.Row, p.Col, r, c)
			}
			if seen[p.ID] {
				return fmt.Errorf("duplicate piece identifier %s", p.ID)
			}
			seen[p.ID] = true
		}
	}
	return nil
}

// MarshalJSON encodes the board as an 8x8 array of nullable pieces.
func (b *Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.cells)
}

// UnmarshalJSON decodes the 8x8 array produced by MarshalJSON.
func (b *Board) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &b.cells)
}
