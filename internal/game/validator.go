package game

// RejectReason classifies why a move attempt was refused. The values are
// wire-format strings delivered verbatim in moveRejected events.
type RejectReason string

const (
	RejectInvalidPiece       RejectReason = "InvalidPiece"
	RejectPieceOnCooldown    RejectReason = "PieceOnCooldown"
	RejectInsufficientEnergy RejectReason = "InsufficientEnergy"
	RejectIllegalMove        RejectReason = "IllegalMove"
)

// Verdict is the outcome of move validation.
type Verdict struct {
	Valid  bool
	Reason RejectReason
}

func reject(r RejectReason) Verdict { return Verdict{Reason: r} }

// ValidateMove checks a move for the given player against the board and the
// player's cooldown/energy state. Predicates run in a fixed order and the
// first failure wins: piece identity, cooldown, energy, destination
// occupancy, then per-kind geometry. Energy is read as stored; callers
// materialise regeneration beforehand.
func ValidateMove(b *Board, mv Move, playerColor Color, ps *PlayerState, now int64) Verdict {
	if !InBounds(mv.FromRow, mv.FromCol) {
		return reject(RejectInvalidPiece)
	}
	src := b.At(mv.FromRow, mv.FromCol)
	if src == nil || src.Color != playerColor {
		return reject(RejectInvalidPiece)
	}
	if !InBounds(mv.ToRow, mv.ToCol) || (mv.ToRow == mv.FromRow && mv.ToCol == mv.FromCol) {
		return reject(RejectIllegalMove)
	}
	if IsOnCooldown(ps, src.ID, now) {
		return reject(RejectPieceOnCooldown)
	}
	if ps.Energy < src.Kind.EnergyCost() {
		return reject(RejectInsufficientEnergy)
	}
	dst := b.At(mv.ToRow, mv.ToCol)
	if dst != nil && dst.Color == playerColor {
		return reject(RejectIllegalMove)
	}
	if !legalGeometry(b, src, dst, mv) {
		return reject(RejectIllegalMove)
	}
	return Verdict{Valid: true}
}

// forward is the row delta of a one-square advance for the color. White
// starts on rows 6-7 and moves toward row 0.
func forward(c Color) int {
	if c == White {
		return -1
	}
	return 1
}

// pawnStartRow is the row a color's pawns start on, from which the
// two-square push is allowed.
func pawnStartRow(c Color) int {
	if c == White {
		return 6
	}
	return 1
}

// legalGeometry dispatches on the moving piece's kind. This switch is the
// single place piece movement rules live; destination color has already been
// screened, so pawn-like cases only distinguish empty from enemy.
func legalGeometry(b *Board, src, dst *Piece, mv Move) bool {
	dr := mv.ToRow - mv.FromRow
	dc := mv.ToCol - mv.FromCol
	adr, adc := abs(dr), abs(dc)

	switch src.Kind {
	case Pawn, PawnGeneral:
		fwd := forward(src.Color)
		if dc == 0 {
			if dst != nil {
				return false
			}
			if dr == fwd {
				return true
			}
			if dr == 2*fwd && mv.FromRow == pawnStartRow(src.Color) {
				return b.IsEmpty(mv.FromRow+fwd, mv.FromCol)
			}
			return false
		}
		return adc == 1 && dr == fwd && dst != nil

	case TwistedPawn:
		// Inverted capture rules: diagonal steps only onto empty cells,
		// straight steps only onto enemies. No two-square push.
		fwd := forward(src.Color)
		if dr != fwd {
			return false
		}
		if adc == 1 {
			return dst == nil
		}
		return dc == 0 && dst != nil

	case Knight, Prince:
		return (adr == 1 && adc == 2) || (adr == 2 && adc == 1)

	case Bishop, IceBishop:
		return adr == adc && adr >= 1 && occupiedBetween(b, mv) == 0

	case Rook:
		return (dr == 0) != (dc == 0) && occupiedBetween(b, mv) == 0

	case FlyingCastle:
		// Rook lines, but may jump a single intervening piece.
		return (dr == 0) != (dc == 0) && occupiedBetween(b, mv) <= 1

	case Queen:
		if adr == adc && adr >= 1 {
			return occupiedBetween(b, mv) == 0
		}
		return (dr == 0) != (dc == 0) && occupiedBetween(b, mv) == 0

	case King:
		return max(adr, adc) == 1

	default:
		return false
	}
}

// occupiedBetween counts occupied cells strictly between the move's source
// and destination. The caller guarantees the two cells share a rank, file or
// diagonal.
func occupiedBetween(b *Board, mv Move) int {
	stepR := sign(mv.ToRow - mv.FromRow)
	stepC := sign(mv.ToCol - mv.FromCol)
	count := 0
	r, c := mv.FromRow+stepR, mv.FromCol+stepC
	for r != mv.ToRow || c != mv.ToCol {
		if !b.IsEmpty(r, c) {
			count++
		}
		r += stepR
		c += stepC
	}
	return count
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
