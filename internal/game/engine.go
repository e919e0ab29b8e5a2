package game

import "fmt"

// Engine-level rejection reasons for attempts that fail before validation.
const (
	ReasonNotInGame = "Player not in game"
	ReasonNotActive = "Game is not active"
)

// InvariantError signals a broken internal invariant: the game state can no
// longer be trusted and the affected game must be aborted. It is distinct
// from move rejections, which are ordinary outcomes.
type InvariantError struct {
	GameID string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("game %s invariant violated: %s", e.GameID, e.Detail)
}

// MoveOutcome is the result of a move attempt. Validation failures are
// reported here, not as errors.
type MoveOutcome struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
	Move   Move   `json:"move"`
	// Captured is a copy of the piece removed from the destination, nil when
	// the move captured nothing.
	Captured *Piece `json:"captured,omitempty"`
	// ShieldConsumed is true when the attempt spent a prince's one-shot
	// shield instead of capturing it; the pieces did not move.
	ShieldConsumed bool `json:"shieldConsumed,omitempty"`
	// KingCaptured is true when this move ended the game by taking a king.
	KingCaptured bool `json:"kingCaptured,omitempty"`
}

func rejected(mv Move, reason string) MoveOutcome {
	return MoveOutcome{Move: mv, Reason: reason}
}

// Engine runs a single game: it materialises time-dependent state, validates
// and executes moves, applies piece effects and detects the win condition.
// Engine methods are not safe for concurrent use; the owning manager
// serialises access per game.
type Engine struct {
	state *GameState
}

// NewEngine wraps an existing game state. The engine takes ownership.
func NewEngine(state *GameState) *Engine {
	return &Engine{state: state}
}

// State exposes the underlying game state. Callers must respect the owner's
// serialisation; for a safe snapshot use State().Clone().
func (e *Engine) State() *GameState {
	return e.state
}

// materialise settles a player's continuously-accumulating state at `now`:
// regen-rate growth, effective energy, and expired cooldowns.
func (e *Engine) materialise(color Color, now int64) error {
	ps := e.state.PlayerState(color)
	if e.state.StartedAt != 0 {
		ps.EnergyRegenRate = RegenRate(e.state.StartedAt, now)
	}
	MaterialiseEnergy(ps, now)
	SweepCooldowns(ps, now)
	if ps.Energy > MaxEnergy {
		return &InvariantError{
			GameID: e.state.ID,
			Detail: fmt.Sprintf("%s energy %.2f exceeds cap after materialisation", color, ps.Energy),
		}
	}
	return nil
}

// Tick materialises both players' states without evaluating a move. It is
// semantically a no-op between moves and safe to call at any frequency.
func (e *Engine) Tick(now int64) error {
	if e.state.Status != StatusActive {
		return nil
	}
	if err := e.materialise(White, now); err != nil {
		return err
	}
	return e.materialise(Black, now)
}

// AttemptMove validates and, if legal, executes one move at `now`. Rejections
// come back in the outcome; a non-nil error means an invariant broke and the
// game must be aborted.
func (e *Engine) AttemptMove(mv Move, now int64) (MoveOutcome, error) {
	color, ok := e.state.ColorOf(mv.PlayerID)
	if !ok {
		return rejected(mv, ReasonNotInGame), nil
	}
	if e.state.Status != StatusActive {
		return rejected(mv, ReasonNotActive), nil
	}
	if err := e.materialise(color, now); err != nil {
		return MoveOutcome{Move: mv}, err
	}
	ps := e.state.PlayerState(color)
	if v := ValidateMove(e.state.Board, mv, color, ps, now); !v.Valid {
		return rejected(mv, string(v.Reason)), nil
	}
	return e.execute(mv, color, now)
}

// execute applies a validated move.
func (e *Engine) execute(mv Move, color Color, now int64) (MoveOutcome, error) {
	b := e.state.Board
	ps := e.state.PlayerState(color)
	src := b.At(mv.FromRow, mv.FromCol)
	dst := b.At(mv.ToRow, mv.ToCol)

	// A prince's shield absorbs the capture attempt: the attacker pays the
	// full move price but neither piece moves.
	if dst != nil && dst.Color != color && dst.Kind == Prince && dst.CanPreventCapture {
		b.ConsumePrinceShield(dst.Row, dst.Col)
		ConsumeEnergy(ps, src.Kind.EnergyCost(), now)
		SetCooldown(ps, src.ID, src.Kind, now)
		src.HasMoved = true
		e.applyMoveEffects(src, now)
		e.state.LastMoveAt = now
		return MoveOutcome{OK: true, Move: mv, ShieldConsumed: true}, nil
	}

	// Validation already gated on energy; the re-check guards the window
	// where execution logic and validation could disagree.
	if res := ConsumeEnergy(ps, src.Kind.EnergyCost(), now); !res.OK {
		return rejected(mv, string(RejectInsufficientEnergy)), nil
	}
	SetCooldown(ps, src.ID, src.Kind, now)

	captured := dst.Clone()
	if err := b.MovePiece(mv.FromRow, mv.FromCol, mv.ToRow, mv.ToCol); err != nil {
		return MoveOutcome{Move: mv}, &InvariantError{GameID: e.state.ID, Detail: err.Error()}
	}
	kingCaptured := captured != nil && captured.Kind == King

	e.applyMoveEffects(src, now)
	e.state.LastMoveAt = now
	if kingCaptured {
		e.finish(color)
	}

	if err := b.CheckIntegrity(); err != nil {
		return MoveOutcome{Move: mv}, &InvariantError{GameID: e.state.ID, Detail: err.Error()}
	}
	return MoveOutcome{OK: true, Move: mv, Captured: captured, KingCaptured: kingCaptured}, nil
}

// applyMoveEffects applies the mover's post-move aura from its current cell:
// a pawn general relieves friendly cooldowns around it, an ice bishop
// extends enemy ones.
func (e *Engine) applyMoveEffects(src *Piece, now int64) {
	switch src.Kind {
	case PawnGeneral:
		own := e.state.PlayerState(src.Color)
		for _, p := range e.neighbours(src.Row, src.Col) {
			if p.Color != src.Color {
				continue
			}
			rem := CooldownRemaining(own, p.ID, now)
			if rem <= 0 {
				continue
			}
			rem -= 2000
			if rem < 0 {
				rem = 0
			}
			SetCooldownDeadline(own, p.ID, now+rem)
		}
	case IceBishop:
		enemy := e.state.PlayerState(src.Color.Other())
		for _, p := range e.neighbours(src.Row, src.Col) {
			if p.Color == src.Color {
				continue
			}
			rem := CooldownRemaining(enemy, p.ID, now)
			if rem > 0 {
				ext := rem + 3000
				if cap := p.Kind.BaseCooldown(); ext > cap {
					ext = cap
				}
				SetCooldownDeadline(enemy, p.ID, now+ext)
			} else {
				SetCooldownDeadline(enemy, p.ID, now+3000)
			}
		}
	}
}

// neighbours returns the pieces on the 8 cells surrounding (r,c).
func (e *Engine) neighbours(r, c int) []*Piece {
	var out []*Piece
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			if p := e.state.Board.At(r+dr, c+dc); p != nil {
				out = append(out, p)
			}
		}
	}
	return out
}

func (e *Engine) finish(winner Color) {
	w := winner
	e.state.Status = StatusFinished
	e.state.Winner = &w
}

// CalculatePoints sums the material value of the color's surviving pieces.
func (e *Engine) CalculatePoints(color Color) int {
	total := 0
	for _, p := range e.state.Board.FindByColor(color) {
		total += p.Kind.Points()
	}
	return total
}

// ResolveSimultaneousKingCapture decides a winner once king captures have
// been observed. With both kings down the higher material total wins and
// white takes ties, keeping the resolution deterministic. With one king down
// the surviving side wins. With neither, there is no winner yet.
func (e *Engine) ResolveSimultaneousKingCapture(whiteKingCaptured, blackKingCaptured bool) *Color {
	switch {
	case whiteKingCaptured && blackKingCaptured:
		w := White
		if e.CalculatePoints(Black) > e.CalculatePoints(White) {
			w = Black
		}
		return &w
	case whiteKingCaptured:
		w := Black
		return &w
	case blackKingCaptured:
		w := White
		return &w
	default:
		return nil
	}
}
