package game

// Cooldown bookkeeping. Deadlines are absolute millisecond timestamps stored
// in PlayerState.PieceCooldowns; a piece is movable again the instant `now`
// reaches its deadline.

// IsOnCooldown reports whether the piece is still cooling down at `now`.
// Expiry takes effect at equality.
func IsOnCooldown(ps *PlayerState, pieceID string, now int64) bool {
	deadline, ok := ps.PieceCooldowns[pieceID]
	return ok && deadline > now
}

// CooldownRemaining returns the milliseconds left on the piece's cooldown,
// or zero when it has none.
func CooldownRemaining(ps *PlayerState, pieceID string, now int64) int64 {
	deadline, ok := ps.PieceCooldowns[pieceID]
	if !ok || deadline <= now {
		return 0
	}
	return deadline - now
}

// SetCooldown starts a fresh cooldown for the piece based on its kind. Any
// previous deadline is discarded.
func SetCooldown(ps *PlayerState, pieceID string, kind Kind, now int64) {
	ps.PieceCooldowns[pieceID] = now + kind.BaseCooldown()
}

// SetCooldownDeadline writes an explicit deadline, used by adjacency effects
// that lengthen or shorten a running cooldown.
func SetCooldownDeadline(ps *PlayerState, pieceID string, deadline int64) {
	ps.PieceCooldowns[pieceID] = deadline
}

// ClearCooldown removes the piece's cooldown entry.
func ClearCooldown(ps *PlayerState, pieceID string) {
	delete(ps.PieceCooldowns, pieceID)
}

// SweepCooldowns drops every entry whose deadline has passed. Expired keys
// are collected first so the map is never mutated mid-iteration.
func SweepCooldowns(ps *PlayerState, now int64) {
	var expired []string
	for id, deadline := range ps.PieceCooldowns {
		if deadline <= now {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(ps.PieceCooldowns, id)
	}
}
