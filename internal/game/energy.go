package game

import "math"

// Energy parameters. Energy regenerates continuously; the rate itself grows
// stepwise with elapsed match time.
const (
	InitialEnergy = 6.0
	MaxEnergy     = 25.0
	// InitialRegenRate is energy per second at match start.
	InitialRegenRate = 0.5
	// RegenRateIncrease is added to the rate every RegenRateInterval.
	RegenRateIncrease = 0.5
	RegenRateInterval = int64(15_000)
	MaxRegenRate      = 10.0
)

// CurrentEnergy returns the player's effective energy at `now`, rounded to
// two decimals and capped at MaxEnergy. The elapsed factor is deliberately
// not clamped at zero: a `now` before LastEnergyUpdate yields less energy,
// keeping the function a pure projection of its inputs.
func CurrentEnergy(ps *PlayerState, now int64) float64 {
	elapsed := float64(now-ps.LastEnergyUpdate) / 1000.0
	e := ps.Energy + elapsed*ps.EnergyRegenRate
	if e > MaxEnergy {
		e = MaxEnergy
	}
	return round2(e)
}

// RegenRate returns the regeneration rate in effect at `now` for a match
// started at `gameStart`. The rate steps up by RegenRateIncrease every
// RegenRateInterval and never exceeds MaxRegenRate.
func RegenRate(gameStart, now int64) float64 {
	steps := (now - gameStart) / RegenRateInterval
	if steps < 0 {
		steps = 0
	}
	rate := InitialRegenRate + float64(steps)*RegenRateIncrease
	if rate > MaxRegenRate {
		rate = MaxRegenRate
	}
	return rate
}

// ConsumeResult reports the outcome of an energy spend.
type ConsumeResult struct {
	OK bool
	// Energy is the post-spend balance on success, or the effective balance
	// that proved insufficient on failure.
	Energy float64
}

// ConsumeEnergy materialises the player's energy at `now` and spends
// `amount` from it. On an insufficient balance the state is left untouched.
// After a successful spend, Energy and LastEnergyUpdate reflect `now`.
func ConsumeEnergy(ps *PlayerState, amount float64, now int64) ConsumeResult {
	e := CurrentEnergy(ps, now)
	if e < amount {
		return ConsumeResult{OK: false, Energy: e}
	}
	ps.Energy = round2(e - amount)
	ps.LastEnergyUpdate = now
	return ConsumeResult{OK: true, Energy: ps.Energy}
}

// MaterialiseEnergy writes the effective energy at `now` back into the
// state, advancing LastEnergyUpdate. Engines call this before validation so
// the validator reads a settled balance.
func MaterialiseEnergy(ps *PlayerState, now int64) {
	ps.Energy = CurrentEnergy(ps, now)
	ps.LastEnergyUpdate = now
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
