package game

import "testing"

func TestCurrentEnergy(t *testing.T) {
	const now = int64(1_000_000)

	t.Run("Regeneration", func(t *testing.T) {
		ps := &PlayerState{Energy: 6, EnergyRegenRate: 0.5, LastEnergyUpdate: now}
		if got := CurrentEnergy(ps, now); got != 6 {
			t.Errorf("Expected 6 at zero elapsed, got %v", got)
		}
		// 10 seconds at 0.5/s adds 5.
		if got := CurrentEnergy(ps, now+10_000); got != 11 {
			t.Errorf("Expected 11 after 10s, got %v", got)
		}
		// Sub-second regen rounds to 2dp.
		if got := CurrentEnergy(ps, now+100); got != 6.05 {
			t.Errorf("Expected 6.05 after 100ms, got %v", got)
		}
	})

	t.Run("Cap", func(t *testing.T) {
		ps := &PlayerState{Energy: 24, EnergyRegenRate: 0.5, LastEnergyUpdate: now}
		if got := CurrentEnergy(ps, now+3_600_000); got != MaxEnergy {
			t.Errorf("Expected cap at %v, got %v", MaxEnergy, got)
		}
	})

	t.Run("NegativeElapsed", func(t *testing.T) {
		// A now before the last materialisation point projects backwards; the
		// elapsed factor is deliberately not clamped.
		ps := &PlayerState{Energy: 6, EnergyRegenRate: 0.5, LastEnergyUpdate: now}
		if got := CurrentEnergy(ps, now-2_000); got != 5 {
			t.Errorf("Expected 5 for -2s elapsed, got %v", got)
		}
	})

	t.Run("NonNegativeForward", func(t *testing.T) {
		ps := &PlayerState{Energy: 0, EnergyRegenRate: 0.5, LastEnergyUpdate: now}
		for _, dt := range []int64{0, 1, 500, 60_000} {
			if got := CurrentEnergy(ps, now+dt); got < 0 || got > MaxEnergy {
				t.Errorf("Expected energy within [0,%v] at +%dms, got %v", MaxEnergy, dt, got)
			}
		}
	})
}

func TestRegenRate(t *testing.T) {
	const start = int64(500_000)

	cases := []struct {
		elapsed int64
		want    float64
	}{
		{0, 0.5},
		{14_999, 0.5},
		{15_000, 1.0},
		{29_999, 1.0},
		{30_000, 1.5},
		{150_000, 5.5},
		{285_000, 10.0},
		{1_000_000, 10.0}, // capped
	}
	for _, c := range cases {
		if got := RegenRate(start, start+c.elapsed); got != c.want {
			t.Errorf("Expected rate %v at +%dms, got %v", c.want, c.elapsed, got)
		}
	}

	t.Run("Monotone", func(t *testing.T) {
		prev := 0.0
		for dt := int64(0); dt <= 400_000; dt += 5_000 {
			rate := RegenRate(start, start+dt)
			if rate < prev {
				t.Fatalf("Rate decreased from %v to %v at +%dms", prev, rate, dt)
			}
			if rate > MaxRegenRate {
				t.Fatalf("Rate %v exceeds cap at +%dms", rate, dt)
			}
			prev = rate
		}
	})
}

func TestConsumeEnergy(t *testing.T) {
	const now = int64(1_000_000)

	t.Run("Insufficient", func(t *testing.T) {
		ps := &PlayerState{Energy: 1, EnergyRegenRate: 0.5, LastEnergyUpdate: now}
		res := ConsumeEnergy(ps, 6, now)
		if res.OK {
			t.Fatal("Expected consume to fail on insufficient energy")
		}
		if res.Energy != 1 {
			t.Errorf("Expected reported balance 1, got %v", res.Energy)
		}
		// Failure must not touch the state.
		if ps.Energy != 1 || ps.LastEnergyUpdate != now {
			t.Errorf("Expected state untouched, got energy=%v lastUpdate=%d", ps.Energy, ps.LastEnergyUpdate)
		}
	})

	t.Run("Success", func(t *testing.T) {
		ps := &PlayerState{Energy: 10, EnergyRegenRate: 0.5, LastEnergyUpdate: now}
		res := ConsumeEnergy(ps, 2, now)
		if !res.OK {
			t.Fatal("Expected consume to succeed")
		}
		if res.Energy != 8 || ps.Energy != 8 {
			t.Errorf("Expected balance 8, got result %v state %v", res.Energy, ps.Energy)
		}
		if ps.LastEnergyUpdate != now {
			t.Errorf("Expected LastEnergyUpdate advanced to %d, got %d", now, ps.LastEnergyUpdate)
		}
	})

	t.Run("SpendsRegenerated", func(t *testing.T) {
		// 4 seconds of regen at 0.5/s brings 1 up to 3; spending 3 succeeds.
		ps := &PlayerState{Energy: 1, EnergyRegenRate: 0.5, LastEnergyUpdate: now}
		res := ConsumeEnergy(ps, 3, now+4_000)
		if !res.OK {
			t.Fatalf("Expected consume to succeed on regenerated energy, balance %v", res.Energy)
		}
		if ps.Energy != 0 {
			t.Errorf("Expected 0 after spend, got %v", ps.Energy)
		}
	})

	t.Run("ExactBalance", func(t *testing.T) {
		ps := &PlayerState{Energy: 2, EnergyRegenRate: 0.5, LastEnergyUpdate: now}
		if res := ConsumeEnergy(ps, 2, now); !res.OK {
			t.Error("Expected spend of the exact balance to succeed")
		}
	})
}

func TestMaterialiseEnergy(t *testing.T) {
	const now = int64(1_000_000)
	ps := &PlayerState{Energy: 6, EnergyRegenRate: 1.0, LastEnergyUpdate: now}

	MaterialiseEnergy(ps, now+5_000)

	if ps.Energy != 11 {
		t.Errorf("Expected 11 after materialisation, got %v", ps.Energy)
	}
	if ps.LastEnergyUpdate != now+5_000 {
		t.Errorf("Expected LastEnergyUpdate %d, got %d", now+5_000, ps.LastEnergyUpdate)
	}
	// Materialisation is idempotent at a fixed instant.
	if got := CurrentEnergy(ps, ps.LastEnergyUpdate); got != ps.Energy {
		t.Errorf("Expected stored energy to equal projection at its own timestamp, got %v vs %v", ps.Energy, got)
	}
}
