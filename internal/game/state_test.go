package game

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewGameState(t *testing.T) {
	gs := NewGameState("g1", "alice", "bob", true, engNow)

	if gs.Status != StatusWaiting {
		t.Errorf("Expected waiting status, got %s", gs.Status)
	}
	if !gs.Rated {
		t.Error("Expected rated flag set")
	}
	if gs.White.Energy != InitialEnergy || gs.Black.Energy != InitialEnergy {
		t.Errorf("Expected initial energy %v, got white=%v black=%v", InitialEnergy, gs.White.Energy, gs.Black.Energy)
	}
	if gs.White.EnergyRegenRate != InitialRegenRate {
		t.Errorf("Expected initial regen rate %v, got %v", InitialRegenRate, gs.White.EnergyRegenRate)
	}
	if len(gs.White.PieceCooldowns) != 0 {
		t.Error("Expected empty cooldown map")
	}
	if gs.StartedAt != 0 {
		t.Error("Expected unset start timestamp")
	}
}

func TestColorOf(t *testing.T) {
	gs := NewGameState("g1", "alice", "bob", false, engNow)

	if c, ok := gs.ColorOf("alice"); !ok || c != White {
		t.Errorf("Expected alice white, got %v ok=%v", c, ok)
	}
	if c, ok := gs.ColorOf("bob"); !ok || c != Black {
		t.Errorf("Expected bob black, got %v ok=%v", c, ok)
	}
	if _, ok := gs.ColorOf("mallory"); ok {
		t.Error("Expected unknown player to report false")
	}
	if gs.PlayerID(White) != "alice" || gs.PlayerID(Black) != "bob" {
		t.Error("Expected PlayerID to invert ColorOf")
	}
}

func TestPlayerStateJSON(t *testing.T) {
	// Cooldowns must serialise as a plain object keyed by piece id so
	// snapshots survive any JSON store.
	ps := NewPlayerState(engNow)
	ps.PieceCooldowns["white-pawn-0"] = engNow + 4000

	data, err := json.Marshal(ps)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"pieceCooldowns":{"white-pawn-0":1004000}`) {
		t.Errorf("Expected cooldown object in payload, got %s", data)
	}

	var back PlayerState
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.PieceCooldowns["white-pawn-0"] != engNow+4000 {
		t.Errorf("Expected deadline preserved, got %d", back.PieceCooldowns["white-pawn-0"])
	}
	if back.Energy != InitialEnergy || back.LastEnergyUpdate != engNow {
		t.Errorf("Expected energy fields preserved, got %+v", back)
	}
}

func TestColorJSON(t *testing.T) {
	for _, c := range []Color{White, Black} {
		data, err := json.Marshal(c)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if string(data) != `"`+c.String()+`"` {
			t.Errorf("Expected %q, got %s", c.String(), data)
		}
		var back Color
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if back != c {
			t.Errorf("Expected %v after round trip, got %v", c, back)
		}
	}

	var c Color
	if err := json.Unmarshal([]byte(`"purple"`), &c); err == nil {
		t.Error("Expected error for unknown color")
	}
}
