package worldtest

import (
	"encoding/json"
	"testing"
	"time"

	"survival.io/internal/protocol"
	"survival.io/internal/sim/catalogs"
	"survival.io/internal/sim/tuning"
	world "survival.io/internal/sim/world"
)

func loadCats(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

// emptyConfig has no random resource nodes so tests control the map.
func emptyConfig(mutate func(*tuning.Tuning)) world.WorldConfig {
	tun := tuning.Defaults()
	tun.Population = map[string]int{}
	if mutate != nil {
		mutate(&tun)
	}
	return world.WorldConfig{
		ID:     "test",
		Seed:   42,
		Tuning: tun,
		Now:    func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func hasEntity(gs protocol.GameStateMsg, id uint64) bool {
	for _, e := range gs.Entities {
		if e.ID == id {
			return true
		}
	}
	return false
}

func findPlayer(gs protocol.GameStateMsg, id string) (protocol.PlayerState, bool) {
	for _, p := range gs.Players {
		if p.ID == id {
			return p, true
		}
	}
	return protocol.PlayerState{}, false
}

func framesOfType(t *testing.T, frames []json.RawMessage, typ string) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	for _, f := range frames {
		base, err := protocol.DecodeBase(f)
		if err != nil {
			t.Fatalf("decode base: %v", err)
		}
		if base.Type == typ {
			out = append(out, f)
		}
	}
	return out
}
