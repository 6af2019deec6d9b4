package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"survival.io/internal/protocol"
)

// Debug helpers mutate state directly. Like StepOnce they must only be used
// while Run is not active (tests, tools).

func (w *World) DebugPlayer(id string) (protocol.PlayerState, bool) {
	p := w.players[id]
	if p == nil {
		return protocol.PlayerState{}, false
	}
	return playerState(p), true
}

func (w *World) DebugSetPlayerPos(id string, x, y float64) bool {
	p := w.players[id]
	if p == nil {
		return false
	}
	p.Pos = mgl64.Vec2{x, y}
	return true
}

func (w *World) DebugSetPlayerVitals(id string, health, hunger float64) bool {
	p := w.players[id]
	if p == nil {
		return false
	}
	p.Health = health
	p.Hunger = hunger
	p.clampVitals()
	return true
}

func (w *World) DebugSetInventory(id string, inv map[string]int) bool {
	p := w.players[id]
	if p == nil {
		return false
	}
	for k, v := range inv {
		if _, ok := p.Inventory[k]; ok && v >= 0 {
			p.Inventory[k] = v
		}
	}
	return true
}

func (w *World) DebugSetInvulnerable(id string, on bool) bool {
	p := w.players[id]
	if p == nil {
		return false
	}
	p.Invulnerable = on
	return true
}

// DebugSpawnEntity places a node of typ at (x, y) and returns its id.
func (w *World) DebugSpawnEntity(typ string, x, y float64) (uint64, bool) {
	e := w.spawnEntityAt(typ, mgl64.Vec2{x, y})
	if e == nil {
		return 0, false
	}
	return e.ID, true
}

func (w *World) DebugEntity(id uint64) (protocol.EntityState, bool) {
	e := w.entities[id]
	if e == nil {
		return protocol.EntityState{}, false
	}
	return protocol.EntityState{
		ID:        e.ID,
		Type:      e.Type,
		X:         e.Pos[0],
		Y:         e.Pos[1],
		Size:      e.Size,
		Health:    e.Health,
		MaxHealth: e.MaxHealth,
		Harvested: e.Depleted,
		Color:     e.Color,
	}, true
}

// DebugSummary is RequestState without the loop round trip.
func (w *World) DebugSummary() StateSummary { return w.summarize() }
