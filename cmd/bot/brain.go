package main

import (
	"math"
	"math/rand"
	"sort"

	"survival.io/internal/protocol"
)

// harvestReach stays under the server harvest range so rounding never misses.
const harvestReach = 70

// Crafting preference, best first within each slot.
var craftOrder = []string{
	"iron_axe", "stone_axe", "wooden_axe",
	"iron_sword", "stone_sword", "wooden_spear",
	"iron_armor", "stone_armor", "wooden_armor",
}

type brain struct {
	rng      *rand.Rand
	playerID string
	recipes  map[string]protocol.RecipeView
	crafted  map[string]bool
	wander   protocol.Vec2
	steps    int
}

// decide turns one gameState into the messages to send back.
func (b *brain) decide(gs *protocol.GameStateMsg) []any {
	self, ok := findSelf(gs, b.playerID)
	if !ok {
		return nil
	}
	var out []any

	if self.Hunger < self.MaxHunger*0.5 && self.Inventory["food"] > 0 {
		out = append(out, protocol.InputMsg{Type: protocol.TypeInput, Action: protocol.ActionEat})
	}
	if id, ok := b.nextCraft(self); ok {
		if b.crafted == nil {
			b.crafted = map[string]bool{}
		}
		b.crafted[id] = true
		out = append(out, protocol.CraftMsg{Type: protocol.TypeCraft, RecipeID: id})
	}

	target, dist, ok := nearestEntity(gs, self)
	switch {
	case ok && dist <= harvestReach:
		out = append(out, protocol.InputMsg{
			Type:     protocol.TypeInput,
			Movement: &protocol.Vec2{},
			Action:   protocol.ActionHarvest,
			TargetID: protocol.EntityTarget(target.ID),
		})
	case ok:
		out = append(out, protocol.InputMsg{
			Type:     protocol.TypeInput,
			Movement: &protocol.Vec2{X: target.X - self.X, Y: target.Y - self.Y},
		})
	default:
		if b.steps%120 == 0 {
			a := b.rng.Float64() * 2 * math.Pi
			b.wander = protocol.Vec2{X: math.Cos(a), Y: math.Sin(a)}
		}
		mv := b.wander
		out = append(out, protocol.InputMsg{Type: protocol.TypeInput, Movement: &mv})
	}
	b.steps++
	return out
}

func (b *brain) nextCraft(self protocol.PlayerState) (string, bool) {
	for _, id := range craftOrder {
		r, ok := b.recipes[id]
		if !ok || b.crafted[id] {
			continue
		}
		if affordable(self.Inventory, r.Cost) {
			return id, true
		}
	}
	return "", false
}

func affordable(inv, cost map[string]int) bool {
	for k, v := range cost {
		if inv[k] < v {
			return false
		}
	}
	return true
}

func findSelf(gs *protocol.GameStateMsg, id string) (protocol.PlayerState, bool) {
	for _, p := range gs.Players {
		if p.ID == id {
			return p, true
		}
	}
	return protocol.PlayerState{}, false
}

func nearestEntity(gs *protocol.GameStateMsg, self protocol.PlayerState) (protocol.EntityState, float64, bool) {
	cands := make([]protocol.EntityState, 0, len(gs.Entities))
	for _, e := range gs.Entities {
		if !e.Harvested {
			cands = append(cands, e)
		}
	}
	if len(cands) == 0 {
		return protocol.EntityState{}, 0, false
	}
	dist := func(e protocol.EntityState) float64 { return math.Hypot(e.X-self.X, e.Y-self.Y) }
	sort.Slice(cands, func(i, j int) bool {
		di, dj := dist(cands[i]), dist(cands[j])
		if di != dj {
			return di < dj
		}
		return cands[i].ID < cands[j].ID
	})
	return cands[0], dist(cands[0]), true
}
