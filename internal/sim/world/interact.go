package world

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"survival.io/internal/protocol"
	"survival.io/internal/sim/world/logic/mathx"
)

// applyInput resolves one input message on arrival. Every check failure is a
// silent no-op.
func (w *World) applyInput(p *Player, in *protocol.InputMsg) {
	if in.Movement != nil {
		p.SetVelocity(mgl64.Vec2{in.Movement.X, in.Movement.Y})
	}
	switch in.Action {
	case protocol.ActionHarvest:
		if id, ok := in.TargetID.EntityID(); ok {
			w.harvest(p, id)
		}
	case protocol.ActionAttack:
		if id, ok := in.TargetID.PlayerID(); ok {
			w.attack(p, id)
		}
	case protocol.ActionEat:
		w.eat(p)
	case protocol.ActionBuild:
		if in.BuildType != "" && in.X != nil && in.Y != nil {
			w.build(p, in.BuildType, *in.X, *in.Y)
		}
	}
}

func (w *World) harvest(p *Player, entityID uint64) {
	e := w.entities[entityID]
	if e == nil || e.Depleted {
		return
	}
	if mathx.Dist(p.Pos, e.Pos) > w.cfg.Tuning.Interact.HarvestRange {
		return
	}
	if _, depleted := w.damageEntity(entityID, p.ToolPower); !depleted {
		return
	}
	p.AddResource(e.Resource, e.Yield)
	w.emit(EventDeplete, p.ID, "", map[string]any{
		"entity_id": e.ID,
		"type":      e.Type,
		"resource":  e.Resource,
		"amount":    e.Yield,
	})
}

func (w *World) attack(p *Player, targetID string) {
	target := w.players[targetID]
	if target == nil || target == p {
		return
	}
	if mathx.Dist(p.Pos, target.Pos) > w.cfg.Tuning.Interact.AttackRange {
		return
	}
	if !target.TakeDamage(p.AttackPower) {
		return
	}
	p.Kills++
	p.Score += w.cfg.Tuning.Interact.KillScore
	w.emit(EventKill, p.ID, target.ID, map[string]any{"weapon": p.Equipment.Weapon})
	w.log.Info("player killed",
		zap.String("killer", p.Username),
		zap.String("victim", target.Username),
		zap.String("weapon", p.Equipment.Weapon))
	w.handleDeath(target, p.ID)
}

// build places a structure from the tuning table. Its cost is checked here,
// independently of any crafting recipe with the same id.
func (w *World) build(p *Player, typ string, x, y float64) {
	def, ok := w.cfg.Tuning.Buildings[typ]
	if !ok {
		return
	}
	pos := mgl64.Vec2{x, y}
	wt := w.cfg.Tuning.World
	if !mathx.FiniteVec(pos) || x < 0 || y < 0 || x > wt.Width || y > wt.Height {
		return
	}
	if !p.has(def.Cost) {
		return
	}
	p.pay(def.Cost)

	b := &Building{
		ID:      w.nextBuildingID,
		Type:    typ,
		Pos:     pos,
		Width:   def.Width,
		Height:  def.Height,
		OwnerID: p.ID,
	}
	w.nextBuildingID++
	w.buildings[b.ID] = b
	w.emit(EventBuild, p.ID, "", map[string]any{"building_id": b.ID, "type": typ, "x": x, "y": y})
}

func (w *World) eat(p *Player) {
	if p.ConsumeFood(1, w.cfg.Tuning.Interact.EatRestore) {
		w.emit(EventEat, p.ID, "", nil)
	}
}

// handleDeath respawns p at a random point and tells only p where it went.
func (w *World) handleDeath(p *Player, killerID string) {
	pos := w.randomPlayerPos()
	p.Respawn(pos)
	w.emit(EventDeath, p.ID, killerID, map[string]any{"deaths": p.Deaths})
	w.sendTo(p.ID, protocol.RespawnMsg{Type: protocol.TypeRespawn, X: pos[0], Y: pos[1]})
}

func (w *World) randomPlayerPos() mgl64.Vec2 {
	wt := w.cfg.Tuning.World
	return mathx.RandIn(w.rng, wt.Width, wt.Height, w.cfg.Tuning.Player.Size)
}
