package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"survival.io/internal/sim/catalogs"
	"survival.io/internal/sim/world/logic/mathx"
)

// Entity is a harvestable resource node.
type Entity struct {
	ID        uint64
	Type      string
	Pos       mgl64.Vec2
	Size      float64
	Health    float64
	MaxHealth float64
	Resource  string
	Yield     int
	Color     string
	Depleted  bool
}

func newEntity(id uint64, def catalogs.EntityDef, pos mgl64.Vec2) *Entity {
	return &Entity{
		ID:        id,
		Type:      def.Type,
		Pos:       pos,
		Size:      def.Size,
		Health:    def.MaxHealth,
		MaxHealth: def.MaxHealth,
		Resource:  def.Resource,
		Yield:     def.Yield,
		Color:     def.Color,
	}
}

// Damage lowers health and reports whether this hit depleted the node.
// A depleted node ignores further damage.
func (e *Entity) Damage(amount float64) bool {
	if e.Depleted {
		return false
	}
	e.Health -= amount
	if e.Health <= 0 {
		e.Depleted = true
		return true
	}
	return false
}

type Building struct {
	ID      uint64
	Type    string
	Pos     mgl64.Vec2
	Width   float64
	Height  float64
	OwnerID string
}

func (w *World) populate() {
	for _, typ := range w.catalogs.Entities.Types {
		for i := 0; i < w.cfg.Tuning.Population[typ]; i++ {
			w.spawnEntity(typ)
		}
	}
}

// spawnEntity places a new node of typ at a random position inside the spawn
// margin. Unknown types spawn nothing.
func (w *World) spawnEntity(typ string) *Entity {
	wt := w.cfg.Tuning.World
	return w.spawnEntityAt(typ, mathx.RandIn(w.rng, wt.Width, wt.Height, wt.SpawnMargin))
}

func (w *World) spawnEntityAt(typ string, pos mgl64.Vec2) *Entity {
	def, ok := w.catalogs.Entities.ByType[typ]
	if !ok {
		return nil
	}
	e := newEntity(w.nextEntityID, def, pos)
	w.nextEntityID++
	w.entities[e.ID] = e
	return e
}

// damageEntity applies amount to a live node. It returns nil when the id is
// unknown or already depleted. On depletion the node is scheduled for
// removal and replacement.
func (w *World) damageEntity(id uint64, amount float64) (e *Entity, depleted bool) {
	e = w.entities[id]
	if e == nil || e.Depleted {
		return nil, false
	}
	if !e.Damage(amount) {
		return e, false
	}
	w.schedule.push(w.clock+w.cfg.Tuning.EntityRespawnSeconds, "respawn_entity", func(w *World) {
		w.respawnEntity(id)
	})
	return e, true
}

func (w *World) respawnEntity(id uint64) {
	old := w.entities[id]
	if old == nil {
		return
	}
	delete(w.entities, id)
	if fresh := w.spawnEntity(old.Type); fresh != nil {
		w.emit(EventEntityRespawn, "", "", map[string]any{
			"old_id": id,
			"new_id": fresh.ID,
			"type":   fresh.Type,
		})
	}
}
