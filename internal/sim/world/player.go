package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"survival.io/internal/sim/catalogs"
	"survival.io/internal/sim/tuning"
	"survival.io/internal/sim/world/logic/mathx"
	"survival.io/internal/sim/world/logic/rates"
)

type Equipment struct {
	Tool   string
	Weapon string
	Armor  string
}

// Player is the simulated state of one connected session.
type Player struct {
	ID        string
	Username  string
	AccountID int64

	Pos   mgl64.Vec2
	Vel   mgl64.Vec2
	Size  float64
	Speed float64

	Health    float64
	MaxHealth float64
	Hunger    float64
	MaxHunger float64

	Inventory map[string]int
	Equipment Equipment

	ToolPower   float64
	AttackPower float64
	Defense     float64

	Kills              int
	Deaths             int
	ResourcesCollected int
	Score              int

	Invulnerable bool

	chatWindow rates.Window

	rules *playerRules
}

// playerRules is shared by every player of one world.
type playerRules struct {
	width, height float64
	tun           tuning.PlayerTuning
	resourceScore int
	equipment     catalogs.EquipmentCatalog
}

func newPlayer(id, username string, accountID int64, pos mgl64.Vec2, r *playerRules) *Player {
	p := &Player{
		ID:        id,
		Username:  username,
		AccountID: accountID,
		Pos:       pos,
		Size:      r.tun.Size,
		Speed:     r.tun.Speed,
		MaxHealth: r.tun.MaxHealth,
		MaxHunger: r.tun.MaxHunger,
		rules:     r,
	}
	p.resetLoadout()
	return p
}

// resetLoadout restores vitals, inventory and equipment to their spawn values.
func (p *Player) resetLoadout() {
	p.Health = p.MaxHealth
	p.Hunger = p.MaxHunger
	p.Inventory = make(map[string]int, len(p.rules.equipment.Resources))
	for _, r := range p.rules.equipment.Resources {
		p.Inventory[r] = 0
	}
	p.EquipTool(p.rules.equipment.Slots[catalogs.CategoryTool].Default)
	p.EquipWeapon(p.rules.equipment.Slots[catalogs.CategoryWeapon].Default)
	p.EquipArmor(p.rules.equipment.Slots[catalogs.CategoryArmor].Default)
}

// Update advances movement and survival by dt seconds. Movement is applied
// per tick, not scaled by dt.
func (p *Player) Update(dt float64) {
	p.Pos = p.Pos.Add(p.Vel.Mul(p.Speed))
	p.Pos = mathx.Inset(p.Pos, p.rules.width, p.rules.height, p.Size)

	if p.Invulnerable {
		return
	}
	t := p.rules.tun
	p.Hunger -= t.HungerDecayPerSec * dt
	p.clampVitals()

	if p.Hunger <= 0 {
		p.Health -= t.StarvationPerSec * dt
	} else if p.Hunger > t.RegenThreshold && p.Health < p.MaxHealth {
		p.Health += t.RegenPerSec * dt
	}
	p.clampVitals()
}

func (p *Player) clampVitals() {
	p.Health = mgl64.Clamp(p.Health, 0, p.MaxHealth)
	p.Hunger = mgl64.Clamp(p.Hunger, 0, p.MaxHunger)
}

// SetVelocity stores the last movement intent. Non-finite input is ignored and
// longer-than-unit vectors are normalized.
func (p *Player) SetVelocity(v mgl64.Vec2) {
	if !mathx.FiniteVec(v) {
		return
	}
	p.Vel = mathx.LimitUnit(v)
}

func (p *Player) EquipTool(id string) {
	p.Equipment.Tool = id
	p.ToolPower = p.rules.equipment.Stat(catalogs.CategoryTool, id)
}

func (p *Player) EquipWeapon(id string) {
	p.Equipment.Weapon = id
	p.AttackPower = p.rules.equipment.Stat(catalogs.CategoryWeapon, id)
}

func (p *Player) EquipArmor(id string) {
	p.Equipment.Armor = id
	p.Defense = p.rules.equipment.Stat(catalogs.CategoryArmor, id)
}

// equip routes by recipe category. It reports false for categories that
// have no equipment slot.
func (p *Player) equip(category, id string) bool {
	switch category {
	case catalogs.CategoryTool:
		p.EquipTool(id)
	case catalogs.CategoryWeapon:
		p.EquipWeapon(id)
	case catalogs.CategoryArmor:
		p.EquipArmor(id)
	default:
		return false
	}
	return true
}

// TakeDamage applies max(1, amount-defense) and reports whether the player
// died. Invulnerable players take nothing.
func (p *Player) TakeDamage(amount float64) bool {
	if p.Invulnerable {
		return false
	}
	p.Health -= max(1, amount-p.Defense)
	p.clampVitals()
	return p.Health <= 0
}

func (p *Player) IsDead() bool { return p.Health <= 0 }

// Respawn resets the player in place at pos. Inventory and equipment are lost.
func (p *Player) Respawn(pos mgl64.Vec2) {
	p.Pos = pos
	p.resetLoadout()
	p.Deaths++
}

// AddResource credits a harvest. Unknown kinds are ignored.
func (p *Player) AddResource(kind string, amount int) {
	if _, ok := p.Inventory[kind]; !ok || amount <= 0 {
		return
	}
	p.Inventory[kind] += amount
	p.ResourcesCollected += amount
	p.Score += amount * p.rules.resourceScore
}

func (p *Player) ConsumeFood(amount int, restore float64) bool {
	if amount <= 0 || p.Inventory["food"] < amount {
		return false
	}
	p.Inventory["food"] -= amount
	p.Hunger += restore
	p.clampVitals()
	return true
}

func (p *Player) has(cost map[string]int) bool {
	for res, n := range cost {
		if p.Inventory[res] < n {
			return false
		}
	}
	return true
}

// pay deducts cost. Callers check has first.
func (p *Player) pay(cost map[string]int) {
	for res, n := range cost {
		if n > 0 {
			p.Inventory[res] -= n
		}
	}
}

func (p *Player) statsDelta() StatsDelta {
	return StatsDelta{
		Kills:              p.Kills,
		Deaths:             p.Deaths,
		ResourcesCollected: p.ResourcesCollected,
		GamesPlayed:        1,
		Score:              p.Score,
	}
}
