package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz   int     `yaml:"tick_rate_hz"`
	MaxDtSeconds float64 `yaml:"max_dt_seconds"`

	World      WorldTuning    `yaml:"world"`
	Player     PlayerTuning   `yaml:"player"`
	Population map[string]int `yaml:"population"`

	EntityRespawnSeconds float64 `yaml:"entity_respawn_seconds"`

	Interact  InteractTuning            `yaml:"interact"`
	Buildings map[string]BuildingTuning `yaml:"buildings"`
	Chat      ChatTuning                `yaml:"chat"`

	ClientQueue     int `yaml:"client_queue"`
	LeaderboardSize int `yaml:"leaderboard_size"`
}

type WorldTuning struct {
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	SpawnMargin  float64 `yaml:"spawn_margin"`
	ViewDistance float64 `yaml:"view_distance"`
}

type PlayerTuning struct {
	Size              float64 `yaml:"size"`
	Speed             float64 `yaml:"speed"`
	MaxHealth         float64 `yaml:"max_health"`
	MaxHunger         float64 `yaml:"max_hunger"`
	HungerDecayPerSec float64 `yaml:"hunger_decay_per_sec"`
	StarvationPerSec  float64 `yaml:"starvation_per_sec"`
	RegenPerSec       float64 `yaml:"regen_per_sec"`
	RegenThreshold    float64 `yaml:"regen_threshold"`
}

type InteractTuning struct {
	HarvestRange  float64 `yaml:"harvest_range"`
	AttackRange   float64 `yaml:"attack_range"`
	EatRestore    float64 `yaml:"eat_restore"`
	KillScore     int     `yaml:"kill_score"`
	ResourceScore int     `yaml:"resource_score"`
}

// BuildingTuning describes a placeable structure. The build action checks
// Cost on its own; it does not consult the recipe table.
type BuildingTuning struct {
	Width  float64        `yaml:"width"`
	Height float64        `yaml:"height"`
	Cost   map[string]int `yaml:"cost"`
}

type ChatTuning struct {
	MaxLen          int  `yaml:"max_len"`
	RateWindowTicks int  `yaml:"rate_window_ticks"`
	RateMax         int  `yaml:"rate_max"`
	DebugCommands   bool `yaml:"debug_commands"`
}

// Defaults returns the stock survival ruleset.
func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      60,
		MaxDtSeconds:    0.25,
		World: WorldTuning{
			Width:        4000,
			Height:       4000,
			SpawnMargin:  50,
			ViewDistance: 800,
		},
		Player: PlayerTuning{
			Size:              30,
			Speed:             4,
			MaxHealth:         100,
			MaxHunger:         100,
			HungerDecayPerSec: 0.05,
			StarvationPerSec:  0.1,
			RegenPerSec:       0.1,
			RegenThreshold:    50,
		},
		Population: map[string]int{
			"tree":      200,
			"rock":      150,
			"bush":      180,
			"iron_node": 50,
		},
		EntityRespawnSeconds: 10,
		Interact: InteractTuning{
			HarvestRange:  80,
			AttackRange:   100,
			EatRestore:    30,
			KillScore:     100,
			ResourceScore: 10,
		},
		Buildings: map[string]BuildingTuning{
			"wall": {Width: 100, Height: 20, Cost: map[string]int{"wood": 20, "stone": 10}},
		},
		Chat:            ChatTuning{MaxLen: 200, RateWindowTicks: 300, RateMax: 5},
		ClientQueue:     8,
		LeaderboardSize: 10,
	}
}

// Load overlays the YAML file on top of Defaults. Fields absent from the
// file keep their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	// Maps are replaced wholesale when present so a file can drop entries.
	var probe struct {
		Population map[string]int            `yaml:"population"`
		Buildings  map[string]BuildingTuning `yaml:"buildings"`
	}
	if err := yaml.Unmarshal(raw, &probe); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if probe.Population != nil {
		t.Population = nil
	}
	if probe.Buildings != nil {
		t.Buildings = nil
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return fmt.Errorf("tick_rate_hz must be > 0")
	case t.World.Width <= 0 || t.World.Height <= 0:
		return fmt.Errorf("world size must be > 0")
	case t.World.SpawnMargin < 0 || 2*t.World.SpawnMargin >= t.World.Width || 2*t.World.SpawnMargin >= t.World.Height:
		return fmt.Errorf("spawn_margin out of range")
	case t.World.ViewDistance <= 0:
		return fmt.Errorf("view_distance must be > 0")
	case t.Player.MaxHealth <= 0 || t.Player.MaxHunger <= 0:
		return fmt.Errorf("player max_health and max_hunger must be > 0")
	case t.Player.Size < 0 || 2*t.Player.Size >= t.World.Width || 2*t.Player.Size >= t.World.Height:
		return fmt.Errorf("player size out of range")
	case t.EntityRespawnSeconds < 0:
		return fmt.Errorf("entity_respawn_seconds must be >= 0")
	}
	for typ, n := range t.Population {
		if n < 0 {
			return fmt.Errorf("population %s: negative count", typ)
		}
	}
	for typ, b := range t.Buildings {
		if b.Width <= 0 || b.Height <= 0 {
			return fmt.Errorf("building %s: footprint must be > 0", typ)
		}
		for res, n := range b.Cost {
			if n < 0 {
				return fmt.Errorf("building %s: negative %s cost", typ, res)
			}
		}
	}
	return nil
}

// TickInterval is the target wall-clock spacing of ticks.
func (t Tuning) TickInterval() time.Duration {
	if t.TickRateHz <= 0 {
		return 0
	}
	return time.Second / time.Duration(t.TickRateHz)
}
