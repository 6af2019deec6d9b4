package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type Catalogs struct {
	Recipes   RecipeCatalog
	Entities  EntityCatalog
	Equipment EquipmentCatalog
}

type RecipeCatalog struct {
	ByID   map[string]RecipeDef
	Digest string
}

const (
	CategoryTool     = "tool"
	CategoryWeapon   = "weapon"
	CategoryArmor    = "armor"
	CategoryBuilding = "building"
)

type RecipeDef struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Category string         `json:"category"`
	Cost     map[string]int `json:"cost"`
}

type EntityCatalog struct {
	ByType map[string]EntityDef
	Types  []string // sorted
	Digest string
}

type EntityDef struct {
	Type      string  `json:"type"`
	Size      float64 `json:"size"`
	MaxHealth float64 `json:"max_health"`
	Resource  string  `json:"resource"`
	Yield     int     `json:"yield"`
	Color     string  `json:"color"`
}

type EquipmentCatalog struct {
	Resources []string
	Slots     map[string]SlotDef
	Items     map[string]EquipDef
	Digest    string
}

type SlotDef struct {
	Default string  `json:"default"`
	Base    float64 `json:"base"`
}

type EquipDef struct {
	ID    string  `json:"id"`
	Slot  string  `json:"slot"`
	Power float64 `json:"power"`
}

// Stat resolves the stat for an item in a slot. Unknown ids, and ids that
// belong to another slot, resolve to the slot's base value.
func (c EquipmentCatalog) Stat(slot, id string) float64 {
	if d, ok := c.Items[id]; ok && d.Slot == slot {
		return d.Power
	}
	return c.Slots[slot].Base
}

func (c EquipmentCatalog) HasResource(kind string) bool {
	for _, r := range c.Resources {
		if r == kind {
			return true
		}
	}
	return false
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadEquipment(filepath.Join(configDir, "equipment.json"), &c.Equipment); err != nil {
		return nil, err
	}
	if err := loadRecipes(filepath.Join(configDir, "recipes.json"), &c.Recipes); err != nil {
		return nil, err
	}
	if err := loadEntities(filepath.Join(configDir, "entities.json"), &c.Entities); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadRecipes(path string, out *RecipeCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []RecipeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("recipes.json: %w", err)
	}
	out.ByID = map[string]RecipeDef{}
	for _, r := range defs {
		if r.ID == "" {
			return fmt.Errorf("recipes.json: empty id")
		}
		if _, dup := out.ByID[r.ID]; dup {
			return fmt.Errorf("recipes.json: duplicate id %q", r.ID)
		}
		switch r.Category {
		case CategoryTool, CategoryWeapon, CategoryArmor, CategoryBuilding:
		default:
			return fmt.Errorf("recipes.json: %s: unknown category %q", r.ID, r.Category)
		}
		out.ByID[r.ID] = r
	}
	return nil
}

func loadEntities(path string, out *EntityCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []EntityDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("entities.json: %w", err)
	}
	out.ByType = map[string]EntityDef{}
	for _, d := range defs {
		if d.Type == "" {
			return fmt.Errorf("entities.json: empty type")
		}
		if d.MaxHealth <= 0 {
			return fmt.Errorf("entities.json: %s: max_health must be > 0", d.Type)
		}
		out.ByType[d.Type] = d
	}
	out.Types = make([]string, 0, len(out.ByType))
	for typ := range out.ByType {
		out.Types = append(out.Types, typ)
	}
	sort.Strings(out.Types)
	return nil
}

func loadEquipment(path string, out *EquipmentCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var f struct {
		Resources []string           `json:"resources"`
		Slots     map[string]SlotDef `json:"slots"`
		Items     []EquipDef         `json:"items"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("equipment.json: %w", err)
	}
	for _, slot := range []string{CategoryTool, CategoryWeapon, CategoryArmor} {
		if _, ok := f.Slots[slot]; !ok {
			return fmt.Errorf("equipment.json: missing slot %q", slot)
		}
	}
	if len(f.Resources) == 0 {
		return fmt.Errorf("equipment.json: no resources")
	}
	out.Resources = f.Resources
	out.Slots = f.Slots
	out.Items = map[string]EquipDef{}
	for _, it := range f.Items {
		if it.ID == "" {
			return fmt.Errorf("equipment.json: empty item id")
		}
		if _, ok := f.Slots[it.Slot]; !ok {
			return fmt.Errorf("equipment.json: %s: unknown slot %q", it.ID, it.Slot)
		}
		out.Items[it.ID] = it
	}
	return nil
}

// validate checks cross-file references: every cost and yield names a known
// resource kind.
func (c *Catalogs) validate() error {
	for id, r := range c.Recipes.ByID {
		for res, n := range r.Cost {
			if !c.Equipment.HasResource(res) {
				return fmt.Errorf("recipes.json: %s: unknown resource %q", id, res)
			}
			if n < 0 {
				return fmt.Errorf("recipes.json: %s: negative %s cost", id, res)
			}
		}
	}
	for typ, d := range c.Entities.ByType {
		if !c.Equipment.HasResource(d.Resource) {
			return fmt.Errorf("entities.json: %s: unknown resource %q", typ, d.Resource)
		}
	}
	return nil
}
