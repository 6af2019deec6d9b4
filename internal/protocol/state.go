package protocol

// GAME_STATE (server -> client): the per-connection view for one tick.
type GameStateMsg struct {
	Type      string          `json:"type"`
	Tick      uint64          `json:"tick"`
	Players   []PlayerState   `json:"players"`
	Entities  []EntityState   `json:"entities"`
	Buildings []BuildingState `json:"buildings"`
	Timestamp int64           `json:"timestamp"`
}

type PlayerState struct {
	ID        string         `json:"id"`
	Username  string         `json:"username"`
	X         float64        `json:"x"`
	Y         float64        `json:"y"`
	Size      float64        `json:"size"`
	Health    float64        `json:"health"`
	MaxHealth float64        `json:"maxHealth"`
	Hunger    float64        `json:"hunger"`
	MaxHunger float64        `json:"maxHunger"`
	Inventory map[string]int `json:"inventory"`
	Equipment EquipmentState `json:"equipment"`
	Kills     int            `json:"kills"`
	Score     int            `json:"score"`
}

type EquipmentState struct {
	Tool   string `json:"tool"`
	Weapon string `json:"weapon"`
	Armor  string `json:"armor"`
}

type EntityState struct {
	ID        uint64  `json:"id"`
	Type      string  `json:"type"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Size      float64 `json:"size"`
	Health    float64 `json:"health"`
	MaxHealth float64 `json:"maxHealth"`
	Harvested bool    `json:"harvested"`
	Color     string  `json:"color,omitempty"`
}

type BuildingState struct {
	ID      uint64  `json:"id"`
	Type    string  `json:"type"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	OwnerID string  `json:"ownerId"`
}
