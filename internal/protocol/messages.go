package protocol

// JOIN (client -> server). AccountID comes from a prior /api/login and is
// trusted as-is; credentials are never checked by the simulation.
type JoinMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Username        string `json:"username"`
	AccountID       int64  `json:"accountId,omitempty"`
	Encoding        string `json:"encoding,omitempty"` // "json" (default) or "msgpack"
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// INPUT (client -> server). Every field is optional.
type InputMsg struct {
	Type      string    `json:"type"`
	Movement  *Vec2     `json:"movement,omitempty"`
	Action    string    `json:"action,omitempty"`
	TargetID  *TargetID `json:"targetId,omitempty"`
	BuildType string    `json:"buildType,omitempty"`
	X         *float64  `json:"x,omitempty"`
	Y         *float64  `json:"y,omitempty"`
}

type CraftMsg struct {
	Type     string `json:"type"`
	RecipeID string `json:"recipeId"`
}

type ChatMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// INIT (server -> client), sent once right after join.
type InitMsg struct {
	Type            string                `json:"type"`
	ProtocolVersion string                `json:"protocol_version"`
	PlayerID        string                `json:"playerId"`
	WorldSize       WorldSize             `json:"worldSize"`
	TickRateHz      int                   `json:"tickRateHz"`
	ViewDistance    float64               `json:"viewDistance"`
	Recipes         map[string]RecipeView `json:"recipes"`
	RecipesDigest   string                `json:"recipesDigest"`
}

type WorldSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RecipeView is the client-facing recipe catalog entry.
type RecipeView struct {
	Name     string         `json:"name"`
	Cost     map[string]int `json:"cost"`
	Category string         `json:"category"`
}

type RespawnMsg struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// ChatBroadcastMsg is fanned out to every connection.
type ChatBroadcastMsg struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type CraftResultMsg struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Item    string `json:"item,omitempty"`
}

// MESSAGE (server -> client): private feedback, e.g. debug command output.
type ServerMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
