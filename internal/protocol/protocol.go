package protocol

import "encoding/json"

const Version = "1.0"

// Message types (client -> server).
const (
	TypeJoin  = "join"
	TypeInput = "input"
	TypeCraft = "craft"
	TypeChat  = "chat"
)

// Message types (server -> client). Chat broadcasts reuse TypeChat.
const (
	TypeInit        = "init"
	TypeGameState   = "gameState"
	TypeRespawn     = "respawn"
	TypeCraftResult = "craftResult"
	TypeMessage     = "message"
)

// Input actions.
const (
	ActionHarvest = "harvest"
	ActionAttack  = "attack"
	ActionBuild   = "build"
	ActionEat     = "eat"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
