package world

import "survival.io/internal/protocol"

type JoinRequest struct {
	Username  string
	AccountID int64

	// Out receives the per-tick gameState stream. When it is full the oldest
	// frame is dropped. Codec decides the encoding; nil means JSON.
	Out   chan []byte
	Codec protocol.Codec

	// Events receives one-shot frames (craftResult, respawn, chat, message).
	// Nothing is dropped from it: if it fills up the world detaches the
	// connection and closes Events. A nil Events shares Out.
	Events chan []byte

	Resp chan JoinResponse
}

type JoinResponse struct {
	PlayerID string
	Init     protocol.InitMsg
}

// Envelope carries one client message into the world loop. Exactly one of
// Input, Craft and Chat is set.
type Envelope struct {
	PlayerID string
	Input    *protocol.InputMsg
	Craft    *protocol.CraftMsg
	Chat     *protocol.ChatMsg
}

// GameEvent is an append-only record of something that happened in the world.
type GameEvent struct {
	Tick   uint64         `json:"tick"`
	Time   int64          `json:"time"` // unix ms
	World  string         `json:"world"`
	Kind   string         `json:"kind"`
	Actor  string         `json:"actor,omitempty"`
	Target string         `json:"target,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

const (
	EventJoin          = "join"
	EventLeave         = "leave"
	EventKill          = "kill"
	EventDeath         = "death"
	EventDeplete       = "deplete"
	EventEntityRespawn = "respawn_entity"
	EventBuild         = "build"
	EventCraft         = "craft"
	EventEat           = "eat"
	EventCommand       = "command"
)

type EventLogger interface {
	WriteEvent(ev GameEvent) error
}

// StatsDelta is added to an account's durable totals.
type StatsDelta struct {
	Kills              int `json:"kills"`
	Deaths             int `json:"deaths"`
	ResourcesCollected int `json:"resources_collected"`
	GamesPlayed        int `json:"games_played"`
	Score              int `json:"score"`
}

// StatsSink receives per-session totals when a player disconnects.
// RecordSession must not block the world loop.
type StatsSink interface {
	RecordSession(accountID int64, d StatsDelta)
}
