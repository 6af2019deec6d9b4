package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"survival.io/internal/protocol"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func validateRaw(t *testing.T, s *jsonschema.Schema, raw string) {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func validateMsg(t *testing.T, s *jsonschema.Schema, msg any) {
	t.Helper()
	b, err := protocol.JSONCodec{}.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	validateRaw(t, s, string(b))
}

func TestSchemas_ValidateClientSamples(t *testing.T) {
	validateRaw(t, compileSchema(t, "join.schema.json"), `{
	  "type":"join",
	  "protocol_version":"1.0",
	  "username":"alice",
	  "accountId":7,
	  "encoding":"msgpack"
	}`)
	validateRaw(t, compileSchema(t, "input.schema.json"), `{
	  "type":"input",
	  "movement":{"x":0.6,"y":-0.8},
	  "action":"harvest",
	  "targetId":42
	}`)
	validateRaw(t, compileSchema(t, "input.schema.json"), `{
	  "type":"input",
	  "action":"attack",
	  "targetId":"b3c1e0c2-4a5e-4f7e-9d4b-1f2e3d4c5b6a"
	}`)
	validateRaw(t, compileSchema(t, "input.schema.json"), `{
	  "type":"input",
	  "action":"build",
	  "buildType":"wall",
	  "x":120.5,
	  "y":300
	}`)
	validateRaw(t, compileSchema(t, "craft.schema.json"), `{"type":"craft","recipeId":"wooden_axe"}`)
	validateRaw(t, compileSchema(t, "chat.schema.json"), `{"type":"chat","text":"hello"}`)
}

func TestSchemas_ValidateEncodedServerMessages(t *testing.T) {
	validateMsg(t, compileSchema(t, "init.schema.json"), protocol.InitMsg{
		Type:            protocol.TypeInit,
		ProtocolVersion: protocol.Version,
		PlayerID:        "p1",
		WorldSize:       protocol.WorldSize{Width: 4000, Height: 4000},
		TickRateHz:      60,
		ViewDistance:    800,
		Recipes: map[string]protocol.RecipeView{
			"wooden_axe": {Name: "Wooden Axe", Cost: map[string]int{"wood": 10}, Category: "tool"},
			"wall":       {Name: "Wall", Cost: map[string]int{"wood": 20, "stone": 10}, Category: "building"},
		},
		RecipesDigest: "deadbeef",
	})

	validateMsg(t, compileSchema(t, "game_state.schema.json"), protocol.GameStateMsg{
		Type: protocol.TypeGameState,
		Tick: 12,
		Players: []protocol.PlayerState{{
			ID:        "p1",
			Username:  "alice",
			X:         100,
			Y:         200,
			Size:      30,
			Health:    99.5,
			MaxHealth: 100,
			Hunger:    80,
			MaxHunger: 100,
			Inventory: map[string]int{"wood": 3, "stone": 0, "food": 1, "iron": 0},
			Equipment: protocol.EquipmentState{Tool: "hand", Weapon: "fist", Armor: "none"},
			Kills:     0,
			Score:     30,
		}},
		Entities: []protocol.EntityState{{
			ID: 4, Type: "tree", X: 120, Y: 210, Size: 40, Health: 30, MaxHealth: 30, Color: "#228B22",
		}},
		Buildings: []protocol.BuildingState{{
			ID: 0, Type: "wall", X: 90, Y: 90, Width: 100, Height: 20, OwnerID: "p1",
		}},
		Timestamp: 1700000000000,
	})

	validateMsg(t, compileSchema(t, "respawn.schema.json"), protocol.RespawnMsg{Type: protocol.TypeRespawn, X: 10, Y: 20})
	validateMsg(t, compileSchema(t, "chat.schema.json"), protocol.ChatBroadcastMsg{
		Type: protocol.TypeChat, Username: "alice", Message: "hi", Timestamp: 1,
	})
	validateMsg(t, compileSchema(t, "craft_result.schema.json"), protocol.CraftResultMsg{
		Type: protocol.TypeCraftResult, Success: true, Message: "Crafted Wall", Item: "wall",
	})
	validateMsg(t, compileSchema(t, "message.schema.json"), protocol.ServerMsg{Type: protocol.TypeMessage, Text: "God mode: ON"})
}

func TestSchemas_RejectDepletedEntity(t *testing.T) {
	s := compileSchema(t, "game_state.schema.json")
	var v any
	_ = json.Unmarshal([]byte(`{
	  "type":"gameState","tick":1,"players":[],"buildings":[],"timestamp":1,
	  "entities":[{"id":1,"type":"bush","x":1,"y":1,"size":25,"health":0,"maxHealth":10,"harvested":true}]
	}`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("expected depleted entity to be rejected")
	}
}
