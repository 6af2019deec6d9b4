package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// TargetID is either a resource entity id (JSON number) or a player
// session id (JSON string).
type TargetID struct {
	entity   uint64
	player   string
	isEntity bool
}

func EntityTarget(id uint64) *TargetID { return &TargetID{entity: id, isEntity: true} }
func PlayerTarget(id string) *TargetID { return &TargetID{player: id} }

func (t *TargetID) EntityID() (uint64, bool) {
	if t == nil || !t.isEntity {
		return 0, false
	}
	return t.entity, true
}

func (t *TargetID) PlayerID() (string, bool) {
	if t == nil || t.isEntity || t.player == "" {
		return "", false
	}
	return t.player, true
}

func (t TargetID) MarshalJSON() ([]byte, error) {
	if t.isEntity {
		return []byte(strconv.FormatUint(t.entity, 10)), nil
	}
	return json.Marshal(t.player)
}

func (t *TargetID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = TargetID{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = TargetID{player: s}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("targetId: %w", err)
	}
	if f < 0 || f != float64(uint64(f)) {
		return fmt.Errorf("targetId: not an entity id: %s", b)
	}
	*t = TargetID{entity: uint64(f), isEntity: true}
	return nil
}
