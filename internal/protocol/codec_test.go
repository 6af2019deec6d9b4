package protocol

import (
	"encoding/json"
	"testing"
)

func TestCodecFor(t *testing.T) {
	if c := CodecFor(""); c.Name() != EncodingJSON || c.Binary() {
		t.Fatalf("default codec: got %s binary=%v", c.Name(), c.Binary())
	}
	if c := CodecFor(" MsgPack "); c.Name() != EncodingMsgpack || !c.Binary() {
		t.Fatalf("msgpack codec: got %s binary=%v", c.Name(), c.Binary())
	}
	if c := CodecFor("protobuf"); c.Name() != EncodingJSON {
		t.Fatalf("unknown encoding should fall back to json, got %s", c.Name())
	}
}

func TestMsgpackCodec_UsesJSONFieldNames(t *testing.T) {
	c := MsgpackCodec{}
	b, err := c.Marshal(RespawnMsg{Type: TypeRespawn, X: 12.5, Y: 40})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := c.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["type"] != TypeRespawn {
		t.Fatalf("type: got %v", m["type"])
	}
	if _, ok := m["x"]; !ok {
		t.Fatalf("expected json field name x in %v", m)
	}
	typ, err := DecodeType(c, b)
	if err != nil || typ != TypeRespawn {
		t.Fatalf("DecodeType: got %q err=%v", typ, err)
	}
}

func TestTargetID_DecodesNumberOrString(t *testing.T) {
	var in InputMsg
	if err := json.Unmarshal([]byte(`{"type":"input","action":"harvest","targetId":17}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if id, ok := in.TargetID.EntityID(); !ok || id != 17 {
		t.Fatalf("entity target: got %d ok=%v", id, ok)
	}
	if _, ok := in.TargetID.PlayerID(); ok {
		t.Fatalf("numeric target must not resolve to a player")
	}

	in = InputMsg{}
	if err := json.Unmarshal([]byte(`{"type":"input","action":"attack","targetId":"abc"}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if id, ok := in.TargetID.PlayerID(); !ok || id != "abc" {
		t.Fatalf("player target: got %q ok=%v", id, ok)
	}

	in = InputMsg{}
	if err := json.Unmarshal([]byte(`{"type":"input","targetId":-3}`), &in); err == nil {
		t.Fatalf("expected negative entity id to be rejected")
	}
	if err := json.Unmarshal([]byte(`{"type":"input","targetId":1.5}`), &in); err == nil {
		t.Fatalf("expected fractional entity id to be rejected")
	}
}

func TestTargetID_MarshalRoundTrip(t *testing.T) {
	b, err := json.Marshal(InputMsg{Type: TypeInput, Action: ActionHarvest, TargetID: EntityTarget(9)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"type":"input","action":"harvest","targetId":9}` {
		t.Fatalf("unexpected encoding: %s", b)
	}
	b, err = json.Marshal(InputMsg{Type: TypeInput, Action: ActionAttack, TargetID: PlayerTarget("p2")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"type":"input","action":"attack","targetId":"p2"}` {
		t.Fatalf("unexpected encoding: %s", b)
	}
}
