package protocol

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// Codec encodes server -> client messages for one connection. Binary codecs
// are written as websocket binary frames.
type Codec interface {
	Name() string
	Binary() bool
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, v any) error
}

// CodecFor resolves the encoding requested in JOIN. Unknown names fall back
// to JSON.
func CodecFor(name string) Codec {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case EncodingMsgpack:
		return MsgpackCodec{}
	default:
		return JSONCodec{}
	}
}

type JSONCodec struct{}

func (JSONCodec) Name() string                    { return EncodingJSON }
func (JSONCodec) Binary() bool                    { return false }
func (JSONCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (JSONCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

// MsgpackCodec reuses the json struct tags so both encodings share field names.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return EncodingMsgpack }
func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Unmarshal(b []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// DecodeType peeks the message type regardless of encoding.
func DecodeType(c Codec, b []byte) (string, error) {
	var m BaseMessage
	if err := c.Unmarshal(b, &m); err != nil {
		return "", err
	}
	return m.Type, nil
}
