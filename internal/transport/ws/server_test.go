package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"survival.io/internal/protocol"
	"survival.io/internal/sim/catalogs"
	"survival.io/internal/sim/tuning"
	"survival.io/internal/sim/world"
)

func startWorld(t *testing.T) *world.World {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	tun := tuning.Defaults()
	tun.Population = map[string]int{}
	w, err := world.New(world.WorldConfig{ID: "ws-test", Seed: 1, Tuning: tun}, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads frames until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, codec protocol.Codec, typ string) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %s: %v", typ, err)
		}
		got, err := protocol.DecodeType(codec, b)
		if err != nil {
			t.Fatalf("decode type: %v", err)
		}
		if got == typ {
			return b
		}
	}
}

func TestServer_JoinInitAndGameState(t *testing.T) {
	w := startWorld(t)
	s := NewServer(w, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	if err := conn.WriteJSON(protocol.JoinMsg{Type: protocol.TypeJoin, Username: "alice"}); err != nil {
		t.Fatalf("write join: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, first, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read init: %v", err)
	}
	if mt != websocket.TextMessage {
		t.Fatalf("frame type: got %d want text", mt)
	}
	var init protocol.InitMsg
	if err := json.Unmarshal(first, &init); err != nil {
		t.Fatalf("unmarshal init: %v", err)
	}
	if init.Type != protocol.TypeInit || init.PlayerID == "" || init.WorldSize.Width != 4000 {
		t.Fatalf("init: %+v", init)
	}

	var gs protocol.GameStateMsg
	if err := json.Unmarshal(readUntil(t, conn, protocol.JSONCodec{}, protocol.TypeGameState), &gs); err != nil {
		t.Fatalf("unmarshal gameState: %v", err)
	}
	if len(gs.Players) != 1 || gs.Players[0].ID != init.PlayerID || gs.Players[0].Username != "alice" {
		t.Fatalf("gameState players: %+v", gs.Players)
	}

	if err := conn.WriteJSON(protocol.ChatMsg{Type: protocol.TypeChat, Text: "hi"}); err != nil {
		t.Fatalf("write chat: %v", err)
	}
	var cm protocol.ChatBroadcastMsg
	_ = json.Unmarshal(readUntil(t, conn, protocol.JSONCodec{}, protocol.TypeChat), &cm)
	if cm.Username != "alice" || cm.Message != "hi" {
		t.Fatalf("chat: %+v", cm)
	}

	if err := conn.WriteJSON(protocol.CraftMsg{Type: protocol.TypeCraft, RecipeID: "wooden_axe"}); err != nil {
		t.Fatalf("write craft: %v", err)
	}
	var cr protocol.CraftResultMsg
	_ = json.Unmarshal(readUntil(t, conn, protocol.JSONCodec{}, protocol.TypeCraftResult), &cr)
	if cr.Success || cr.Message != "Not enough resources" {
		t.Fatalf("craft result: %+v", cr)
	}

	if st := s.Stats(); st.Active != 1 || st.Accepted != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestServer_MsgpackClientGetsBinaryFrames(t *testing.T) {
	w := startWorld(t)
	srv := httptest.NewServer(NewServer(w, nil).Handler())
	defer srv.Close()

	conn := dial(t, srv)
	_ = conn.WriteJSON(protocol.JoinMsg{Type: protocol.TypeJoin, Username: "bin", Encoding: protocol.EncodingMsgpack})

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, first, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read init: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Fatalf("frame type: got %d want binary", mt)
	}
	codec := protocol.MsgpackCodec{}
	var init protocol.InitMsg
	if err := codec.Unmarshal(first, &init); err != nil {
		t.Fatalf("msgpack init: %v", err)
	}
	if init.Type != protocol.TypeInit || len(init.Recipes) == 0 {
		t.Fatalf("init: %+v", init)
	}
	var gs protocol.GameStateMsg
	if err := codec.Unmarshal(readUntil(t, conn, codec, protocol.TypeGameState), &gs); err != nil {
		t.Fatalf("msgpack gameState: %v", err)
	}
	if len(gs.Players) != 1 {
		t.Fatalf("players: %+v", gs.Players)
	}
}

func TestServer_RejectsNonJoinFirstFrame(t *testing.T) {
	w := startWorld(t)
	s := NewServer(w, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	_ = conn.WriteJSON(protocol.ChatMsg{Type: protocol.TypeChat, Text: "hello?"})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestServer_DisconnectLeavesWorld(t *testing.T) {
	w := startWorld(t)
	s := NewServer(w, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	_ = conn.WriteJSON(protocol.JoinMsg{Type: protocol.TypeJoin, Username: "bye"})
	readUntil(t, conn, protocol.JSONCodec{}, protocol.TypeInit)
	_ = conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		st, err := w.RequestState(ctx)
		if err != nil {
			t.Fatalf("player never left: %v", err)
		}
		if len(st.Players) == 0 && s.Stats().Active == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	cases := []struct {
		raw  string
		ok   bool
		kind string
	}{
		{`{"type":"input","movement":{"x":1,"y":0},"action":"harvest","targetId":3}`, true, "input"},
		{`{"type":"input","action":"attack","targetId":"abc"}`, true, "input"},
		{`{"type":"craft","recipeId":"wall"}`, true, "craft"},
		{`{"type":"craft"}`, false, ""},
		{`{"type":"chat","text":"yo"}`, true, "chat"},
		{`{"type":"join","username":"x"}`, false, ""},
		{`{"type":"input","targetId":-1}`, false, ""},
		{`not json`, false, ""},
	}
	for _, c := range cases {
		env, ok := decodeEnvelope("p", []byte(c.raw))
		if ok != c.ok {
			t.Fatalf("%s: ok=%v want %v", c.raw, ok, c.ok)
		}
		if !ok {
			continue
		}
		kind := ""
		switch {
		case env.Input != nil:
			kind = "input"
		case env.Craft != nil:
			kind = "craft"
		case env.Chat != nil:
			kind = "chat"
		}
		if kind != c.kind || env.PlayerID != "p" {
			t.Fatalf("%s: kind=%s player=%s", c.raw, kind, env.PlayerID)
		}
	}
}

type stubWorld struct {
	join  chan world.JoinRequest
	leave chan string
	inbox chan world.Envelope
}

func newStubWorld() *stubWorld {
	return &stubWorld{
		join:  make(chan world.JoinRequest, 1),
		leave: make(chan string),
		inbox: make(chan world.Envelope, 8),
	}
}

func (w *stubWorld) Join() chan<- world.JoinRequest { return w.join }
func (w *stubWorld) Leave() chan<- string           { return w.leave }
func (w *stubWorld) Inbox() chan<- world.Envelope   { return w.inbox }

func sendJoin(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	if err := conn.WriteJSON(protocol.JoinMsg{Type: protocol.TypeJoin, Username: "slow"}); err != nil {
		t.Fatalf("send join: %v", err)
	}
}

func TestServer_JoinReplyTimeoutGivesUp(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sw := newStubWorld()
	s := NewServer(sw, zap.New(core))
	s.HandshakeTimeout = 100 * time.Millisecond
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	sendJoin(t, conn)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Fatalf("read: got %v want try-again-later close", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for logs.FilterMessage("join reply never arrived").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("pending join reply was never abandoned")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := s.Stats().Rejected; got != 1 {
		t.Fatalf("rejected: got %d want 1", got)
	}
}

func TestServer_LeaveGivesUpWhenWorldStalls(t *testing.T) {
	s := NewServer(newStubWorld(), nil)
	s.HandshakeTimeout = 50 * time.Millisecond

	start := time.Now()
	if s.leave("p1") {
		t.Fatalf("leave reported delivery to a stalled world")
	}
	if d := time.Since(start); d > time.Second {
		t.Fatalf("leave blocked for %v", d)
	}
}

func TestServer_ClosedEventQueueHangsUp(t *testing.T) {
	sw := newStubWorld()
	s := NewServer(sw, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	sendJoin(t, conn)

	var req world.JoinRequest
	select {
	case req = <-sw.join:
	case <-time.After(2 * time.Second):
		t.Fatalf("join never reached the world")
	}
	if req.Events == nil || req.Out == nil || req.Events == req.Out {
		t.Fatalf("join must carry separate Out and Events queues")
	}
	req.Resp <- world.JoinResponse{PlayerID: "p1", Init: protocol.InitMsg{Type: protocol.TypeInit, PlayerID: "p1"}}
	readUntil(t, conn, protocol.JSONCodec{}, protocol.TypeInit)

	req.Events <- []byte(`{"type":"craftResult","success":true,"message":"ok"}`)
	readUntil(t, conn, protocol.JSONCodec{}, protocol.TypeCraftResult)

	// The world closes Events when the client falls too far behind.
	close(req.Events)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("read: got %v want policy-violation close", err)
	}
	select {
	case id := <-sw.leave:
		if id != "p1" {
			t.Fatalf("leave: got %q want p1", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("hung-up session never left the world")
	}
}
