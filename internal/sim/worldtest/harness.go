package worldtest

import (
	"encoding/json"
	"testing"

	"survival.io/internal/protocol"
	"survival.io/internal/sim/catalogs"
	world "survival.io/internal/sim/world"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Join() issues JoinRequest via StepOnce()
// - Step()/StepFor() deliver one client message via StepOnce()
// - Per-player Out (gameState) and Events (one-shot) channels carry JSON frames;
//   the latest gameState is kept
// - Debug* helpers provide deterministic preconditions
//
// It avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World

	DefaultPlayerID string

	sessions map[string]*session
}

// DT is the step size used by every Harness step.
const DT = 1.0 / 60

func NewHarness(t *testing.T, cfg world.WorldConfig, cats *catalogs.Catalogs, username string) *Harness {
	t.Helper()

	w, err := world.New(cfg, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewHarnessWithWorld(t, w, cats, username)
}

// NewHarnessWithWorld is like NewHarness, but uses an already-constructed world instance.
func NewHarnessWithWorld(t *testing.T, w *world.World, cats *catalogs.Catalogs, username string) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}

	h := &Harness{
		T:        t,
		Cats:     cats,
		W:        w,
		sessions: map[string]*session{},
	}
	h.DefaultPlayerID = h.Join(username)
	return h
}

type session struct {
	PlayerID  string
	Out       chan []byte
	Events    chan []byte
	Init      protocol.InitMsg
	lastState protocol.GameStateMsg
	frames    []json.RawMessage
}

func (h *Harness) Join(username string) string {
	return h.JoinAccount(username, 0)
}

func (h *Harness) JoinAccount(username string, accountID int64) string {
	h.T.Helper()

	out := make(chan []byte, 64)
	events := make(chan []byte, 64)
	resp := make(chan world.JoinResponse, 1)
	h.W.StepOnce(DT, []world.JoinRequest{{
		Username:  username,
		AccountID: accountID,
		Out:       out,
		Events:    events,
		Resp:      resp,
	}}, nil, nil)
	jr := <-resp
	if jr.PlayerID == "" {
		h.T.Fatalf("join returned empty player id")
	}
	s := &session{PlayerID: jr.PlayerID, Out: out, Events: events, Init: jr.Init}
	h.sessions[s.PlayerID] = s
	h.drainAll()
	return s.PlayerID
}

func (h *Harness) Leave(playerID string) {
	h.T.Helper()
	h.W.StepOnce(DT, nil, []string{playerID}, nil)
	delete(h.sessions, playerID)
	h.drainAll()
}

func (h *Harness) Init() protocol.InitMsg {
	return h.sessions[h.DefaultPlayerID].Init
}

func (h *Harness) LastState() protocol.GameStateMsg {
	return h.LastStateFor(h.DefaultPlayerID)
}

func (h *Harness) LastStateFor(playerID string) protocol.GameStateMsg {
	h.T.Helper()
	s := h.sessions[playerID]
	if s == nil {
		h.T.Fatalf("unknown player id: %q", playerID)
	}
	return s.lastState
}

// FramesFor returns every non-gameState frame received since the last call.
func (h *Harness) FramesFor(playerID string) []json.RawMessage {
	h.T.Helper()
	s := h.sessions[playerID]
	if s == nil {
		h.T.Fatalf("unknown player id: %q", playerID)
	}
	out := s.frames
	s.frames = nil
	return out
}

func (h *Harness) Input(in protocol.InputMsg) protocol.GameStateMsg {
	return h.InputFor(h.DefaultPlayerID, in)
}

func (h *Harness) InputFor(playerID string, in protocol.InputMsg) protocol.GameStateMsg {
	h.T.Helper()
	in.Type = protocol.TypeInput
	return h.StepFor(playerID, world.Envelope{PlayerID: playerID, Input: &in})
}

func (h *Harness) Craft(recipeID string) protocol.GameStateMsg {
	h.T.Helper()
	return h.StepFor(h.DefaultPlayerID, world.Envelope{
		PlayerID: h.DefaultPlayerID,
		Craft:    &protocol.CraftMsg{Type: protocol.TypeCraft, RecipeID: recipeID},
	})
}

func (h *Harness) Chat(playerID, text string) {
	h.T.Helper()
	h.StepFor(playerID, world.Envelope{
		PlayerID: playerID,
		Chat:     &protocol.ChatMsg{Type: protocol.TypeChat, Text: text},
	})
}

func (h *Harness) StepFor(playerID string, env world.Envelope) protocol.GameStateMsg {
	h.T.Helper()
	h.W.StepOnce(DT, nil, nil, []world.Envelope{env})
	h.drainAll()
	return h.LastStateFor(playerID)
}

func (h *Harness) StepMulti(envs []world.Envelope) {
	h.T.Helper()
	h.W.StepOnce(DT, nil, nil, envs)
	h.drainAll()
}

func (h *Harness) StepNoop() protocol.GameStateMsg {
	h.T.Helper()
	h.W.StepOnce(DT, nil, nil, nil)
	h.drainAll()
	return h.LastState()
}

// StepSeconds advances the clock by secs using the largest allowed steps.
func (h *Harness) StepSeconds(secs float64) {
	h.T.Helper()
	for secs > 1e-9 {
		dt := min(secs, 0.25)
		h.W.StepOnce(dt, nil, nil, nil)
		secs -= dt
	}
	h.drainAll()
}

func (h *Harness) Player(playerID string) protocol.PlayerState {
	h.T.Helper()
	p, ok := h.W.DebugPlayer(playerID)
	if !ok {
		h.T.Fatalf("DebugPlayer(%q) returned false", playerID)
	}
	return p
}

func (h *Harness) SetPos(playerID string, x, y float64) {
	h.T.Helper()
	if ok := h.W.DebugSetPlayerPos(playerID, x, y); !ok {
		h.T.Fatalf("DebugSetPlayerPos returned false")
	}
}

func (h *Harness) SetInventory(playerID string, inv map[string]int) {
	h.T.Helper()
	if ok := h.W.DebugSetInventory(playerID, inv); !ok {
		h.T.Fatalf("DebugSetInventory returned false")
	}
}

func (h *Harness) SetVitals(playerID string, health, hunger float64) {
	h.T.Helper()
	if ok := h.W.DebugSetPlayerVitals(playerID, health, hunger); !ok {
		h.T.Fatalf("DebugSetPlayerVitals returned false")
	}
}

func (h *Harness) SpawnEntity(typ string, x, y float64) uint64 {
	h.T.Helper()
	id, ok := h.W.DebugSpawnEntity(typ, x, y)
	if !ok {
		h.T.Fatalf("DebugSpawnEntity(%q) returned false", typ)
	}
	return id
}

func (h *Harness) drainAll() {
	h.T.Helper()
	for _, s := range h.sessions {
		h.drainOne(s)
	}
}

func (h *Harness) drainOne(s *session) {
	h.T.Helper()
	for {
		select {
		case b, ok := <-s.Events:
			if !ok {
				h.T.Fatalf("world detached %s: event queue overflow", s.PlayerID)
			}
			s.frames = append(s.frames, json.RawMessage(b))
			continue
		default:
		}
		select {
		case b := <-s.Out:
			var gs protocol.GameStateMsg
			if err := json.Unmarshal(b, &gs); err != nil {
				h.T.Fatalf("unmarshal gameState: %v", err)
			}
			if gs.Type != protocol.TypeGameState {
				h.T.Fatalf("unexpected %q frame on the snapshot queue", gs.Type)
			}
			s.lastState = gs
			continue
		default:
		}
		return
	}
}
