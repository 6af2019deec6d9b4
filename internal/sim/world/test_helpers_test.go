package world

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"survival.io/internal/protocol"
	"survival.io/internal/sim/catalogs"
	"survival.io/internal/sim/tuning"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// newTestWorld builds a world with no resource nodes so tests place their own.
func newTestWorld(t *testing.T, mutate func(*tuning.Tuning)) *World {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	tun := tuning.Defaults()
	tun.Population = map[string]int{}
	if mutate != nil {
		mutate(&tun)
	}
	w, err := New(WorldConfig{
		ID:     "test",
		Seed:   42,
		Tuning: tun,
		Now:    func() time.Time { return fixedNow },
	}, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return w
}

func joinTest(t *testing.T, w *World, name string) (*Player, chan []byte) {
	t.Helper()
	out := make(chan []byte, 64)
	resp := w.joinPlayer(JoinRequest{Username: name, Out: out})
	p := w.players[resp.PlayerID]
	if p == nil {
		t.Fatalf("join %s: player not registered", name)
	}
	return p, out
}

func drain(out chan []byte) [][]byte {
	var msgs [][]byte
	for {
		select {
		case b := <-out:
			msgs = append(msgs, b)
		default:
			return msgs
		}
	}
}

func messagesOfType(t *testing.T, msgs [][]byte, typ string) [][]byte {
	t.Helper()
	var outMsgs [][]byte
	for _, b := range msgs {
		base, err := protocol.DecodeBase(b)
		if err != nil {
			t.Fatalf("decode base: %v", err)
		}
		if base.Type == typ {
			outMsgs = append(outMsgs, b)
		}
	}
	return outMsgs
}

// lastGameState drains out and returns the most recent gameState.
func lastGameState(t *testing.T, out chan []byte) protocol.GameStateMsg {
	t.Helper()
	states := messagesOfType(t, drain(out), protocol.TypeGameState)
	if len(states) == 0 {
		t.Fatalf("no gameState received")
	}
	var gs protocol.GameStateMsg
	if err := json.Unmarshal(states[len(states)-1], &gs); err != nil {
		t.Fatalf("unmarshal gameState: %v", err)
	}
	return gs
}

func hasEntity(gs protocol.GameStateMsg, id uint64) bool {
	for _, e := range gs.Entities {
		if e.ID == id {
			return true
		}
	}
	return false
}

func hasPlayer(gs protocol.GameStateMsg, id string) bool {
	for _, p := range gs.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}

type fakeSink struct {
	mu     sync.Mutex
	deltas map[int64][]StatsDelta
}

func (s *fakeSink) RecordSession(accountID int64, d StatsDelta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deltas == nil {
		s.deltas = map[int64][]StatsDelta{}
	}
	s.deltas[accountID] = append(s.deltas[accountID], d)
}

func (s *fakeSink) get(accountID int64) []StatsDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StatsDelta(nil), s.deltas[accountID]...)
}

type memEvents struct {
	events []GameEvent
}

func (m *memEvents) WriteEvent(ev GameEvent) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *memEvents) kinds() []string {
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Kind)
	}
	return out
}
