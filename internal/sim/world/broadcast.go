package world

import (
	"sort"

	"go.uber.org/zap"

	"survival.io/internal/protocol"
	"survival.io/internal/sim/world/logic/mathx"
)

// broadcast sends every connected player its own view of the current state.
// An object is visible when it is strictly closer than the view distance;
// the viewer always sees itself.
func (w *World) broadcast(nowTick uint64) {
	if len(w.clients) == 0 {
		return
	}
	players := w.sortedPlayers()
	entities := w.sortedEntities()
	buildings := w.sortedBuildings()
	ts := w.cfg.Now().UnixMilli()

	for _, viewer := range players {
		cl := w.clients[viewer.ID]
		if cl == nil {
			continue
		}
		msg := w.buildGameState(viewer, players, entities, buildings, nowTick, ts)
		b, err := cl.Codec.Marshal(msg)
		if err != nil {
			w.log.Warn("encode gameState", zap.String("player", viewer.ID), zap.Error(err))
			continue
		}
		sendLatest(cl.Out, b)
	}
}

func (w *World) buildGameState(viewer *Player, players []*Player, entities []*Entity, buildings []*Building, nowTick uint64, ts int64) protocol.GameStateMsg {
	view := w.cfg.Tuning.World.ViewDistance
	msg := protocol.GameStateMsg{
		Type:      protocol.TypeGameState,
		Tick:      nowTick,
		Players:   []protocol.PlayerState{},
		Entities:  []protocol.EntityState{},
		Buildings: []protocol.BuildingState{},
		Timestamp: ts,
	}
	for _, o := range players {
		if o == viewer || mathx.Dist(viewer.Pos, o.Pos) < view {
			msg.Players = append(msg.Players, playerState(o))
		}
	}
	for _, e := range entities {
		if e.Depleted || mathx.Dist(viewer.Pos, e.Pos) >= view {
			continue
		}
		msg.Entities = append(msg.Entities, protocol.EntityState{
			ID:        e.ID,
			Type:      e.Type,
			X:         e.Pos[0],
			Y:         e.Pos[1],
			Size:      e.Size,
			Health:    e.Health,
			MaxHealth: e.MaxHealth,
			Color:     e.Color,
		})
	}
	for _, b := range buildings {
		if mathx.Dist(viewer.Pos, b.Pos) >= view {
			continue
		}
		msg.Buildings = append(msg.Buildings, protocol.BuildingState{
			ID:      b.ID,
			Type:    b.Type,
			X:       b.Pos[0],
			Y:       b.Pos[1],
			Width:   b.Width,
			Height:  b.Height,
			OwnerID: b.OwnerID,
		})
	}
	return msg
}

func playerState(p *Player) protocol.PlayerState {
	inv := make(map[string]int, len(p.Inventory))
	for k, v := range p.Inventory {
		inv[k] = v
	}
	return protocol.PlayerState{
		ID:        p.ID,
		Username:  p.Username,
		X:         p.Pos[0],
		Y:         p.Pos[1],
		Size:      p.Size,
		Health:    p.Health,
		MaxHealth: p.MaxHealth,
		Hunger:    p.Hunger,
		MaxHunger: p.MaxHunger,
		Inventory: inv,
		Equipment: protocol.EquipmentState{
			Tool:   p.Equipment.Tool,
			Weapon: p.Equipment.Weapon,
			Armor:  p.Equipment.Armor,
		},
		Kills: p.Kills,
		Score: p.Score,
	}
}

func (w *World) sortedPlayers() []*Player {
	out := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) sortedEntities() []*Entity {
	out := make([]*Entity, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) sortedBuildings() []*Building {
	out := make([]*Building, 0, len(w.buildings))
	for _, b := range w.buildings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// sendTo encodes msg for one connection. Unknown or detached ids are ignored.
func (w *World) sendTo(playerID string, msg any) {
	cl := w.clients[playerID]
	if cl == nil {
		return
	}
	b, err := cl.Codec.Marshal(msg)
	if err != nil {
		w.log.Warn("encode message", zap.String("player", playerID), zap.Error(err))
		return
	}
	w.sendEvent(playerID, cl, b)
}

// sendAll encodes msg once per codec and fans it out to every connection.
func (w *World) sendAll(msg any) {
	encoded := map[string][]byte{}
	for id, cl := range w.clients {
		b, ok := encoded[cl.Codec.Name()]
		if !ok {
			var err error
			b, err = cl.Codec.Marshal(msg)
			if err != nil {
				w.log.Warn("encode broadcast", zap.String("player", id), zap.Error(err))
				continue
			}
			encoded[cl.Codec.Name()] = b
		}
		w.sendEvent(id, cl, b)
	}
}

// sendEvent queues a one-shot frame. A connection whose event queue is full
// is too far behind to trust: it is detached and its queue closed so the
// transport hangs up. The player stays until the transport's leave arrives.
func (w *World) sendEvent(playerID string, cl *clientState, b []byte) {
	if cl.Events == nil {
		sendLatest(cl.Out, b)
		return
	}
	select {
	case cl.Events <- b:
	default:
		w.log.Warn("event queue full; detaching client", zap.String("player", playerID))
		delete(w.clients, playerID)
		close(cl.Events)
	}
}

// sendLatest never blocks: when the queue is full the oldest frame is dropped.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
