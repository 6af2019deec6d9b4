package world

import (
	"context"
	"errors"
)

// StateSummary is the admin read model of the live world.
type StateSummary struct {
	WorldID    string          `json:"world_id"`
	Tick       uint64          `json:"tick"`
	SimSeconds float64         `json:"sim_seconds"`
	Entities   map[string]int  `json:"entities"`
	Depleted   int             `json:"depleted"`
	Buildings  int             `json:"buildings"`
	Scheduled  int             `json:"scheduled"`
	Players    []PlayerSummary `json:"players"`
}

type PlayerSummary struct {
	ID           string         `json:"id"`
	Username     string         `json:"username"`
	AccountID    int64          `json:"account_id,omitempty"`
	X            float64        `json:"x"`
	Y            float64        `json:"y"`
	Health       float64        `json:"health"`
	Hunger       float64        `json:"hunger"`
	Inventory    map[string]int `json:"inventory"`
	Equipment    Equipment      `json:"equipment"`
	Kills        int            `json:"kills"`
	Deaths       int            `json:"deaths"`
	Score        int            `json:"score"`
	Invulnerable bool           `json:"invulnerable,omitempty"`
	Connected    bool           `json:"connected"`
}

type adminStateReq struct {
	Resp chan StateSummary
}

// RequestState asks the world loop goroutine for a summary.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestState(ctx context.Context) (StateSummary, error) {
	if w == nil {
		return StateSummary{}, errors.New("world state not available")
	}
	req := adminStateReq{Resp: make(chan StateSummary, 1)}
	select {
	case w.admin <- req:
	case <-ctx.Done():
		return StateSummary{}, ctx.Err()
	}
	select {
	case s := <-req.Resp:
		return s, nil
	case <-ctx.Done():
		return StateSummary{}, ctx.Err()
	}
}

func (w *World) handleAdminState(req adminStateReq) {
	if req.Resp == nil {
		return
	}
	select {
	case req.Resp <- w.summarize():
	default:
		// Client timed out; don't block the sim loop.
	}
}

func (w *World) summarize() StateSummary {
	s := StateSummary{
		WorldID:    w.cfg.ID,
		Tick:       w.tick.Load(),
		SimSeconds: w.clock,
		Entities:   map[string]int{},
		Buildings:  len(w.buildings),
		Scheduled:  w.schedule.Len(),
		Players:    []PlayerSummary{},
	}
	for _, e := range w.entities {
		if e.Depleted {
			s.Depleted++
			continue
		}
		s.Entities[e.Type]++
	}
	for _, p := range w.sortedPlayers() {
		inv := make(map[string]int, len(p.Inventory))
		for k, v := range p.Inventory {
			inv[k] = v
		}
		_, connected := w.clients[p.ID]
		s.Players = append(s.Players, PlayerSummary{
			ID:           p.ID,
			Username:     p.Username,
			AccountID:    p.AccountID,
			X:            p.Pos[0],
			Y:            p.Pos[1],
			Health:       p.Health,
			Hunger:       p.Hunger,
			Inventory:    inv,
			Equipment:    p.Equipment,
			Kills:        p.Kills,
			Deaths:       p.Deaths,
			Score:        p.Score,
			Invulnerable: p.Invulnerable,
			Connected:    connected,
		})
	}
	return s
}
