package world

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"survival.io/internal/protocol"
)

const maxUsernameLen = 24

func normalizeUsername(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "survivor"
	}
	if utf8.RuneCountInString(name) > maxUsernameLen {
		name = string([]rune(name)[:maxUsernameLen])
	}
	return name
}

func (w *World) buildInit(playerID string) protocol.InitMsg {
	t := w.cfg.Tuning
	return protocol.InitMsg{
		Type:            protocol.TypeInit,
		ProtocolVersion: protocol.Version,
		PlayerID:        playerID,
		WorldSize:       protocol.WorldSize{Width: t.World.Width, Height: t.World.Height},
		TickRateHz:      t.TickRateHz,
		ViewDistance:    t.World.ViewDistance,
		Recipes:         w.recipeViews(),
		RecipesDigest:   w.catalogs.Recipes.Digest,
	}
}

func (w *World) joinPlayer(req JoinRequest) JoinResponse {
	id := uuid.NewString()
	p := newPlayer(id, normalizeUsername(req.Username), req.AccountID, w.randomPlayerPos(), w.rules)
	w.players[id] = p
	if req.Out != nil {
		codec := req.Codec
		if codec == nil {
			codec = protocol.JSONCodec{}
		}
		w.clients[id] = &clientState{Out: req.Out, Events: req.Events, Codec: codec}
	}

	w.log.Info("player joined",
		zap.String("player", id),
		zap.String("username", p.Username),
		zap.Int64("account", p.AccountID),
		zap.Float64("x", p.Pos[0]),
		zap.Float64("y", p.Pos[1]))
	w.emit(EventJoin, id, "", map[string]any{"username": p.Username, "account_id": p.AccountID})

	return JoinResponse{PlayerID: id, Init: w.buildInit(id)}
}

func (w *World) handleJoin(req JoinRequest) {
	resp := w.joinPlayer(req)
	if req.Resp != nil {
		req.Resp <- resp
	}
}

// handleLeave removes the player from every collection before the next tick
// and hands its session totals to the stats sink.
func (w *World) handleLeave(id string) {
	p := w.players[id]
	delete(w.clients, id)
	if p == nil {
		return
	}
	delete(w.players, id)
	w.flushSession(p)
	w.emit(EventLeave, id, "", map[string]any{"kills": p.Kills, "deaths": p.Deaths, "score": p.Score})
	w.log.Info("player left", zap.String("player", id), zap.String("username", p.Username))
}

func (w *World) flushSession(p *Player) {
	if p.AccountID == 0 || w.statsSink == nil {
		return
	}
	w.statsSink.RecordSession(p.AccountID, p.statsDelta())
}

// flushSessions runs on shutdown so connected accounts keep their progress.
func (w *World) flushSessions() {
	for _, p := range w.sortedPlayers() {
		w.flushSession(p)
	}
}

func (w *World) handleEnvelope(env Envelope) {
	p := w.players[env.PlayerID]
	if p == nil {
		return
	}
	switch {
	case env.Input != nil:
		w.applyInput(p, env.Input)
	case env.Craft != nil:
		w.handleCraft(p, env.Craft.RecipeID)
	case env.Chat != nil:
		w.handleChat(p, env.Chat.Text)
	}
}
