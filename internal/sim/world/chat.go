package world

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-gl/mathgl/mgl64"

	"survival.io/internal/protocol"
	"survival.io/internal/sim/world/logic/mathx"
)

func (w *World) handleChat(p *Player, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if limit := w.cfg.Tuning.Chat.MaxLen; limit > 0 && utf8.RuneCountInString(text) > limit {
		text = string([]rune(text)[:limit])
	}
	if strings.HasPrefix(text, "/") {
		if w.cfg.Tuning.Chat.DebugCommands {
			w.handleCommand(p, text)
		}
		return
	}
	c := w.cfg.Tuning.Chat
	if !p.chatWindow.Allow(w.tick.Load(), uint64(c.RateWindowTicks), c.RateMax) {
		w.sendTo(p.ID, protocol.ServerMsg{Type: protocol.TypeMessage, Text: "You are sending messages too fast"})
		return
	}
	w.sendAll(protocol.ChatBroadcastMsg{
		Type:      protocol.TypeChat,
		Username:  p.Username,
		Message:   text,
		Timestamp: w.cfg.Now().UnixMilli(),
	})
}

// handleCommand runs a debug slash command. Malformed arguments are ignored.
func (w *World) handleCommand(p *Player, line string) {
	args := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(args) == 0 {
		return
	}
	cmd := strings.ToLower(args[0])
	reply := ""

	switch cmd {
	case "god":
		p.Invulnerable = !p.Invulnerable
		reply = "God mode: OFF"
		if p.Invulnerable {
			reply = "God mode: ON"
		}
	case "speed":
		if len(args) < 2 {
			return
		}
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil || !mathx.Finite(v) || v < 0 {
			return
		}
		p.Speed = v
		reply = fmt.Sprintf("Speed set to %g", v)
	case "resources":
		if len(args) < 3 {
			return
		}
		kind := args[1]
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return
		}
		if _, ok := p.Inventory[kind]; !ok {
			return
		}
		p.Inventory[kind] = max(0, p.Inventory[kind]+n)
		reply = fmt.Sprintf("Added %d %s", n, kind)
	case "tp":
		if len(args) < 3 {
			return
		}
		x, errX := strconv.ParseFloat(args[1], 64)
		y, errY := strconv.ParseFloat(args[2], 64)
		pos := mgl64.Vec2{x, y}
		if errX != nil || errY != nil || !mathx.FiniteVec(pos) {
			return
		}
		wt := w.cfg.Tuning.World
		p.Pos = mathx.Inset(pos, wt.Width, wt.Height, p.Size)
		reply = fmt.Sprintf("Teleported to (%g, %g)", p.Pos[0], p.Pos[1])
	case "cleardata":
		if p.AccountID == 0 || w.statsSink == nil {
			return
		}
		w.statsSink.RecordSession(p.AccountID, StatsDelta{Kills: -p.Kills, Deaths: -p.Deaths})
		reply = "Data cleared"
	default:
		return
	}

	w.emit(EventCommand, p.ID, "", map[string]any{"command": cmd, "args": args[1:]})
	w.sendTo(p.ID, protocol.ServerMsg{Type: protocol.TypeMessage, Text: reply})
}
