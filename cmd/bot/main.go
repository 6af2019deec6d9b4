package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"survival.io/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:3000/v1/ws", "ws url")
		name     = flag.String("name", "bot", "username prefix")
		encoding = flag.String("encoding", protocol.EncodingJSON, "server frame encoding: json or msgpack")
		n        = flag.Int("n", 1, "number of bots")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < *n; i++ {
		username := *name
		if *n > 1 {
			username = fmt.Sprintf("%s%d", *name, i+1)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runBot(ctx, *url, username, *encoding, logger.With(zap.String("bot", username))); err != nil {
				logger.Warn("bot stopped", zap.String("bot", username), zap.Error(err))
			}
		}()
	}
	wg.Wait()
}

func runBot(ctx context.Context, url, username, encoding string, logger *zap.Logger) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	join := protocol.JoinMsg{
		Type:            protocol.TypeJoin,
		ProtocolVersion: protocol.Version,
		Username:        username,
		Encoding:        encoding,
		MaxQueue:        8,
	}
	if err := conn.WriteJSON(join); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	codec := protocol.CodecFor(encoding)
	b := &brain{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		typ, err := protocol.DecodeType(codec, msg)
		if err != nil {
			continue
		}
		switch typ {
		case protocol.TypeInit:
			var init protocol.InitMsg
			if err := codec.Unmarshal(msg, &init); err != nil {
				continue
			}
			b.playerID = init.PlayerID
			b.recipes = init.Recipes
			logger.Info("joined",
				zap.String("player_id", init.PlayerID),
				zap.Int("tick_rate_hz", init.TickRateHz),
				zap.Int("recipes", len(init.Recipes)))

		case protocol.TypeGameState:
			var gs protocol.GameStateMsg
			if err := codec.Unmarshal(msg, &gs); err != nil {
				continue
			}
			for _, out := range b.decide(&gs) {
				if err := conn.WriteJSON(out); err != nil {
					return err
				}
			}

		case protocol.TypeCraftResult:
			var cr protocol.CraftResultMsg
			if err := codec.Unmarshal(msg, &cr); err == nil && cr.Success {
				logger.Info("crafted", zap.String("item", cr.Item))
			}

		case protocol.TypeRespawn:
			logger.Info("died and respawned")
		}
	}
}
