package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"survival.io/internal/protocol"
	"survival.io/internal/sim/world"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	maxMessageBytes  = 16 * 1024
	maxQueue         = 64

	// eventQueue bounds undelivered one-shot frames per connection. A client
	// that falls this far behind is disconnected by the world.
	eventQueue = 64
)

// World is the part of the simulation the websocket layer talks to.
type World interface {
	Join() chan<- world.JoinRequest
	Leave() chan<- string
	Inbox() chan<- world.Envelope
}

type Server struct {
	world World
	log   *zap.Logger

	// DefaultQueue is the per-connection outbound queue when the client does
	// not ask for one.
	DefaultQueue int
	// HandshakeTimeout bounds the join exchange and every hand-off to the
	// world during teardown.
	HandshakeTimeout time.Duration

	upgrader websocket.Upgrader

	connLock deadlock.Mutex
	conns    map[string]*websocket.Conn

	accepted atomic.Uint64
	rejected atomic.Uint64
}

// Stats is a snapshot of connection counters for /metrics.
type Stats struct {
	Active   int
	Accepted uint64
	Rejected uint64
}

func NewServer(w World, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		world:            w,
		log:              logger.Named("ws"),
		DefaultQueue:     8,
		HandshakeTimeout: handshakeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		conns: map[string]*websocket.Conn{},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxMessageBytes)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		playerID, q, codec := s.handshake(ctx, conn)
		if playerID == "" {
			s.rejected.Add(1)
			return
		}
		s.accepted.Add(1)
		s.register(playerID, conn)
		log := s.log.With(zap.String("player", playerID), zap.String("encoding", codec.Name()))
		log.Debug("connected", zap.String("remote", r.RemoteAddr))

		frameType := websocket.TextMessage
		if codec.Binary() {
			frameType = websocket.BinaryMessage
		}

		// Writer goroutine.
		go func() {
			defer cancel()
			write := func(b []byte) bool {
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(frameType, b); err != nil {
					_ = conn.Close()
					return false
				}
				return true
			}
			overflow := func() {
				log.Info("dropped by world: event queue overflow")
				closeWith(conn, websocket.ClosePolicyViolation, "too slow")
				_ = conn.Close()
			}
			for {
				// One-shot frames go out ahead of queued snapshots.
				select {
				case b, ok := <-q.events:
					if !ok {
						overflow()
						return
					}
					if !write(b) {
						return
					}
					continue
				default:
				}
				select {
				case <-ctx.Done():
					return
				case b, ok := <-q.events:
					if !ok {
						overflow()
						return
					}
					if !write(b) {
						return
					}
				case b, ok := <-q.out:
					if !ok {
						return
					}
					if !write(b) {
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			env, ok := decodeEnvelope(playerID, msg)
			if !ok {
				continue
			}
			select {
			case s.world.Inbox() <- env:
			case <-ctx.Done():
			}
		}

		// Cleanup.
		s.unregister(playerID)
		if !s.leave(playerID) {
			log.Warn("leave dropped: world not accepting")
		}
		log.Debug("disconnected")
	}
}

// decodeEnvelope turns one client frame into a world envelope. Client frames
// are always JSON; unknown or malformed frames are ignored.
func decodeEnvelope(playerID string, msg []byte) (world.Envelope, bool) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return world.Envelope{}, false
	}
	env := world.Envelope{PlayerID: playerID}
	switch base.Type {
	case protocol.TypeInput:
		var in protocol.InputMsg
		if err := json.Unmarshal(msg, &in); err != nil {
			return world.Envelope{}, false
		}
		env.Input = &in
	case protocol.TypeCraft:
		var c protocol.CraftMsg
		if err := json.Unmarshal(msg, &c); err != nil || c.RecipeID == "" {
			return world.Envelope{}, false
		}
		env.Craft = &c
	case protocol.TypeChat:
		var c protocol.ChatMsg
		if err := json.Unmarshal(msg, &c); err != nil {
			return world.Envelope{}, false
		}
		env.Chat = &c
	default:
		return world.Envelope{}, false
	}
	return env, true
}

// queues are the two outbound channels of one connection.
type queues struct {
	out    chan []byte // gameState, drop-oldest
	events chan []byte // one-shot frames, never dropped
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (playerID string, q queues, codec protocol.Codec) {
	_ = conn.SetReadDeadline(time.Now().Add(s.HandshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", queues{}, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeJoin {
		closeWith(conn, websocket.ClosePolicyViolation, "expected join")
		return "", queues{}, nil
	}
	var join protocol.JoinMsg
	if err := json.Unmarshal(msg, &join); err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "bad join")
		return "", queues{}, nil
	}
	if join.ProtocolVersion != "" && join.ProtocolVersion != protocol.Version {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return "", queues{}, nil
	}

	maxQ := join.MaxQueue
	if maxQ <= 0 {
		maxQ = s.DefaultQueue
	}
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > maxQueue {
		maxQ = maxQueue
	}
	q = queues{out: make(chan []byte, maxQ), events: make(chan []byte, eventQueue)}
	codec = protocol.CodecFor(join.Encoding)

	respCh := make(chan world.JoinResponse, 1)
	joinCtx, cancel := context.WithTimeout(ctx, s.HandshakeTimeout)
	defer cancel()
	select {
	case s.world.Join() <- world.JoinRequest{
		Username:  join.Username,
		AccountID: join.AccountID,
		Out:       q.out,
		Events:    q.events,
		Codec:     codec,
		Resp:      respCh,
	}:
	case <-joinCtx.Done():
		closeWith(conn, websocket.CloseTryAgainLater, "world busy")
		return "", queues{}, nil
	}
	var resp world.JoinResponse
	select {
	case resp = <-respCh:
	case <-joinCtx.Done():
		// The join may still land; make sure it does not linger.
		go func() {
			select {
			case r := <-respCh:
				if r.PlayerID != "" {
					s.leave(r.PlayerID)
				}
			case <-time.After(s.HandshakeTimeout):
				s.log.Warn("join reply never arrived")
			}
		}()
		closeWith(conn, websocket.CloseTryAgainLater, "world busy")
		return "", queues{}, nil
	}

	// Init goes out before the writer starts so it is always the first frame.
	b, err := codec.Marshal(resp.Init)
	if err == nil {
		frameType := websocket.TextMessage
		if codec.Binary() {
			frameType = websocket.BinaryMessage
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err = conn.WriteMessage(frameType, b)
	}
	if err != nil {
		s.leave(resp.PlayerID)
		return "", queues{}, nil
	}
	return resp.PlayerID, q, codec
}

// leave hands id to the world, giving up after HandshakeTimeout.
func (s *Server) leave(id string) bool {
	select {
	case s.world.Leave() <- id:
		return true
	case <-time.After(s.HandshakeTimeout):
		return false
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func (s *Server) register(id string, conn *websocket.Conn) {
	s.connLock.Lock()
	defer s.connLock.Unlock()
	s.conns[id] = conn
}

func (s *Server) unregister(id string) {
	s.connLock.Lock()
	defer s.connLock.Unlock()
	delete(s.conns, id)
}

func (s *Server) Stats() Stats {
	s.connLock.Lock()
	n := len(s.conns)
	s.connLock.Unlock()
	return Stats{Active: n, Accepted: s.accepted.Load(), Rejected: s.rejected.Load()}
}

// CloseAll sends a going-away close to every connection. Reader loops then
// exit and each session leaves the world.
func (s *Server) CloseAll() {
	s.connLock.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.connLock.Unlock()

	for _, c := range conns {
		closeWith(c, websocket.CloseGoingAway, "server shutting down")
		_ = c.Close()
	}
}
