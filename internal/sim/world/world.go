package world

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"survival.io/internal/protocol"
	"survival.io/internal/sim/catalogs"
)

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	log      *zap.Logger
	rng      *rand.Rand
	rules    *playerRules

	tick    atomic.Uint64
	metrics atomic.Value

	// clock is simulated seconds, the sum of every clamped dt.
	clock    float64
	lastStep time.Time

	players   map[string]*Player
	clients   map[string]*clientState
	entities  map[uint64]*Entity
	buildings map[uint64]*Building
	schedule  eventQueue

	nextEntityID   uint64
	nextBuildingID uint64

	join  chan JoinRequest
	leave chan string
	inbox chan Envelope
	admin chan adminStateReq

	stop     chan struct{}
	stopOnce sync.Once

	// Optional collaborators (may be nil). Implemented in internal/persistence/*.
	eventLogger EventLogger
	statsSink   StatsSink
}

type clientState struct {
	Out    chan []byte
	Events chan []byte
	Codec  protocol.Codec
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	cfg.applyDefaults()
	if cats == nil {
		return nil, fmt.Errorf("world: nil catalogs")
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	for typ := range cfg.Tuning.Population {
		if _, ok := cats.Entities.ByType[typ]; !ok {
			return nil, fmt.Errorf("world: population references unknown entity type %q", typ)
		}
	}
	for typ, b := range cfg.Tuning.Buildings {
		for res := range b.Cost {
			if !cats.Equipment.HasResource(res) {
				return nil, fmt.Errorf("world: building %s costs unknown resource %q", typ, res)
			}
		}
	}

	w := &World{
		cfg:      cfg,
		catalogs: cats,
		log:      cfg.Logger.Named("world").With(zap.String("world", cfg.ID)),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		rules: &playerRules{
			width:         cfg.Tuning.World.Width,
			height:        cfg.Tuning.World.Height,
			tun:           cfg.Tuning.Player,
			resourceScore: cfg.Tuning.Interact.ResourceScore,
			equipment:     cats.Equipment,
		},
		players:   map[string]*Player{},
		clients:   map[string]*clientState{},
		entities:  map[uint64]*Entity{},
		buildings: map[uint64]*Building{},
		join:      make(chan JoinRequest, 64),
		leave:     make(chan string, 64),
		inbox:     make(chan Envelope, 1024),
		admin:     make(chan adminStateReq, 16),
		stop:      make(chan struct{}),
	}
	w.populate()
	w.publishMetrics(0, 0)
	return w, nil
}

func (w *World) SetEventLogger(l EventLogger) { w.eventLogger = l }
func (w *World) SetStatsSink(s StatsSink)     { w.statsSink = s }

func (w *World) Join() chan<- JoinRequest { return w.join }
func (w *World) Leave() chan<- string     { return w.leave }
func (w *World) Inbox() chan<- Envelope   { return w.inbox }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.Tuning.TickRateHz
}
