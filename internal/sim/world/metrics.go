package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Players          int `json:"players"`
	Clients          int `json:"clients"`
	Entities         int `json:"entities"`
	DepletedEntities int `json:"depleted_entities"`
	Buildings        int `json:"buildings"`
	ScheduledEvents  int `json:"scheduled_events"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS     float64 `json:"step_ms"`
	SimSeconds float64 `json:"sim_seconds"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(tick uint64, stepMS float64) {
	depleted := 0
	for _, e := range w.entities {
		if e.Depleted {
			depleted++
		}
	}
	w.metrics.Store(WorldMetrics{
		Tick:             tick,
		Players:          len(w.players),
		Clients:          len(w.clients),
		Entities:         len(w.entities),
		DepletedEntities: depleted,
		Buildings:        len(w.buildings),
		ScheduledEvents:  w.schedule.Len(),
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS:     stepMS,
		SimSeconds: w.clock,
	})
}
