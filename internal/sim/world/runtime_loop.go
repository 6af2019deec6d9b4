package world

import (
	"context"
	"time"
)

// Run owns the world until ctx is cancelled or Stop is called. Joins, leaves
// and client messages are applied on arrival; the ticker advances the
// simulation and broadcasts.
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Tuning.TickInterval())
	defer ticker.Stop()
	defer w.flushSessions()

	w.lastStep = w.cfg.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			w.handleJoin(req)
		case id := <-w.leave:
			w.handleLeave(id)
		case env := <-w.inbox:
			w.handleEnvelope(env)
		case req := <-w.admin:
			w.handleAdminState(req)
		case <-ticker.C:
			now := w.cfg.Now()
			dt := now.Sub(w.lastStep).Seconds()
			w.lastStep = now
			w.step(dt)
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// StepOnce applies joins, leaves and envelopes in that order, then advances
// one tick by dt seconds. It must not be used while Run is active; it exists
// for deterministic tests and tools.
func (w *World) StepOnce(dt float64, joins []JoinRequest, leaves []string, envs []Envelope) uint64 {
	for _, req := range joins {
		w.handleJoin(req)
	}
	for _, id := range leaves {
		w.handleLeave(id)
	}
	for _, env := range envs {
		w.handleEnvelope(env)
	}
	tick := w.tick.Load()
	w.step(dt)
	return tick
}
