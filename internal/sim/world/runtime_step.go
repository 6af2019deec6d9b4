package world

import (
	"math"
	"time"
)

// step advances one tick: scheduled events, then every player, then deaths,
// then one broadcast so all views share a single instant.
func (w *World) step(dt float64) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	dt = clampDt(dt, w.cfg.Tuning.MaxDtSeconds)
	w.clock += dt
	w.schedule.drain(w, w.clock)

	players := w.sortedPlayers()
	for _, p := range players {
		p.Update(dt)
	}
	for _, p := range players {
		if p.IsDead() {
			w.handleDeath(p, "")
		}
	}

	w.broadcast(nowTick)

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	nextTick := w.tick.Add(1)
	w.publishMetrics(nextTick, stepMS)
}

func clampDt(dt, maxDt float64) float64 {
	if math.IsNaN(dt) || dt < 0 {
		return 0
	}
	if dt > maxDt {
		return maxDt
	}
	return dt
}
