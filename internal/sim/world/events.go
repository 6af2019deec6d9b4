package world

import "go.uber.org/zap"

func (w *World) emit(kind, actor, target string, data map[string]any) {
	if w.eventLogger == nil {
		return
	}
	ev := GameEvent{
		Tick:   w.tick.Load(),
		Time:   w.cfg.Now().UnixMilli(),
		World:  w.cfg.ID,
		Kind:   kind,
		Actor:  actor,
		Target: target,
		Data:   data,
	}
	if err := w.eventLogger.WriteEvent(ev); err != nil {
		w.log.Warn("event log write failed", zap.String("kind", kind), zap.Error(err))
	}
}
