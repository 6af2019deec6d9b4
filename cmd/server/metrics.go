package main

import (
	"fmt"
	"io"
	"net/http"

	persistlog "survival.io/internal/persistence/log"
	"survival.io/internal/persistence/statsdb"
	"survival.io/internal/sim/world"
	"survival.io/internal/transport/ws"
)

type metricsSource interface {
	Metrics() world.WorldMetrics
	CurrentTick() uint64
}

func metricsHandler(worldID string, w metricsSource, conns *ws.Server, store *statsdb.Store, events *persistlog.EventLogger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := w.Metrics()
		if m.Tick == 0 {
			m.Tick = w.CurrentTick()
		}
		writeWorldMetrics(rw, worldID, m)
		if conns != nil {
			writeConnMetrics(rw, conns.Stats())
		}
		if store != nil {
			writeStatsDBMetrics(rw, store.QueueStats())
		}
		if events != nil {
			writeEventLogMetrics(rw, events.Stats())
		}
	}
}

// Minimal Prometheus exposition format.
func writeWorldMetrics(rw io.Writer, worldID string, m world.WorldMetrics) {
	fmt.Fprintf(rw, "# HELP survival_world_tick Current world tick.\n")
	fmt.Fprintf(rw, "# TYPE survival_world_tick gauge\n")
	fmt.Fprintf(rw, "survival_world_tick{world=%q} %d\n", worldID, m.Tick)

	fmt.Fprintf(rw, "# HELP survival_world_players Current number of players in the world.\n")
	fmt.Fprintf(rw, "# TYPE survival_world_players gauge\n")
	fmt.Fprintf(rw, "survival_world_players{world=%q} %d\n", worldID, m.Players)

	fmt.Fprintf(rw, "# HELP survival_world_clients Current number of connected clients.\n")
	fmt.Fprintf(rw, "# TYPE survival_world_clients gauge\n")
	fmt.Fprintf(rw, "survival_world_clients{world=%q} %d\n", worldID, m.Clients)

	fmt.Fprintf(rw, "# HELP survival_world_entities Resource nodes by state.\n")
	fmt.Fprintf(rw, "# TYPE survival_world_entities gauge\n")
	fmt.Fprintf(rw, "survival_world_entities{world=%q,state=%q} %d\n", worldID, "live", m.Entities-m.DepletedEntities)
	fmt.Fprintf(rw, "survival_world_entities{world=%q,state=%q} %d\n", worldID, "depleted", m.DepletedEntities)

	fmt.Fprintf(rw, "# HELP survival_world_buildings Placed buildings.\n")
	fmt.Fprintf(rw, "# TYPE survival_world_buildings gauge\n")
	fmt.Fprintf(rw, "survival_world_buildings{world=%q} %d\n", worldID, m.Buildings)

	fmt.Fprintf(rw, "# HELP survival_world_scheduled_events Pending scheduled events.\n")
	fmt.Fprintf(rw, "# TYPE survival_world_scheduled_events gauge\n")
	fmt.Fprintf(rw, "survival_world_scheduled_events{world=%q} %d\n", worldID, m.ScheduledEvents)

	fmt.Fprintf(rw, "# HELP survival_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE survival_world_queue_depth gauge\n")
	fmt.Fprintf(rw, "survival_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(rw, "survival_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "join", m.QueueDepths.Join)
	fmt.Fprintf(rw, "survival_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "leave", m.QueueDepths.Leave)

	fmt.Fprintf(rw, "# HELP survival_world_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE survival_world_step_ms gauge\n")
	fmt.Fprintf(rw, "survival_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

	fmt.Fprintf(rw, "# HELP survival_world_sim_seconds Simulated seconds since start.\n")
	fmt.Fprintf(rw, "# TYPE survival_world_sim_seconds counter\n")
	fmt.Fprintf(rw, "survival_world_sim_seconds{world=%q} %.3f\n", worldID, m.SimSeconds)
}

func writeConnMetrics(rw io.Writer, s ws.Stats) {
	fmt.Fprintf(rw, "# HELP survival_ws_connections Open websocket sessions.\n")
	fmt.Fprintf(rw, "# TYPE survival_ws_connections gauge\n")
	fmt.Fprintf(rw, "survival_ws_connections %d\n", s.Active)

	fmt.Fprintf(rw, "# HELP survival_ws_handshakes_total Websocket handshakes by result.\n")
	fmt.Fprintf(rw, "# TYPE survival_ws_handshakes_total counter\n")
	fmt.Fprintf(rw, "survival_ws_handshakes_total{result=%q} %d\n", "accepted", s.Accepted)
	fmt.Fprintf(rw, "survival_ws_handshakes_total{result=%q} %d\n", "rejected", s.Rejected)
}

func writeStatsDBMetrics(rw io.Writer, s statsdb.QueueStats) {
	fmt.Fprintf(rw, "# HELP survival_statsdb_queue_depth Pending session deltas.\n")
	fmt.Fprintf(rw, "# TYPE survival_statsdb_queue_depth gauge\n")
	fmt.Fprintf(rw, "survival_statsdb_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP survival_statsdb_deltas_total Session deltas by outcome.\n")
	fmt.Fprintf(rw, "# TYPE survival_statsdb_deltas_total counter\n")
	fmt.Fprintf(rw, "survival_statsdb_deltas_total{outcome=%q} %d\n", "applied", s.AppliedTotal)
	fmt.Fprintf(rw, "survival_statsdb_deltas_total{outcome=%q} %d\n", "failed", s.FailTotal)
	fmt.Fprintf(rw, "survival_statsdb_deltas_total{outcome=%q} %d\n", "dropped", s.DropTotal)
}

func writeEventLogMetrics(rw io.Writer, s persistlog.EventLogStats) {
	fmt.Fprintf(rw, "# HELP survival_eventlog_queue_depth Game events waiting to be written.\n")
	fmt.Fprintf(rw, "# TYPE survival_eventlog_queue_depth gauge\n")
	fmt.Fprintf(rw, "survival_eventlog_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP survival_eventlog_events_total Game events by outcome.\n")
	fmt.Fprintf(rw, "# TYPE survival_eventlog_events_total counter\n")
	fmt.Fprintf(rw, "survival_eventlog_events_total{outcome=%q} %d\n", "written", s.WriteTotal)
	fmt.Fprintf(rw, "survival_eventlog_events_total{outcome=%q} %d\n", "failed", s.FailTotal)
	fmt.Fprintf(rw, "survival_eventlog_events_total{outcome=%q} %d\n", "dropped", s.DropTotal)
}
