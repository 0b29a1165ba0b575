// Package metrics exposes agentpool's orchestration-core state as
// Prometheus metrics: process registry occupancy (C2), memory reservation
// usage against the detected architecture's effective cap (C3), admission
// queue depth and waiter outcomes (C4), backend start/stop counters and
// health-probe latency (C1), planner strategy decisions (C5), and
// maintenance-scheduler decay/cleanup counters (C8).
//
// # Metrics reference
//
// Registry:
//
//	agentpool_process_entries_total{owner, status}
//	  Current process registry entries. owner is "main" or "subagent";
//	  status is one of starting/running/stopping/stopped.
//
// Memory accountant:
//
//	agentpool_reservation_usage{provider, host_port}
//	  Currently reserved fraction of the effective cap for one
//	  (provider, host:port) bucket.
//
//	agentpool_reservation_effective_cap
//	  The detected architecture's effective utilisation cap (max minus
//	  system reserve).
//
// Admission queue:
//
//	agentpool_admission_queue_depth
//	  Waiters currently parked across all sessions.
//
//	agentpool_admission_outcomes_total{result}
//	  Terminal waiter outcomes: admitted, cancelled, session-ended.
//
//	agentpool_admission_wait_duration_seconds
//	  Time a waiter spent parked before a terminal result.
//
// Backend driver:
//
//	agentpool_backend_starts_total{transport, outcome}
//	  Start attempts by transport (local-exec, remote-ssh-exec,
//	  local-docker, remote-docker, hosted-noop) and outcome.
//
//	agentpool_backend_start_duration_seconds{transport}
//	  Time from launch to confirmed-healthy.
//
//	agentpool_backend_stops_total{transport, outcome}
//	  Stop attempts by transport and outcome (graceful, forced).
//
//	agentpool_health_probe_duration_seconds{provider, outcome}
//	  Readiness probe poll-loop duration.
//
// Dependency planner:
//
//	agentpool_planner_decisions_total{strategy}
//	  Batch decisions: parallel, sequential, rejected-cycle.
//
// Maintenance scheduler:
//
//	agentpool_graph_decay_runs_total
//	  Completed confidence-decay runs.
//
//	agentpool_graph_cleanup_removed_total{pass}
//	  Entities/relations removed, by pass (low-confidence, old-nodes).
package metrics
