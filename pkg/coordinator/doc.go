// Package coordinator implements the subagent orchestration core's public
// entry points: starting and stopping main and subagent backends, driving
// the double-checked admission path across the registry, memory
// accountant, and admission queue, and dispatching launches to the backend
// driver.
package coordinator
