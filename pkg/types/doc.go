// Package types defines the data model shared by agentpool's orchestration
// components: endpoints and server descriptors for model-serving backends,
// subagent definitions, process registry entries, memory reservation
// keys, and dependency-planner task descriptors.
package types
