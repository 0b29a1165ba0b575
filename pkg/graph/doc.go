// Package graph defines the knowledge-graph memory collaborator contract
// (entities, relations, decay, cleanup) and ships a bbolt-backed reference
// implementation, plus the Maintenance Scheduler that drives it on timers.
//
// The scheduler is the only consumer in this module: nothing here performs
// entity extraction or talks to an LLM. Store is a contract other
// collaborators (out of scope) are expected to implement against.
package graph
