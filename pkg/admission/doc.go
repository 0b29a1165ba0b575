// Package admission parks subagent launches that cannot currently run
// because their model key is occupied or their memory reservation would
// exceed the effective cap, releasing them FIFO-per-requester as slots
// free up.
package admission
