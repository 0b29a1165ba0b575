package backend

import (
	"sync"

	"github.com/cuemby/agentpool/pkg/types"
)

// defaultBasePort returns the starting port for a provider's local-process
// transports when no port was requested explicitly.
func defaultBasePort(p types.Provider) int {
	if p == types.ProviderOllama {
		return 11434
	}
	return 8000
}

// PortAllocator hands out monotonically increasing ports per provider base,
// so concurrent starts for the same provider never collide on the counter
// itself (a collision against an already-bound port still surfaces as
// health-timeout — the allocator only avoids self-inflicted collisions).
type PortAllocator struct {
	mu      sync.Mutex
	next    map[int]int // base -> next offset
	overrides map[types.Provider]int
}

// NewPortAllocator builds an allocator. overrides lets callers pin an
// alternate base port for a provider (e.g. SGLang on 9000 in some
// deployments) without changing defaultBasePort.
func NewPortAllocator(overrides map[types.Provider]int) *PortAllocator {
	return &PortAllocator{
		next:      make(map[int]int),
		overrides: overrides,
	}
}

// Next returns the next port for provider, starting at its base and
// incrementing by one on every call.
func (a *PortAllocator) Next(p types.Provider) int {
	base := defaultBasePort(p)
	if a.overrides != nil {
		if ov, ok := a.overrides[p]; ok {
			base = ov
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	offset := a.next[base]
	a.next[base] = offset + 1
	return base + offset
}
