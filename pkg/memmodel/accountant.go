package memmodel

import (
	"fmt"
	"sync"

	"github.com/cuemby/agentpool/pkg/types"
)

// caps holds the per-architecture utilisation bounds (§4.3's table).
var caps = map[Architecture]struct{ max, reserve float64 }{
	ArchLocalGPU:      {max: 0.85, reserve: 0.05},
	ArchUnifiedMemory: {max: 0.70, reserve: 0.20},
	ArchRemoteGPU:     {max: 0.80, reserve: 0.10},
}

// Overrides lets deployments clamp the max/reserve bounds for their
// detected architecture instead of accepting the built-in defaults.
type Overrides struct {
	Max     *float64
	Reserve *float64
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Accountant tracks fractional GPU memory reservations per
// (provider, host:port) bucket against an architecture's effective cap.
type Accountant struct {
	mu      sync.Mutex
	arch    Architecture
	max     float64
	reserve float64
	used    map[types.ReservationKey]float64
}

// New builds an Accountant for arch, applying overrides (if any) with the
// documented clamps: max in [0.10, 1.00], reserve in [0, 0.50].
func New(arch Architecture, overrides *Overrides) *Accountant {
	c := caps[arch]
	max, reserve := c.max, c.reserve

	if overrides != nil {
		if overrides.Max != nil {
			max = clamp(*overrides.Max, 0.10, 1.00)
		}
		if overrides.Reserve != nil {
			reserve = clamp(*overrides.Reserve, 0, 0.50)
		}
	}

	return &Accountant{
		arch:    arch,
		max:     max,
		reserve: reserve,
		used:    make(map[types.ReservationKey]float64),
	}
}

// Architecture returns the architecture this accountant was built for.
func (a *Accountant) Architecture() Architecture {
	return a.arch
}

// EffectiveCap is max utilisation minus the system reserve.
func (a *Accountant) EffectiveCap() float64 {
	return a.max - a.reserve
}

// capEpsilon absorbs float64 rounding in max-reserve and in summed
// fractions, so a reservation that lands exactly on the cap is admitted.
const capEpsilon = 1e-9

func reservationKey(e types.Endpoint) types.ReservationKey {
	hostPort := e.BaseURL
	if e.Server != nil && e.Server.Host != "" {
		hostPort = fmt.Sprintf("%s:%d", e.Server.Host, e.Server.Port)
	}
	return types.ReservationKey{Provider: e.Provider, HostPort: hostPort}
}

// isAccountable reports whether endpoint's provider participates in memory
// accounting at all; other providers always have capacity.
func isAccountable(p types.Provider) bool {
	return p == types.ProviderVLLM || p == types.ProviderSGLang
}

// CanUse reports whether reserving fraction more on endpoint's bucket would
// stay within the effective cap. Non-vLLM/SGLang providers always pass.
func (a *Accountant) CanUse(endpoint types.Endpoint, fraction float64) bool {
	if !isAccountable(endpoint.Provider) {
		return true
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := reservationKey(endpoint)
	return a.used[key]+fraction <= a.EffectiveCap()+capEpsilon
}

// TryReserve atomically checks and, on success, reserves fraction against
// endpoint's bucket in a single critical section, closing the
// check-then-act race CanUse followed by Add would otherwise leave open
// under concurrent admission.
func (a *Accountant) TryReserve(endpoint types.Endpoint, fraction float64) bool {
	if !isAccountable(endpoint.Provider) {
		return true
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := reservationKey(endpoint)
	if a.used[key]+fraction > a.EffectiveCap()+capEpsilon {
		return false
	}
	a.used[key] += fraction
	return true
}

// Add reserves fraction against endpoint's bucket.
func (a *Accountant) Add(endpoint types.Endpoint, fraction float64) {
	if !isAccountable(endpoint.Provider) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := reservationKey(endpoint)
	a.used[key] += fraction
}

// Subtract releases fraction from endpoint's bucket, flooring at zero and
// deleting the bucket once it empties.
func (a *Accountant) Subtract(endpoint types.Endpoint, fraction float64) {
	if !isAccountable(endpoint.Provider) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := reservationKey(endpoint)
	remaining := a.used[key] - fraction
	if remaining <= 0 {
		delete(a.used, key)
		return
	}
	a.used[key] = remaining
}

// Snapshot returns a copy of every currently non-empty reservation bucket,
// for metrics collection.
func (a *Accountant) Snapshot() map[types.ReservationKey]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[types.ReservationKey]float64, len(a.used))
	for k, v := range a.used {
		out[k] = v
	}
	return out
}

// Usage returns the currently reserved fraction for endpoint's bucket.
func (a *Accountant) Usage(endpoint types.Endpoint) float64 {
	if !isAccountable(endpoint.Provider) {
		return 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.used[reservationKey(endpoint)]
}
