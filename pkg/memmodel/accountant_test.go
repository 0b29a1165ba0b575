package memmodel

import (
	"testing"

	"github.com/cuemby/agentpool/pkg/types"
	"github.com/stretchr/testify/assert"
)

func vllmEndpoint(baseURL string) types.Endpoint {
	return types.Endpoint{Provider: types.ProviderVLLM, BaseURL: baseURL, Model: "m"}
}

func TestEffectiveCap(t *testing.T) {
	assert.InDelta(t, 0.80, New(ArchLocalGPU, nil).EffectiveCap(), 1e-9)
	assert.InDelta(t, 0.50, New(ArchUnifiedMemory, nil).EffectiveCap(), 1e-9)
	assert.InDelta(t, 0.70, New(ArchRemoteGPU, nil).EffectiveCap(), 1e-9)
}

func TestOverridesClamp(t *testing.T) {
	tooHigh, tooLow := 5.0, -1.0
	a := New(ArchLocalGPU, &Overrides{Max: &tooHigh, Reserve: &tooLow})
	assert.InDelta(t, 1.00, a.max, 1e-9)
	assert.InDelta(t, 0.0, a.reserve, 1e-9)

	tooSmall := 0.01
	b := New(ArchLocalGPU, &Overrides{Max: &tooSmall})
	assert.InDelta(t, 0.10, b.max, 1e-9)
}

func TestCanUse_NonAcceleratedProviderAlwaysTrue(t *testing.T) {
	a := New(ArchUnifiedMemory, nil)
	openai := types.Endpoint{Provider: types.ProviderOpenAI, BaseURL: "https://api.openai.com"}
	a.Add(openai, 10) // no-op, not accountable
	assert.True(t, a.CanUse(openai, 999))
}

func TestCanUseAddSubtract_RoundTrip(t *testing.T) {
	a := New(ArchLocalGPU, nil) // effective cap 0.80
	e := vllmEndpoint("http://127.0.0.1:8000")

	assert.True(t, a.CanUse(e, 0.5))
	a.Add(e, 0.5)
	assert.InDelta(t, 0.5, a.Usage(e), 1e-9)

	assert.True(t, a.CanUse(e, 0.3))
	assert.False(t, a.CanUse(e, 0.31))

	a.Subtract(e, 0.5)
	assert.InDelta(t, 0.0, a.Usage(e), 1e-9)
}

func TestSubtract_FloorsAtZeroAndDeletesBucket(t *testing.T) {
	a := New(ArchLocalGPU, nil)
	e := vllmEndpoint("http://127.0.0.1:8000")

	a.Add(e, 0.2)
	a.Subtract(e, 0.9)
	assert.InDelta(t, 0.0, a.Usage(e), 1e-9)

	a.mu.Lock()
	_, exists := a.used[reservationKey(e)]
	a.mu.Unlock()
	assert.False(t, exists)
}

func TestTryReserve_BoundaryFractionExactlyAtCapIsAdmitted(t *testing.T) {
	a := New(ArchLocalGPU, nil) // effective cap 0.80
	e := vllmEndpoint("http://127.0.0.1:8000")

	assert.True(t, a.TryReserve(e, 0.80))
	assert.InDelta(t, 0.80, a.Usage(e), 1e-9)
}

func TestTryReserve_StrictlyOverCapIsRejected(t *testing.T) {
	a := New(ArchLocalGPU, nil)
	e := vllmEndpoint("http://127.0.0.1:8000")

	a.Add(e, 0.5)
	assert.False(t, a.TryReserve(e, 0.31))
	assert.InDelta(t, 0.5, a.Usage(e), 1e-9)
}

func TestSnapshot_ReturnsIndependentCopy(t *testing.T) {
	a := New(ArchLocalGPU, nil)
	e := vllmEndpoint("http://127.0.0.1:8000")
	a.Add(e, 0.4)

	snap := a.Snapshot()
	assert.InDelta(t, 0.4, snap[reservationKey(e)], 1e-9)

	snap[reservationKey(e)] = 99
	assert.InDelta(t, 0.4, a.Usage(e), 1e-9, "mutating the snapshot must not affect the accountant")
}

func TestDistinctBucketsPerHostPort(t *testing.T) {
	a := New(ArchLocalGPU, nil)
	e1 := vllmEndpoint("http://127.0.0.1:8000")
	e2 := vllmEndpoint("http://127.0.0.1:8001")

	a.Add(e1, 0.6)
	assert.InDelta(t, 0.6, a.Usage(e1), 1e-9)
	assert.InDelta(t, 0.0, a.Usage(e2), 1e-9)
}
