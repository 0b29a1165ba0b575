package metrics

import (
	"time"

	"github.com/cuemby/agentpool/pkg/admission"
	"github.com/cuemby/agentpool/pkg/memmodel"
	"github.com/cuemby/agentpool/pkg/registry"
)

// Collector periodically samples C2 (registry), C3 (accountant) and C4
// (admission queue depth) state into the gauges above.
type Collector struct {
	registry   *registry.Registry
	accountant *memmodel.Accountant
	admission  *admission.Queue
	stopCh     chan struct{}
}

// NewCollector builds a Collector over the coordinator's shared registry,
// accountant, and admission queue.
func NewCollector(reg *registry.Registry, acc *memmodel.Accountant, adm *admission.Queue) *Collector {
	return &Collector{
		registry:   reg,
		accountant: acc,
		admission:  adm,
		stopCh:     make(chan struct{}),
	}
}

// Start begins sampling on a 15s interval, collecting once immediately.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the sampling loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectRegistryMetrics()
	c.collectReservationMetrics()
	c.collectAdmissionMetrics()
}

func (c *Collector) collectRegistryMetrics() {
	entries := c.registry.ListAll()

	counts := make(map[string]map[string]int)
	for _, e := range entries {
		owner := string(e.Owner)
		if counts[owner] == nil {
			counts[owner] = make(map[string]int)
		}
		counts[owner][string(e.Status)]++
	}

	for owner, byStatus := range counts {
		for status, n := range byStatus {
			ProcessEntriesTotal.WithLabelValues(owner, status).Set(float64(n))
		}
	}
}

func (c *Collector) collectReservationMetrics() {
	ReservationEffectiveCap.Set(c.accountant.EffectiveCap())

	for key, used := range c.accountant.Snapshot() {
		ReservationUsage.WithLabelValues(string(key.Provider), key.HostPort).Set(used)
	}
}

func (c *Collector) collectAdmissionMetrics() {
	AdmissionQueueDepth.Set(float64(c.admission.Len()))
}
