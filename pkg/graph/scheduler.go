package graph

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/agentpool/pkg/metrics"
	"github.com/rs/zerolog"
)

const (
	// minDecayInterval caps the decay tick at once per day even for a very
	// short configured half-life, per the "no more than once per day" bound.
	minDecayInterval = 24 * time.Hour
	// decayRunsPerHalfLife caps decay runs at 10 per half-life.
	decayRunsPerHalfLife = 10

	// defaultCleanupInterval is used when SchedulerConfig leaves
	// CleanupInterval unset.
	defaultCleanupInterval = 24 * time.Hour
	// defaultLowConfidenceThreshold is used when SchedulerConfig leaves
	// LowConfidenceThreshold unset.
	defaultLowConfidenceThreshold = 0.05
	// defaultMaxNodeAge is used when SchedulerConfig leaves MaxNodeAge unset.
	defaultMaxNodeAge = 90 * 24 * time.Hour
)

// SchedulerConfig tunes the Maintenance Scheduler's timers and thresholds.
type SchedulerConfig struct {
	// HalfLife is the confidence decay half-life. Required; the scheduler
	// derives its decay tick interval from it.
	HalfLife time.Duration

	// CleanupInterval is how often CleanupLowConfidence and
	// CleanupOldNodes run. Defaults to daily.
	CleanupInterval time.Duration
	// LowConfidenceThreshold is passed to CleanupLowConfidence. Defaults
	// to 0.05.
	LowConfidenceThreshold float64
	// MaxNodeAge is passed to CleanupOldNodes. Defaults to 90 days.
	MaxNodeAge time.Duration
}

func (c SchedulerConfig) decayInterval() time.Duration {
	interval := c.HalfLife / decayRunsPerHalfLife
	if interval < minDecayInterval {
		interval = minDecayInterval
	}
	return interval
}

func (c SchedulerConfig) cleanupInterval() time.Duration {
	if c.CleanupInterval > 0 {
		return c.CleanupInterval
	}
	return defaultCleanupInterval
}

func (c SchedulerConfig) lowConfidenceThreshold() float64 {
	if c.LowConfidenceThreshold > 0 {
		return c.LowConfidenceThreshold
	}
	return defaultLowConfidenceThreshold
}

func (c SchedulerConfig) maxNodeAge() time.Duration {
	if c.MaxNodeAge > 0 {
		return c.MaxNodeAge
	}
	return defaultMaxNodeAge
}

// Scheduler drives a Store's decay and cleanup operations on independent
// timers. A run in flight is never overlapped by its own next tick: if
// DecayConfidence or the cleanup pass is still running when the next tick
// fires, that tick is skipped rather than queued.
type Scheduler struct {
	store  Store
	cfg    SchedulerConfig
	logger zerolog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup

	decaying atomic.Bool
	cleaning atomic.Bool
}

// NewScheduler builds a Scheduler over store with cfg's timers.
func NewScheduler(store Store, cfg SchedulerConfig, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start launches the decay and cleanup loops in the background.
func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.runDecayLoop()
	go s.runCleanupLoop()
}

// Stop signals both loops to exit and waits for them to return.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) runDecayLoop() {
	defer s.wg.Done()

	interval := s.cfg.decayInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Dur("half_life", s.cfg.HalfLife).Msg("decay loop started")

	for {
		select {
		case <-ticker.C:
			s.runDecay()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) runDecay() {
	if !s.decaying.CompareAndSwap(false, true) {
		s.logger.Warn().Msg("decay run skipped: previous run still in flight")
		return
	}
	defer s.decaying.Store(false)

	if err := s.store.DecayConfidence(s.cfg.HalfLife); err != nil {
		s.logger.Error().Err(err).Msg("decay run failed")
		return
	}
	metrics.GraphDecayRunsTotal.Inc()
}

func (s *Scheduler) runCleanupLoop() {
	defer s.wg.Done()

	interval := s.cfg.cleanupInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("cleanup loop started")

	for {
		select {
		case <-ticker.C:
			s.runCleanup()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) runCleanup() {
	if !s.cleaning.CompareAndSwap(false, true) {
		s.logger.Warn().Msg("cleanup run skipped: previous run still in flight")
		return
	}
	defer s.cleaning.Store(false)

	threshold := s.cfg.lowConfidenceThreshold()
	n, err := s.store.CleanupLowConfidence(threshold)
	if err != nil {
		s.logger.Error().Err(err).Msg("low-confidence cleanup failed")
	} else {
		metrics.GraphCleanupRemovedTotal.WithLabelValues("low-confidence").Add(float64(n))
		if n > 0 {
			s.logger.Info().Int("removed", n).Float64("threshold", threshold).Msg("low-confidence cleanup")
		}
	}

	maxAge := s.cfg.maxNodeAge()
	n, err = s.store.CleanupOldNodes(maxAge)
	if err != nil {
		s.logger.Error().Err(err).Msg("old-node cleanup failed")
	} else {
		metrics.GraphCleanupRemovedTotal.WithLabelValues("old-nodes").Add(float64(n))
		if n > 0 {
			s.logger.Info().Int("removed", n).Dur("max_age", maxAge).Msg("old-node cleanup")
		}
	}
}
