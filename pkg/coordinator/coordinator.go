package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/agentpool/pkg/admission"
	"github.com/cuemby/agentpool/pkg/backend"
	"github.com/cuemby/agentpool/pkg/log"
	"github.com/cuemby/agentpool/pkg/memmodel"
	"github.com/cuemby/agentpool/pkg/metrics"
	"github.com/cuemby/agentpool/pkg/registry"
	"github.com/cuemby/agentpool/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// backendDispatcher is the subset of *backend.Dispatcher the coordinator
// depends on, narrowed to an interface so tests can supply a fake driver
// set without spinning up real processes.
type backendDispatcher interface {
	Start(ctx context.Context, entry *types.ProcessEntry, healthTimeout time.Duration) (string, error)
	Stop(ctx context.Context, entry *types.ProcessEntry, shutdownTimeout time.Duration) error
}

// Config wires the coordinator to its collaborators.
type Config struct {
	Registry   *registry.Registry
	Accountant *memmodel.Accountant
	Admission  *admission.Queue
	Backend    backendDispatcher
	Log        zerolog.Logger

	// HealthTimeout bounds C1's readiness probe loop on every start.
	HealthTimeout time.Duration
	// ShutdownTimeout bounds how long a graceful stop waits before
	// escalating to a forcible terminate.
	ShutdownTimeout time.Duration
}

type subagentMeta struct {
	sessionID        string
	unloadDelay      time.Duration
	isPersistent     bool
	reservedFraction float64
}

// Coordinator is the subagent orchestration core's public entry point: it
// drives the double-checked admission path across the registry, memory
// accountant, and admission queue, and dispatches launches to the backend
// driver.
type Coordinator struct {
	log             zerolog.Logger
	registry        *registry.Registry
	accountant      *memmodel.Accountant
	admission       *admission.Queue
	backend         backendDispatcher
	healthTimeout   time.Duration
	shutdownTimeout time.Duration

	metaMu sync.Mutex
	meta   map[string]*subagentMeta

	delayedMu sync.Mutex
	delayed   map[string]*time.Timer
}

// New builds a Coordinator from cfg, defaulting unset timeouts.
func New(cfg Config) *Coordinator {
	healthTimeout := cfg.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = 180 * time.Second
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = backend.DefaultShutdownTimeout
	}

	return &Coordinator{
		log:             cfg.Log,
		registry:        cfg.Registry,
		accountant:      cfg.Accountant,
		admission:       cfg.Admission,
		backend:         cfg.Backend,
		healthTimeout:   healthTimeout,
		shutdownTimeout: shutdownTimeout,
		meta:            make(map[string]*subagentMeta),
		delayed:         make(map[string]*time.Timer),
	}
}

// StartMainBackend starts (or returns the already-running) backend for a
// main-owned endpoint. The resulting entry is persistent: only a forced
// stopAll may terminate it.
func (c *Coordinator) StartMainBackend(ctx context.Context, endpoint types.Endpoint) (string, error) {
	key := types.MainKey(endpoint.ModelKey())

	if existing := c.registry.Get(key); existing != nil && existing.Status == types.StatusRunning {
		return existing.BaseURL, nil
	}

	c.registry.AcquireStartLock(key)
	defer c.registry.ReleaseStartLock(key)

	if existing := c.registry.Get(key); existing != nil && existing.Status == types.StatusRunning {
		return existing.BaseURL, nil
	}

	entry := &types.ProcessEntry{
		Key:          key,
		Endpoint:     endpoint,
		Transport:    transportFor(endpoint),
		Owner:        types.OwnerMain,
		IsPersistent: true,
		Status:       types.StatusStarting,
		StartedAt:    time.Now(),
	}
	if err := c.registry.Put(key, entry); err != nil {
		return "", fmt.Errorf("coordinator: register main entry: %w", err)
	}

	baseURL, err := c.backend.Start(ctx, entry, c.healthTimeout)
	if err != nil {
		c.registry.Remove(key)
		log.WithRegistryKey(c.log, key).Error().Err(err).Msg("main backend start failed")
		return "", err
	}

	entry.Status = types.StatusRunning
	entry.BaseURL = baseURL
	if err := c.registry.Put(key, entry); err != nil {
		return "", fmt.Errorf("coordinator: mark main entry running: %w", err)
	}

	log.WithRegistryKey(c.log, key).Info().Str("base_url", baseURL).Msg("main backend running")
	return baseURL, nil
}

// StartSubagentBackendRequest carries the inputs startSubagentBackend needs
// beyond the bare runId/label/endpoint triple the public contract names:
// the owning session (for admission fairness) and the definition's
// behavior policy (autoLoad, persistence, the memory fraction to reserve).
type StartSubagentBackendRequest struct {
	RunID            string
	Label            string
	SessionID        string
	Endpoint         types.Endpoint
	ReservedFraction float64
	AutoLoad         bool
	Persistent       bool
	UnloadDelayMs    int
}

// StartSubagentBackend runs the critical start-path ordering: lookup,
// per-key lock with double-checked admission, memory reservation (blocking
// in the admission queue if necessary), C1 start, and registry insertion
// with rollback on failure.
func (c *Coordinator) StartSubagentBackend(ctx context.Context, req StartSubagentBackendRequest) (string, error) {
	if !req.Endpoint.Provider.RequiresLocalProcess() {
		return req.Endpoint.BaseURL, nil
	}
	if !req.AutoLoad {
		return "", nil
	}

	key := types.SubagentKey(req.RunID)

	if existing := c.registry.Get(key); existing != nil && existing.Status == types.StatusRunning {
		return existing.BaseURL, nil
	}

	c.registry.AcquireStartLock(key)
	defer c.registry.ReleaseStartLock(key)

	if existing := c.registry.Get(key); existing != nil && existing.Status == types.StatusRunning {
		return existing.BaseURL, nil
	}

	if err := c.admitOrWait(ctx, req.SessionID, req.RunID, req.Endpoint, req.ReservedFraction); err != nil {
		return "", err
	}

	entry := &types.ProcessEntry{
		Key:          key,
		Endpoint:     req.Endpoint,
		Transport:    transportFor(req.Endpoint),
		Owner:        types.OwnerSubagent,
		IsPersistent: req.Persistent,
		Status:       types.StatusStarting,
		StartedAt:    time.Now(),
	}
	if err := c.registry.Put(key, entry); err != nil {
		c.accountant.Subtract(req.Endpoint, req.ReservedFraction)
		return "", fmt.Errorf("coordinator: register subagent entry: %w", err)
	}

	c.metaMu.Lock()
	c.meta[req.RunID] = &subagentMeta{
		sessionID:        req.SessionID,
		unloadDelay:      time.Duration(req.UnloadDelayMs) * time.Millisecond,
		isPersistent:     req.Persistent,
		reservedFraction: req.ReservedFraction,
	}
	c.metaMu.Unlock()

	baseURL, err := c.backend.Start(ctx, entry, c.healthTimeout)
	if err != nil {
		c.accountant.Subtract(req.Endpoint, req.ReservedFraction)
		c.registry.Remove(key)
		c.clearMeta(req.RunID)
		c.admission.Release(c.isOccupied)
		log.WithRegistryKey(c.log, key).Error().Err(err).Msg("subagent backend start failed")
		return "", err
	}

	entry.Status = types.StatusRunning
	entry.BaseURL = baseURL
	if err := c.registry.Put(key, entry); err != nil {
		return "", fmt.Errorf("coordinator: mark subagent entry running: %w", err)
	}

	log.WithRegistryKey(c.log, key).Info().Str("base_url", baseURL).Msg("subagent backend running")
	return baseURL, nil
}

// admitOrWait reserves fraction against endpoint's memory bucket, blocking
// in the admission queue while another active entry occupies the same
// model key. It loops after each wake because the slot that freed the
// waiter may already have been claimed again by a faster racer.
func (c *Coordinator) admitOrWait(ctx context.Context, sessionID, runID string, endpoint types.Endpoint, fraction float64) error {
	waitStart := time.Now()

	for {
		if !c.isOccupied(sessionID, endpoint.ModelKey()) && c.accountant.TryReserve(endpoint, fraction) {
			c.recordAdmissionOutcome("admitted", waitStart)
			return nil
		}

		ch := c.admission.Enqueue(sessionID, runID, endpoint.ModelKey())
		select {
		case res := <-ch:
			if res.Err != nil {
				c.recordAdmissionOutcome(admissionErrOutcome(res.Err), waitStart)
				return res.Err
			}
			continue
		case <-ctx.Done():
			c.admission.CancelByRunID(sessionID, runID)
			c.recordAdmissionOutcome("cancelled", waitStart)
			return ctx.Err()
		}
	}
}

// admissionErrOutcome maps a waiter's terminal error to an
// AdmissionOutcomesTotal label.
func admissionErrOutcome(err error) string {
	if err == admission.ErrSessionEnded {
		return "session-ended"
	}
	return "cancelled"
}

// recordAdmissionOutcome records a terminal waiter outcome and the time it
// spent parked in or ahead of the admission queue (zero for the
// no-contention fast path, which never actually enqueues).
func (c *Coordinator) recordAdmissionOutcome(result string, waitStart time.Time) {
	metrics.AdmissionOutcomesTotal.WithLabelValues(result).Inc()
	metrics.AdmissionWaitDuration.Observe(time.Since(waitStart).Seconds())
}

// isOccupied reports whether modelKey currently has an active (starting or
// running) entry. Occupancy is scoped to the physical endpoint rather than
// the full (session, modelKey) pair: two starts against the exact same
// base URL always share one reservation bucket, so registry occupancy and
// memory-cap exhaustion track each other closely in practice.
func (c *Coordinator) isOccupied(_ string, modelKey string) bool {
	for _, e := range c.registry.ListAll() {
		if e.Endpoint.ModelKey() != modelKey {
			continue
		}
		if e.Status == types.StatusStarting || e.Status == types.StatusRunning {
			return true
		}
	}
	return false
}

func (c *Coordinator) clearMeta(runID string) {
	c.metaMu.Lock()
	delete(c.meta, runID)
	c.metaMu.Unlock()
}

// StopSubagentBackend stops the subagent backend for runId. It succeeds
// as a no-op if the entry does not exist, and refuses (returning false) for
// persistent or main-owned entries.
func (c *Coordinator) StopSubagentBackend(ctx context.Context, runID string) (bool, error) {
	key := types.SubagentKey(runID)
	entry := c.registry.Get(key)
	if entry == nil {
		return true, nil
	}
	if entry.IsPersistent || entry.Owner == types.OwnerMain {
		return false, nil
	}

	c.metaMu.Lock()
	m := c.meta[runID]
	c.metaMu.Unlock()

	if m != nil && m.unloadDelay > 0 {
		c.scheduleDelayedStop(runID, m.unloadDelay)
		return true, nil
	}

	return true, c.stopNow(ctx, runID, entry)
}

func (c *Coordinator) scheduleDelayedStop(runID string, delay time.Duration) {
	c.delayedMu.Lock()
	defer c.delayedMu.Unlock()

	if existing, ok := c.delayed[runID]; ok {
		existing.Stop()
	}

	c.delayed[runID] = time.AfterFunc(delay, func() {
		c.delayedMu.Lock()
		delete(c.delayed, runID)
		c.delayedMu.Unlock()

		key := types.SubagentKey(runID)
		entry := c.registry.Get(key)
		if entry == nil {
			return
		}
		if err := c.stopNow(context.Background(), runID, entry); err != nil {
			log.WithRunID(c.log, runID).Warn().Err(err).Msg("delayed stop failed")
		}
	})
}

// stopNow drives an entry through stopping -> C1 stop -> reservation
// release -> registry removal -> admission wake.
func (c *Coordinator) stopNow(ctx context.Context, runID string, entry *types.ProcessEntry) error {
	key := entry.Key

	entry.Status = types.StatusStopping
	if err := c.registry.Put(key, entry); err != nil {
		return err
	}

	if err := c.backend.Stop(ctx, entry, c.shutdownTimeout); err != nil {
		log.WithRegistryKey(c.log, key).Warn().Err(err).Msg("backend stop reported an error; state already advances to stopped")
	}

	c.accountant.Subtract(entry.Endpoint, c.reservedFractionOf(runID))
	entry.Status = types.StatusStopped
	_ = c.registry.Put(key, entry)
	c.registry.Remove(key)
	c.clearMeta(runID)

	c.admission.Release(c.isOccupied)
	log.WithRegistryKey(c.log, key).Info().Msg("subagent backend stopped")
	return nil
}

// reservedFractionOf looks up the fraction StartSubagentBackend reserved
// for runID. Main-owned entries never reserve (startMainBackend does not
// participate in memory accounting), so a missing entry subtracts zero.
func (c *Coordinator) reservedFractionOf(runID string) float64 {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()

	m, ok := c.meta[runID]
	if !ok {
		return 0
	}
	return m.reservedFraction
}

// StopAll stops every entry, skipping main-owned entries unless force is
// set. Per the synchronous-shutdown resolution of an otherwise open design
// question, force=true stops persistent/main entries synchronously (the
// call blocks until every stop attempt has finished) rather than
// backgrounding them; entries are stopped concurrently, one errgroup
// goroutine each with no concurrency limit, rather than one at a time, since shutting down N independent
// backends has no sequencing requirement between them.
func (c *Coordinator) StopAll(ctx context.Context, force bool) {
	group, gctx := errgroup.WithContext(ctx)

	for _, entry := range c.registry.ListAll() {
		if entry.Owner == types.OwnerMain && !force {
			continue
		}

		entry := entry
		runID := runIDFromKey(entry)
		group.Go(func() error {
			if err := c.stopNow(gctx, runID, entry); err != nil {
				log.WithRegistryKey(c.log, entry.Key).Warn().Err(err).Msg("stopAll: stop failed")
			}
			return nil
		})
	}

	_ = group.Wait()
}

func runIDFromKey(entry *types.ProcessEntry) string {
	prefix := "subagent:"
	if entry.Owner == types.OwnerMain {
		prefix = "main:"
	}
	if len(entry.Key) > len(prefix) {
		return entry.Key[len(prefix):]
	}
	return entry.Key
}

// Status returns the entry for runId, checking both the main and subagent
// key spaces.
func (c *Coordinator) Status(runID string) *types.ProcessEntry {
	if e := c.registry.Get(types.SubagentKey(runID)); e != nil {
		return e
	}
	return c.registry.Get(types.MainKey(runID))
}

// BaseURLOf returns the base URL of runId's entry, or "" if absent.
func (c *Coordinator) BaseURLOf(runID string) string {
	if e := c.Status(runID); e != nil {
		return e.BaseURL
	}
	return ""
}

// IsRunning reports whether runId's entry is in the running state.
func (c *Coordinator) IsRunning(runID string) bool {
	e := c.Status(runID)
	return e != nil && e.Status == types.StatusRunning
}

// CanStop reports whether runId's entry may be stopped via
// StopSubagentBackend (false for persistent or main-owned entries, or if
// no entry exists).
func (c *Coordinator) CanStop(runID string) bool {
	e := c.registry.Get(types.SubagentKey(runID))
	if e == nil {
		return false
	}
	return !e.IsPersistent && e.Owner != types.OwnerMain
}

func transportFor(endpoint types.Endpoint) types.Transport {
	if !endpoint.Provider.RequiresLocalProcess() {
		return types.TransportHostedNoop
	}

	server := endpoint.Server
	if server == nil {
		return types.TransportLocalExec
	}

	switch server.Type {
	case types.ServerTypeRemote:
		return types.TransportRemoteSSH
	case types.ServerTypeDocker:
		if server.SSH != nil {
			return types.TransportRemoteDocker
		}
		return types.TransportLocalDocker
	default:
		return types.TransportLocalExec
	}
}
