package backend

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/cuemby/agentpool/pkg/health"
	"github.com/cuemby/agentpool/pkg/log"
	"github.com/cuemby/agentpool/pkg/types"
	"github.com/rs/zerolog"
)

// LocalExecDriver spawns vLLM/SGLang servers as child processes on the
// local host.
type LocalExecDriver struct {
	ports *PortAllocator
	log   zerolog.Logger
}

// Start spawns the backend binary and waits for it to become healthy,
// killing the child and returning an error if it never does.
func (d *LocalExecDriver) Start(ctx context.Context, entry *types.ProcessEntry, healthTimeout time.Duration) (string, error) {
	endpoint := entry.Endpoint

	var port int
	if endpoint.Hints != nil && endpoint.Hints.Port > 0 {
		port = endpoint.Hints.Port
	} else {
		port = d.ports.Next(endpoint.Provider)
	}

	argv := buildServeArgv(endpoint, port)
	cmd := exec.Command(binaryName(endpoint.Provider), argv...)

	if err := cmd.Start(); err != nil {
		return "", newError(KindLaunchFailed, "local-exec start", err)
	}

	entry.PID = cmd.Process.Pid
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	log.WithRegistryKey(d.log, entry.Key).Debug().Int("pid", entry.PID).Str("base_url", baseURL).Msg("local-exec process launched")

	// Reap the child in the background regardless of health outcome so it
	// never becomes a zombie.
	go func() { _ = cmd.Wait() }()

	if !health.Poll(ctx, checkerFor(endpoint.Provider), baseURL, healthTimeout) {
		_ = killForcibly(entry.PID)
		return "", newError(KindHealthTimeout, "local-exec health", fmt.Errorf("backend on %s never became healthy", baseURL))
	}

	return baseURL, nil
}

// Stop sends a graceful signal, waits up to shutdownTimeout, then escalates
// to a forcible kill.
func (d *LocalExecDriver) Stop(ctx context.Context, entry *types.ProcessEntry, shutdownTimeout time.Duration) error {
	if entry.PID <= 0 {
		return nil
	}

	if err := sendGraceful(entry.PID); err != nil {
		log.WithRegistryKey(d.log, entry.Key).Warn().Err(err).Msg("graceful signal failed, escalating")
		return killForcibly(entry.PID)
	}

	deadline := time.Now().Add(shutdownTimeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !processAlive(entry.PID) {
			return nil
		}
		if time.Now().After(deadline) {
			log.WithRegistryKey(d.log, entry.Key).Warn().Msg("shutdown timeout exceeded, escalating to forcible kill")
			return killForcibly(entry.PID)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return killForcibly(entry.PID)
		}
	}
}
