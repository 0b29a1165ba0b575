package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/agentpool/pkg/health"
	"github.com/cuemby/agentpool/pkg/log"
	"github.com/cuemby/agentpool/pkg/types"
	"github.com/rs/zerolog"
)

// HostedDriver handles providers with no process to manage: openai,
// anthropic, and custom endpoints with no local process, plus ollama,
// which is treated as an externally managed daemon.
type HostedDriver struct {
	log zerolog.Logger
}

// Start is a no-op that marks the entry running after a single successful
// readiness probe.
func (d *HostedDriver) Start(ctx context.Context, entry *types.ProcessEntry, healthTimeout time.Duration) (string, error) {
	endpoint := entry.Endpoint
	if endpoint.BaseURL == "" {
		return "", newError(KindLaunchFailed, "hosted start", fmt.Errorf("endpoint has no base url"))
	}

	if !health.Poll(ctx, checkerFor(endpoint.Provider), endpoint.BaseURL, healthTimeout) {
		return "", newError(KindHealthTimeout, "hosted health", fmt.Errorf("backend on %s never became healthy", endpoint.BaseURL))
	}

	log.WithRegistryKey(d.log, entry.Key).Debug().Str("base_url", endpoint.BaseURL).Msg("hosted endpoint probed healthy")
	return endpoint.BaseURL, nil
}

// Stop is a no-op: hosted and ollama backends are externally managed.
func (d *HostedDriver) Stop(ctx context.Context, entry *types.ProcessEntry, shutdownTimeout time.Duration) error {
	return nil
}
