package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/agentpool/pkg/health"
	"github.com/cuemby/agentpool/pkg/metrics"
	"github.com/cuemby/agentpool/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultShutdownTimeout is how long Stop waits for a graceful exit before
// escalating to a forcible kill.
const DefaultShutdownTimeout = 30 * time.Second

// DefaultSSHConnectTimeout bounds dialing a remote host.
const DefaultSSHConnectTimeout = 30 * time.Second

// DefaultSSHCommandTimeout bounds a single remote command's execution.
const DefaultSSHCommandTimeout = 60 * time.Second

// Driver launches and tears down one backend transport. Start mutates
// entry in place (PID, ContainerID) and returns the reachable base URL on
// success; the caller records that URL on the entry.
type Driver interface {
	Start(ctx context.Context, entry *types.ProcessEntry, healthTimeout time.Duration) (string, error)
	Stop(ctx context.Context, entry *types.ProcessEntry, shutdownTimeout time.Duration) error
}

// Dispatcher routes a ProcessEntry to the Driver for its transport.
type Dispatcher struct {
	ports   *PortAllocator
	log     zerolog.Logger
	drivers map[types.Transport]Driver
}

// NewDispatcher wires up one Driver per transport, sharing a single port
// allocator across the local-exec, SSH and Docker drivers.
func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	ports := NewPortAllocator(nil)
	d := &Dispatcher{ports: ports, log: logger}
	d.drivers = map[types.Transport]Driver{
		types.TransportLocalExec:    &LocalExecDriver{ports: ports, log: logger},
		types.TransportRemoteSSH:    &SSHExecDriver{ports: ports, log: logger},
		types.TransportLocalDocker:  &DockerDriver{ports: ports, log: logger, remote: false},
		types.TransportRemoteDocker: &DockerDriver{ports: ports, log: logger, remote: true},
		types.TransportHostedNoop:   &HostedDriver{log: logger},
	}
	return d
}

// Start resolves entry.Transport to a Driver and starts it, recording the
// backend-start and health-probe metrics for the attempt.
func (d *Dispatcher) Start(ctx context.Context, entry *types.ProcessEntry, healthTimeout time.Duration) (string, error) {
	transport := string(entry.Transport)
	timer := metrics.NewTimer()

	drv, ok := d.drivers[entry.Transport]
	if !ok {
		metrics.BackendStartsTotal.WithLabelValues(transport, string(KindLaunchFailed)).Inc()
		return "", newError(KindLaunchFailed, "dispatch", fmt.Errorf("unknown transport %q", entry.Transport))
	}

	baseURL, err := drv.Start(ctx, entry, healthTimeout)

	probeOutcome := "healthy"
	startOutcome := "success"
	if err != nil {
		startOutcome = outcomeOf(err)
		if IsKind(err, KindHealthTimeout) {
			probeOutcome = "timeout"
		}
	}
	metrics.BackendStartsTotal.WithLabelValues(transport, startOutcome).Inc()
	metrics.HealthProbeDuration.WithLabelValues(string(entry.Endpoint.Provider), probeOutcome).Observe(timer.Duration().Seconds())
	if err == nil {
		timer.ObserveDurationVec(metrics.BackendStartDuration, transport)
	}

	return baseURL, err
}

// Stop resolves entry.Transport to a Driver and stops it, recording the
// backend-stop metric for the attempt.
func (d *Dispatcher) Stop(ctx context.Context, entry *types.ProcessEntry, shutdownTimeout time.Duration) error {
	transport := string(entry.Transport)

	drv, ok := d.drivers[entry.Transport]
	if !ok {
		metrics.BackendStopsTotal.WithLabelValues(transport, "forced").Inc()
		return newError(KindLaunchFailed, "dispatch", fmt.Errorf("unknown transport %q", entry.Transport))
	}

	err := drv.Stop(ctx, entry, shutdownTimeout)

	outcome := "graceful"
	if err != nil {
		outcome = "forced"
	}
	metrics.BackendStopsTotal.WithLabelValues(transport, outcome).Inc()
	return err
}

// outcomeOf maps a Start error to the BackendStartsTotal outcome label.
func outcomeOf(err error) string {
	for _, kind := range []Kind{KindSSHFailed, KindDockerFailed, KindHealthTimeout, KindLaunchFailed} {
		if IsKind(err, kind) {
			return string(kind)
		}
	}
	return string(KindLaunchFailed)
}

// checkerFor picks the readiness checker for an endpoint's provider.
func checkerFor(p types.Provider) health.Checker {
	return health.NewHTTPChecker(p)
}

// CheckHealth polls baseURL's provider-appropriate readiness endpoint with
// exponential backoff until it answers or timeout elapses.
func CheckHealth(ctx context.Context, provider types.Provider, baseURL string, timeout time.Duration) bool {
	return health.Poll(ctx, checkerFor(provider), baseURL, timeout)
}
