package memmodel

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

// Architecture is the host memory-architecture class that determines the
// effective GPU memory utilisation cap.
type Architecture string

const (
	ArchLocalGPU      Architecture = "local-gpu"
	ArchUnifiedMemory Architecture = "unified-memory"
	ArchRemoteGPU     Architecture = "remote-gpu"
)

// gpuProbeTimeout bounds how long the local GPU management tool probe may
// take before it is treated as absent.
const gpuProbeTimeout = 3 * time.Second

// DetectOptions carries the inputs architecture detection cannot discover
// on its own.
type DetectOptions struct {
	// RemoteGPUOptIn, when true, disables the Apple-Silicon unified-memory
	// shortcut, so a Mac falls through to the remaining checks: remote-gpu
	// when RemoteGPUHint or CatalogHasRemoteEntry is set, else local-gpu.
	RemoteGPUOptIn bool

	// RemoteGPUHint is an explicit environment signal requesting remote-gpu.
	RemoteGPUHint bool

	// CatalogHasRemoteEntry reports whether the persisted model catalog
	// contains at least one entry whose server descriptor is remote or
	// docker-remote.
	CatalogHasRemoteEntry bool
}

// Detect selects one of local-gpu, unified-memory, remote-gpu for the
// current host.
func Detect(ctx context.Context, opts DetectOptions) Architecture {
	if isAppleSilicon() && !opts.RemoteGPUOptIn {
		return ArchUnifiedMemory
	}

	if probeLocalGPU(ctx) {
		return ArchLocalGPU
	}

	if opts.RemoteGPUHint || opts.CatalogHasRemoteEntry {
		return ArchRemoteGPU
	}

	return ArchLocalGPU
}

func isAppleSilicon() bool {
	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 {
		return false
	}
	return strings.Contains(infos[0].ModelName, "Apple")
}

// probeLocalGPU reports whether a local GPU management tool answers within
// a bounded window. Only attempted on Linux/Windows: Apple Silicon is
// handled above, and other Darwin hosts have no local GPU management tool
// this probes for.
func probeLocalGPU(ctx context.Context) bool {
	if runtime.GOOS == "darwin" {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, gpuProbeTimeout)
	defer cancel()

	return exec.CommandContext(probeCtx, "nvidia-smi").Run() == nil
}
