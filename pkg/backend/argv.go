package backend

import (
	"strconv"

	"github.com/cuemby/agentpool/pkg/types"
)

// binaryName returns the executable invoked to serve a local-process
// provider.
func binaryName(p types.Provider) string {
	switch p {
	case types.ProviderVLLM:
		return "vllm"
	case types.ProviderSGLang:
		return "sglang"
	default:
		return string(p)
	}
}

// buildServeArgv constructs the normalized argv for launching a vLLM/SGLang
// style server: "serve <model> --host 0.0.0.0 --port <p>" plus any resource
// hints.
func buildServeArgv(endpoint types.Endpoint, port int) []string {
	args := []string{"serve", endpoint.Model, "--host", "0.0.0.0", "--port", strconv.Itoa(port)}

	hints := endpoint.Hints
	if hints == nil {
		return args
	}

	if hints.GPUMemoryUtilization > 0 {
		args = append(args, "--gpu-memory-utilization", strconv.FormatFloat(hints.GPUMemoryUtilization, 'f', -1, 64))
	}
	if hints.MaxModelLen > 0 {
		args = append(args, "--max-model-len", strconv.Itoa(hints.MaxModelLen))
	}
	if hints.TensorParallelSize > 1 {
		args = append(args, "--tensor-parallel-size", strconv.Itoa(hints.TensorParallelSize))
	}

	return args
}
