package backend

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cuemby/agentpool/pkg/health"
	"github.com/cuemby/agentpool/pkg/log"
	"github.com/cuemby/agentpool/pkg/types"
	"github.com/rs/zerolog"
)

// DockerDriver launches a backend inside a container, either on the local
// Docker daemon or on a remote host reached over SSH.
type DockerDriver struct {
	ports  *PortAllocator
	log    zerolog.Logger
	remote bool
}

// buildDockerRunArgv composes the "docker run" argv described for the
// local-docker / remote-docker transports.
func buildDockerRunArgv(endpoint types.Endpoint, containerName string, port int) []string {
	docker := endpoint.Server.Docker

	args := []string{"run", "--rm", "-d", "--name", containerName, "-p", fmt.Sprintf("%d:%d", port, port)}

	if len(docker.GPUDevices) > 0 {
		if len(docker.GPUDevices) == 1 && docker.GPUDevices[0] == "all" {
			args = append(args, "--gpus", "all")
		} else {
			args = append(args, "--gpus", fmt.Sprintf(`"device=%s"`, strings.Join(docker.GPUDevices, ",")))
		}
	}

	for _, mount := range docker.VolumeMounts {
		args = append(args, "-v", mount)
	}

	for key, value := range docker.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", key, value))
	}

	args = append(args, docker.ExtraArgs...)
	args = append(args, docker.Image)
	args = append(args, buildServeArgv(endpoint, port)...)

	return args
}

func containerNameFor(entry *types.ProcessEntry) string {
	if entry.Endpoint.Server.Docker.ContainerName != "" {
		return entry.Endpoint.Server.Docker.ContainerName
	}
	return "agentpool-" + sanitizeKey(entry.Key)
}

// Start runs "docker run" (locally or over SSH) and captures the 12-char
// container id prefix.
func (d *DockerDriver) Start(ctx context.Context, entry *types.ProcessEntry, healthTimeout time.Duration) (string, error) {
	endpoint := entry.Endpoint

	var port int
	if endpoint.Hints != nil && endpoint.Hints.Port > 0 {
		port = endpoint.Hints.Port
	} else {
		port = d.ports.Next(endpoint.Provider)
	}

	containerName := containerNameFor(entry)
	argv := buildDockerRunArgv(endpoint, containerName, port)

	var (
		out string
		err error
		host string
	)
	if d.remote {
		host = endpoint.Server.Host
		client, dialErr := dialSSH(endpoint.Server.SSH)
		if dialErr != nil {
			return "", newError(KindDockerFailed, "docker run (remote)", dialErr)
		}
		defer client.Close()
		out, err = runSSHCommand(client, "docker "+strings.Join(argv, " "), DefaultSSHCommandTimeout)
	} else {
		host = "127.0.0.1"
		cmd := exec.CommandContext(ctx, "docker", argv...)
		var raw []byte
		raw, err = cmd.Output()
		out = strings.TrimSpace(string(raw))
	}
	if err != nil {
		return "", newError(KindDockerFailed, "docker run", fmt.Errorf("%w: %s", err, out))
	}

	containerID := strings.TrimSpace(out)
	if len(containerID) > 12 {
		containerID = containerID[:12]
	}
	entry.ContainerID = containerID

	baseURL := fmt.Sprintf("http://%s:%d", host, port)
	log.WithRegistryKey(d.log, entry.Key).Debug().Str("container_id", containerID).Str("base_url", baseURL).Msg("docker container launched")

	if !health.Poll(ctx, checkerFor(endpoint.Provider), baseURL, healthTimeout) {
		_ = d.stopContainer(ctx, entry, 5*time.Second)
		return "", newError(KindHealthTimeout, "docker health", fmt.Errorf("backend on %s never became healthy", baseURL))
	}

	return baseURL, nil
}

// Stop runs "docker stop <id>", locally or over SSH.
func (d *DockerDriver) Stop(ctx context.Context, entry *types.ProcessEntry, shutdownTimeout time.Duration) error {
	return d.stopContainer(ctx, entry, shutdownTimeout)
}

func (d *DockerDriver) stopContainer(ctx context.Context, entry *types.ProcessEntry, shutdownTimeout time.Duration) error {
	if entry.ContainerID == "" {
		return nil
	}

	timeoutSecs := fmt.Sprintf("%d", int(shutdownTimeout.Seconds()))

	if d.remote {
		client, err := dialSSH(entry.Endpoint.Server.SSH)
		if err != nil {
			log.WithRegistryKey(d.log, entry.Key).Warn().Err(err).Msg("ssh dial failed during docker stop")
			return nil
		}
		defer client.Close()
		_, err = runSSHCommand(client, fmt.Sprintf("docker stop -t %s %s", timeoutSecs, entry.ContainerID), DefaultSSHCommandTimeout)
		return err
	}

	cmd := exec.CommandContext(ctx, "docker", "stop", "-t", timeoutSecs, entry.ContainerID)
	return cmd.Run()
}
