package backend

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/agentpool/pkg/health"
	"github.com/cuemby/agentpool/pkg/log"
	"github.com/cuemby/agentpool/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// SSHExecDriver launches vLLM/SGLang servers on a remote host over SSH,
// backgrounding the process with nohup and capturing its PID.
type SSHExecDriver struct {
	ports *PortAllocator
	log   zerolog.Logger
}

func dialSSH(cfg *types.SSHConfig) (*ssh.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("missing ssh config")
	}

	auth, err := sshAuthMethod(cfg)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // accept-new equivalent: no pinned known_hosts store
		Timeout:         DefaultSSHConnectTimeout,
	}

	return ssh.Dial("tcp", fmt.Sprintf("%s:%d", cfg.Host, port), clientCfg)
}

func sshAuthMethod(cfg *types.SSHConfig) (ssh.AuthMethod, error) {
	switch cfg.Auth {
	case types.SSHAuthPassword:
		return ssh.Password(cfg.Password), nil
	case types.SSHAuthKeyPath:
		key, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return ssh.PublicKeys(signer), nil
	default:
		return nil, fmt.Errorf("unsupported ssh auth mode %q", cfg.Auth)
	}
}

func runSSHCommand(client *ssh.Client, command string, timeout time.Duration) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)

	go func() {
		out, err := session.CombinedOutput(command)
		done <- result{out: string(out), err: err}
	}()

	select {
	case r := <-done:
		return strings.TrimSpace(r.out), r.err
	case <-time.After(timeout):
		_ = session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("remote command timed out after %s", timeout)
	}
}

// Start opens an SSH session, backgrounds the server with nohup, and parses
// the echoed PID before polling health over the network.
func (d *SSHExecDriver) Start(ctx context.Context, entry *types.ProcessEntry, healthTimeout time.Duration) (string, error) {
	endpoint := entry.Endpoint
	sshCfg := endpoint.Server.SSH

	client, err := dialSSH(sshCfg)
	if err != nil {
		return "", newError(KindSSHFailed, "ssh dial", err)
	}
	defer client.Close()

	var port int
	if endpoint.Hints != nil && endpoint.Hints.Port > 0 {
		port = endpoint.Hints.Port
	} else {
		port = d.ports.Next(endpoint.Provider)
	}

	argv := buildServeArgv(endpoint, port)
	logFile := fmt.Sprintf("/tmp/agentpool-%s.log", sanitizeKey(entry.Key))

	command := fmt.Sprintf(
		"nohup %s %s > %s 2>&1 & echo $!",
		binaryName(endpoint.Provider), strings.Join(argv, " "), logFile,
	)

	out, err := runSSHCommand(client, command, DefaultSSHCommandTimeout)
	if err != nil {
		return "", newError(KindSSHFailed, "ssh launch", err)
	}

	pid, err := parseRemotePID(out)
	if err != nil {
		return "", err
	}
	entry.PID = pid

	baseURL := fmt.Sprintf("http://%s:%d", sshCfg.Host, port)
	log.WithRegistryKey(d.log, entry.Key).Debug().Int("pid", pid).Str("base_url", baseURL).Msg("remote process launched over ssh")

	if !health.Poll(ctx, checkerFor(endpoint.Provider), baseURL, healthTimeout) {
		_, _ = runSSHCommand(client, fmt.Sprintf("kill -9 %d", pid), DefaultSSHCommandTimeout)
		return "", newError(KindHealthTimeout, "ssh health", fmt.Errorf("backend on %s never became healthy", baseURL))
	}

	return baseURL, nil
}

// Stop issues "kill <pid>" over a fresh SSH session.
func (d *SSHExecDriver) Stop(ctx context.Context, entry *types.ProcessEntry, shutdownTimeout time.Duration) error {
	if entry.PID <= 0 {
		return nil
	}

	client, err := dialSSH(entry.Endpoint.Server.SSH)
	if err != nil {
		log.WithRegistryKey(d.log, entry.Key).Warn().Err(err).Msg("ssh dial failed during stop")
		return nil
	}
	defer client.Close()

	if _, err := runSSHCommand(client, fmt.Sprintf("kill %d", entry.PID), DefaultSSHCommandTimeout); err != nil {
		log.WithRegistryKey(d.log, entry.Key).Warn().Err(err).Msg("graceful kill failed, escalating")
		_, err := runSSHCommand(client, fmt.Sprintf("kill -9 %d", entry.PID), DefaultSSHCommandTimeout)
		return err
	}

	select {
	case <-time.After(shutdownTimeout):
	case <-ctx.Done():
	}

	stillAlive, _ := runSSHCommand(client, fmt.Sprintf("kill -0 %d 2>/dev/null && echo alive", entry.PID), DefaultSSHCommandTimeout)
	if strings.TrimSpace(stillAlive) != "alive" {
		return nil
	}

	log.WithRegistryKey(d.log, entry.Key).Warn().Msg("shutdown timeout exceeded, escalating to forcible kill")
	_, err = runSSHCommand(client, fmt.Sprintf("kill -9 %d", entry.PID), DefaultSSHCommandTimeout)
	return err
}

// parseRemotePID parses the PID echoed back by a backgrounded "echo $!".
// Non-integer output means the remote launch itself never produced a
// process to track, so this is a launch failure, not an SSH transport
// failure: the caller rolls back the same way it would for any other
// failed launch.
func parseRemotePID(out string) (int, error) {
	pid, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, newError(KindLaunchFailed, "ssh launch", fmt.Errorf("could not parse remote pid from %q: %w", out, err))
	}
	return pid, nil
}

func sanitizeKey(key string) string {
	return strings.NewReplacer(":", "-", "/", "-").Replace(key)
}
