package types

import (
	"fmt"
	"time"
)

// Provider identifies the serving backend flavor for an Endpoint.
type Provider string

const (
	ProviderVLLM      Provider = "vllm"
	ProviderSGLang    Provider = "sglang"
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderCustom    Provider = "custom"
)

// RequiresLocalProcess reports whether starting this provider requires a
// driver to actually launch and supervise a process, as opposed to treating
// the endpoint as hosted and externally managed.
func (p Provider) RequiresLocalProcess() bool {
	switch p {
	case ProviderVLLM, ProviderSGLang:
		return true
	default:
		return false
	}
}

// ResourceHints carries optional backend launch tuning.
type ResourceHints struct {
	GPUMemoryUtilization float64 // (0,1]
	MaxModelLen          int
	TensorParallelSize   int // >= 1
	Port                 int
}

// ServerType identifies where a backend process actually runs.
type ServerType string

const (
	ServerTypeLocal  ServerType = "local"
	ServerTypeRemote ServerType = "remote"
	ServerTypeDocker ServerType = "docker"
)

// SSHAuthMode selects how the remote transport authenticates.
type SSHAuthMode string

const (
	SSHAuthKeyPath  SSHAuthMode = "key-path"
	SSHAuthPassword SSHAuthMode = "password"
)

// SSHConfig describes how to reach a remote host over SSH.
type SSHConfig struct {
	Host           string
	Port           int // default 22
	User           string
	Auth           SSHAuthMode
	KeyPath        string // when Auth == SSHAuthKeyPath
	Password       string // when Auth == SSHAuthPassword
	RemoteInstall  string // optional remote install path for the backend binary
}

// DockerConfig describes a container launch for the docker transport.
type DockerConfig struct {
	Image         string
	ContainerName string // default derived from the entry key
	GPUDevices    []string // specific device ids, or ["all"]
	VolumeMounts  []string // "host:container[:ro]"
	Env           map[string]string
	ExtraArgs     []string
}

// ServerDescriptor pins an Endpoint to a concrete transport.
type ServerDescriptor struct {
	Type   ServerType
	Host   string
	Port   int
	SSH    *SSHConfig    // set when Type == ServerTypeRemote, or for a remote Docker daemon
	Docker *DockerConfig // set when Type == ServerTypeDocker
}

// IsRemoteOrDockerRemote reports whether this descriptor requires reaching a
// backend over the network rather than on the local host.
func (s *ServerDescriptor) IsRemoteOrDockerRemote() bool {
	if s == nil {
		return false
	}
	if s.Type == ServerTypeRemote {
		return true
	}
	if s.Type == ServerTypeDocker && s.SSH != nil {
		return true
	}
	return false
}

// Endpoint addresses one model-serving backend.
type Endpoint struct {
	Provider Provider
	BaseURL  string
	Model    string
	APIKey   string
	Server   *ServerDescriptor
	Hints    *ResourceHints
}

// ModelKey returns the admission conflict key for this endpoint:
// provider|baseUrl|model.
func (e Endpoint) ModelKey() string {
	return fmt.Sprintf("%s|%s|%s", e.Provider, e.BaseURL, e.Model)
}

// PersonalityConfig carries an optional base/enhanced subagent personality.
type PersonalityConfig struct {
	Base         string
	Enhanced     string
	SourceModel  string
	EnhancedAt   time.Time
}

// ModelConfig is a subagent's endpoint plus fallback and retry policy.
type ModelConfig struct {
	Endpoint    Endpoint
	Fallbacks   []Endpoint
	MaxRetries  int
}

// BehaviorConfig controls a subagent's generation and lifecycle policy.
type BehaviorConfig struct {
	Temperature     float64
	TopP            float64
	MaxTokens       int
	AutoLoad        bool
	AutoUnload      bool
	UnloadDelayMs   int
	IdleTimeoutMs   int
	MaxRunTimeMs    int
	ConcurrencyLimit int
	Timeouts        time.Duration

	// Persistent marks a definition whose backend must survive normal
	// subagent lifecycle stop calls (see ProcessEntry.IsPersistent).
	Persistent bool
}

// Metadata is free-form catalog bookkeeping for a subagent definition.
type Metadata struct {
	Category string
	Tags     []string
	Language string
	Author   string
	Version  string
}

// SubagentDefinition is one entry in the subagent catalog (C6). The Id is
// the catalog's primary key; upserting an existing Id replaces in place.
type SubagentDefinition struct {
	ID          string
	Name        string
	Description string
	Metadata    *Metadata
	Personality *PersonalityConfig
	Model       ModelConfig
	Behavior    BehaviorConfig
}

// Clone deep-copies a definition so catalog mutations never alias the
// caller's copy (required by Duplicate and by Store.Get's snapshot).
func (d *SubagentDefinition) Clone() *SubagentDefinition {
	if d == nil {
		return nil
	}
	out := *d
	if d.Metadata != nil {
		md := *d.Metadata
		md.Tags = append([]string(nil), d.Metadata.Tags...)
		out.Metadata = &md
	}
	if d.Personality != nil {
		p := *d.Personality
		out.Personality = &p
	}
	out.Model.Fallbacks = append([]Endpoint(nil), d.Model.Fallbacks...)
	return &out
}

// Owner identifies who requested a ProcessEntry's backend.
type Owner string

const (
	OwnerMain     Owner = "main"
	OwnerSubagent Owner = "subagent"
)

// Transport identifies how a ProcessEntry's backend was launched.
type Transport string

const (
	TransportLocalExec    Transport = "local-exec"
	TransportRemoteSSH    Transport = "remote-ssh-exec"
	TransportLocalDocker  Transport = "local-docker"
	TransportRemoteDocker Transport = "remote-docker"
	TransportHostedNoop   Transport = "hosted-noop"
)

// EntryStatus is a ProcessEntry's lifecycle state.
type EntryStatus string

const (
	StatusStarting EntryStatus = "starting"
	StatusRunning  EntryStatus = "running"
	StatusStopping EntryStatus = "stopping"
	StatusStopped  EntryStatus = "stopped"
)

// ProcessEntry is one row of the Process Registry (C2): a running or
// transitioning backend instance, keyed by "main:<modelId>" or
// "subagent:<runId>".
type ProcessEntry struct {
	Key          string
	Endpoint     Endpoint
	Transport    Transport
	PID          int    // local-exec OS process id, or remote PID
	ContainerID  string // docker container id (12-char prefix)
	Owner        Owner
	IsPersistent bool
	StartedAt    time.Time
	Status       EntryStatus
	BaseURL      string
}

// MainKey builds the registry key for a main-owned backend.
func MainKey(modelID string) string {
	return "main:" + modelID
}

// SubagentKey builds the registry key for a subagent-owned backend.
func SubagentKey(runID string) string {
	return "subagent:" + runID
}

// ReservationKey identifies a (provider, host:port) memory accounting
// bucket.
type ReservationKey struct {
	Provider Provider
	HostPort string
}

// TaskDescriptor is one item in a Dependency Planner (C5) batch.
type TaskDescriptor struct {
	SubagentID       string
	Provider         Provider
	ReservedFraction float64
	DependsOn        string // optional; empty means no dependency
}
