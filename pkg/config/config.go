// Package config loads agentpool's runtime configuration from a YAML file,
// the way cmd/warren/apply.go loads resource manifests: a plain struct
// decoded with gopkg.in/yaml.v3, durations carried as strings and parsed
// after load.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is agentpool's runtime configuration: catalog file locations,
// backend launch timeouts, and the memory-architecture and
// maintenance-scheduler overrides.
type Config struct {
	Catalog CatalogConfig `yaml:"catalog"`
	Backend BackendConfig `yaml:"backend"`
	Memory  MemoryConfig  `yaml:"memory"`
	Graph   GraphConfig   `yaml:"graph"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// CatalogConfig locates the persisted JSON catalog files (§6).
type CatalogConfig struct {
	SubagentPath   string `yaml:"subagentPath"`
	ModelPath      string `yaml:"modelPath"`
	BindingPath    string `yaml:"bindingPath"`
	OnboardingPath string `yaml:"onboardingPath"`
}

// BackendConfig tunes C1's launch and teardown timeouts. HealthTimeout and
// ShutdownTimeout are passed to the coordinator; the SSH timeouts and the
// port range are loaded but not read by the backend drivers, which use
// their built-in SSH timeouts and provider base ports.
type BackendConfig struct {
	HealthTimeout     string `yaml:"healthTimeout"`
	ShutdownTimeout   string `yaml:"shutdownTimeout"`
	SSHConnectTimeout string `yaml:"sshConnectTimeout"`
	SSHCommandTimeout string `yaml:"sshCommandTimeout"`
	PortRangeStart    int    `yaml:"portRangeStart"`
	PortRangeEnd      int    `yaml:"portRangeEnd"`

	healthTimeout     time.Duration
	shutdownTimeout   time.Duration
	sshConnectTimeout time.Duration
	sshCommandTimeout time.Duration
}

// HealthTimeoutDuration returns the parsed health-probe timeout.
func (b BackendConfig) HealthTimeoutDuration() time.Duration { return b.healthTimeout }

// ShutdownTimeoutDuration returns the parsed graceful-stop timeout.
func (b BackendConfig) ShutdownTimeoutDuration() time.Duration { return b.shutdownTimeout }

// SSHConnectTimeoutDuration returns the parsed SSH dial timeout.
func (b BackendConfig) SSHConnectTimeoutDuration() time.Duration { return b.sshConnectTimeout }

// SSHCommandTimeoutDuration returns the parsed SSH command timeout.
func (b BackendConfig) SSHCommandTimeoutDuration() time.Duration { return b.sshCommandTimeout }

// MemoryConfig overrides C3's per-architecture utilisation bounds. A zero
// value leaves the detected architecture's built-in defaults untouched.
type MemoryConfig struct {
	ArchitectureOverride string   `yaml:"architectureOverride,omitempty"` // "local-gpu", "unified-memory", "remote-gpu"
	MaxOverride          *float64 `yaml:"maxOverride,omitempty"`
	ReserveOverride      *float64 `yaml:"reserveOverride,omitempty"`
}

// GraphConfig controls C8's store location and timers. Disabled by
// default: the graph store is an optional collaborator.
type GraphConfig struct {
	Enabled                bool    `yaml:"enabled"`
	DataDir                string  `yaml:"dataDir"`
	HalfLife               string  `yaml:"halfLife"`
	CleanupInterval        string  `yaml:"cleanupInterval"`
	LowConfidenceThreshold float64 `yaml:"lowConfidenceThreshold"`
	MaxNodeAge             string  `yaml:"maxNodeAge"`

	halfLife        time.Duration
	cleanupInterval time.Duration
	maxNodeAge      time.Duration
}

// HalfLifeDuration returns the parsed decay half-life.
func (g GraphConfig) HalfLifeDuration() time.Duration { return g.halfLife }

// CleanupIntervalDuration returns the parsed cleanup interval.
func (g GraphConfig) CleanupIntervalDuration() time.Duration { return g.cleanupInterval }

// MaxNodeAgeDuration returns the parsed max node age.
func (g GraphConfig) MaxNodeAgeDuration() time.Duration { return g.maxNodeAge }

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listenAddr"`
}

// Default returns a Config with every field set to its built-in default.
func Default() *Config {
	return &Config{
		Catalog: CatalogConfig{
			SubagentPath:   "subagents.json",
			ModelPath:      "models.json",
			BindingPath:    "bindings.json",
			OnboardingPath: ".agentpool/onboarding.json",
		},
		Backend: BackendConfig{
			HealthTimeout:     "180s",
			ShutdownTimeout:   "30s",
			SSHConnectTimeout: "30s",
			SSHCommandTimeout: "60s",
			PortRangeStart:    18000,
			PortRangeEnd:      19000,
		},
		Graph: GraphConfig{
			Enabled:                false,
			DataDir:                ".agentpool/graph",
			HalfLife:               "720h", // 30 days
			CleanupInterval:        "24h",
			LowConfidenceThreshold: 0.05,
			MaxNodeAge:             "2160h", // 90 days
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9090",
		},
	}
}

// ApplyDefaults parses the duration fields of a Config built by Default()
// (or otherwise assembled without going through Load) so its *Duration
// accessors are usable.
func (c *Config) ApplyDefaults() error {
	return c.parseDurations()
}

// Load reads and parses the YAML file at path, starting from Default()
// and overlaying whatever the file sets.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.parseDurations(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) parseDurations() error {
	var err error
	if c.Backend.healthTimeout, err = time.ParseDuration(c.Backend.HealthTimeout); err != nil {
		return fmt.Errorf("backend.healthTimeout: %w", err)
	}
	if c.Backend.shutdownTimeout, err = time.ParseDuration(c.Backend.ShutdownTimeout); err != nil {
		return fmt.Errorf("backend.shutdownTimeout: %w", err)
	}
	if c.Backend.sshConnectTimeout, err = time.ParseDuration(c.Backend.SSHConnectTimeout); err != nil {
		return fmt.Errorf("backend.sshConnectTimeout: %w", err)
	}
	if c.Backend.sshCommandTimeout, err = time.ParseDuration(c.Backend.SSHCommandTimeout); err != nil {
		return fmt.Errorf("backend.sshCommandTimeout: %w", err)
	}

	if !c.Graph.Enabled {
		return nil
	}
	if c.Graph.halfLife, err = time.ParseDuration(c.Graph.HalfLife); err != nil {
		return fmt.Errorf("graph.halfLife: %w", err)
	}
	if c.Graph.cleanupInterval, err = time.ParseDuration(c.Graph.CleanupInterval); err != nil {
		return fmt.Errorf("graph.cleanupInterval: %w", err)
	}
	if c.Graph.maxNodeAge, err = time.ParseDuration(c.Graph.MaxNodeAge); err != nil {
		return fmt.Errorf("graph.maxNodeAge: %w", err)
	}
	return nil
}
